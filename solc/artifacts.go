package solc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned when no build info covers a requested contract.
var ErrNotFound = errors.New("build info not found")

// ArtifactStore gives access to the local compilation artifacts of a
// project.
type ArtifactStore interface {
	// ArtifactExists reports whether a build produced the named contract.
	ArtifactExists(fqName string) bool

	// BuildInfo returns the build that produced the named contract.
	BuildInfo(fqName string) (*BuildInfo, error)

	// BuildInfos returns every known build, ordered by file name.
	BuildInfos() []*BuildInfo
}

// FSArtifactStore reads build-info JSON files from a directory tree, the
// layout build tools leave under artifacts/build-info.
type FSArtifactStore struct {
	infos []*BuildInfo
	byFQN map[string]*BuildInfo

	logger *zap.Logger
}

// NewFSArtifactStore loads every build-info file under dir. Files that are
// not build infos are skipped.
func NewFSArtifactStore(dir string, logger *zap.Logger) (*FSArtifactStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("artifacts directory %s: %w", dir, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("artifacts path %s is not a directory", dir)
	}

	store := &FSArtifactStore{
		byFQN:  make(map[string]*BuildInfo),
		logger: logger,
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning artifacts directory: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		info, err := loadBuildInfo(path)
		if err != nil {
			logger.Debug("skipping non build-info file",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		store.add(info, path)
	}

	logger.Info("artifact store loaded",
		zap.String("dir", dir),
		zap.Int("build_infos", len(store.infos)),
		zap.Int("contracts", len(store.byFQN)))

	return store, nil
}

// ArtifactExists implements ArtifactStore.
func (s *FSArtifactStore) ArtifactExists(fqName string) bool {
	_, ok := s.byFQN[fqName]
	return ok
}

// BuildInfo implements ArtifactStore.
func (s *FSArtifactStore) BuildInfo(fqName string) (*BuildInfo, error) {
	info, ok := s.byFQN[fqName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fqName)
	}
	return info, nil
}

// BuildInfos implements ArtifactStore.
func (s *FSArtifactStore) BuildInfos() []*BuildInfo {
	return s.infos
}

func (s *FSArtifactStore) add(info *BuildInfo, path string) {
	s.infos = append(s.infos, info)

	for sourceName, contracts := range info.Output.Contracts {
		for contractName := range contracts {
			fqName := JoinFullyQualifiedName(sourceName, contractName)
			if _, exists := s.byFQN[fqName]; exists {
				s.logger.Debug("contract present in multiple builds, keeping first",
					zap.String("contract", fqName),
					zap.String("path", path))
				continue
			}
			s.byFQN[fqName] = info
		}
	}
}

func loadBuildInfo(path string) (*BuildInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var info BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	if info.SolcVersion == "" || info.Input == nil || info.Output == nil {
		return nil, errors.New("missing solcVersion, input or output")
	}
	return &info, nil
}
