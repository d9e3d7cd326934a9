package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Config holds PebbleStore configuration.
type Config struct {
	// Path is the database directory.
	Path string `yaml:"path"`

	// Cache is the block cache size in MB.
	Cache int `yaml:"cache"`

	// MaxOpenFiles bounds the file descriptors pebble may hold.
	MaxOpenFiles int `yaml:"max_open_files"`

	// ReadOnly opens the database without write access.
	ReadOnly bool `yaml:"read_only"`
}

// DefaultConfig returns a config suitable for the small record volumes
// verification produces.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:         path,
		Cache:        16,
		MaxOpenFiles: 128,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("storage path cannot be empty")
	}
	if c.Cache <= 0 {
		return fmt.Errorf("invalid cache size %d", c.Cache)
	}
	if c.MaxOpenFiles <= 0 {
		return fmt.Errorf("invalid max open files %d", c.MaxOpenFiles)
	}
	return nil
}

// PebbleStore implements RecordStore on PebbleDB.
type PebbleStore struct {
	db     *pebble.DB
	config *Config
	logger *zap.Logger
	closed atomic.Bool
}

// NewPebbleStore opens or creates the record database.
func NewPebbleStore(cfg *Config, logger *zap.Logger) (*PebbleStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(int64(cfg.Cache) << 20),
		MaxOpenFiles: cfg.MaxOpenFiles,
		ReadOnly:     cfg.ReadOnly,
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger.Debug("record store opened", zap.String("path", cfg.Path))

	return &PebbleStore{
		db:     db,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the store and releases resources.
func (s *PebbleStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PebbleStore) ensureNotClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *PebbleStore) ensureNotReadOnly() error {
	if s.config.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// GetRecord implements RecordReader.
func (s *PebbleStore) GetRecord(ctx context.Context, network string, address common.Address, explorer string) (*VerificationRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	value, closer, err := s.db.Get(RecordKey(network, address, explorer))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	defer closer.Close()

	var record VerificationRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &record, nil
}

// HasSuccessfulRecord implements RecordReader.
func (s *PebbleStore) HasSuccessfulRecord(ctx context.Context, network string, address common.Address, explorer string) (bool, error) {
	record, err := s.GetRecord(ctx, network, address, explorer)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.Success, nil
}

// ListRecords implements RecordReader.
func (s *PebbleStore) ListRecords(ctx context.Context, network string) ([]*VerificationRecord, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	prefix := RecordKeyPrefix(network)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var records []*VerificationRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var record VerificationRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			s.logger.Warn("skipping undecodable record",
				zap.ByteString("key", iter.Key()),
				zap.Error(err))
			continue
		}
		records = append(records, &record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}

	return records, nil
}

// SetRecord implements RecordWriter.
func (s *PebbleStore) SetRecord(ctx context.Context, record *VerificationRecord) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.Network == "" || record.Explorer == "" {
		return fmt.Errorf("record must name its network and explorer")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	key := RecordKey(record.Network, record.Address, record.Explorer)
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	return nil
}

// DeleteRecord implements RecordWriter.
func (s *PebbleStore) DeleteRecord(ctx context.Context, network string, address common.Address, explorer string) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return err
	}

	if err := s.db.Delete(RecordKey(network, address, explorer), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}
