package verify

import (
	"fmt"
	"strings"

	"github.com/0xmhha/verify-go/bytecode"
	"github.com/0xmhha/verify-go/solc"
)

// MatchCompilerVersions narrows the configured compiler versions to the
// ones capable of producing the deployed bytecode, preserving the
// configured order. Alternate-VM bytecode carries no usable version
// information, so every configured version stays a candidate; the same
// holds for pre-metadata bytecode, whose range covers releases older than
// anything configured today.
func MatchCompilerVersions(deployed *bytecode.Bytecode, configured []string, network string) ([]string, error) {
	if deployed.IsAlternateVM() || deployed.Version() == bytecode.MetadataAbsentVersionRange {
		return append([]string(nil), configured...), nil
	}

	var matched []string
	if deployed.IsVersionRange() {
		versionRange, err := solc.ParseVersionRange(deployed.Version())
		if err != nil {
			return nil, fmt.Errorf("embedded version range: %w", err)
		}
		for _, version := range configured {
			if versionRange.Contains(version) {
				matched = append(matched, version)
			}
		}
	} else {
		for _, version := range configured {
			if solc.SameVersion(version, deployed.Version()) {
				matched = append(matched, version)
			}
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: the contract on network %s was compiled with solc %s, configured versions are [%s]",
			ErrCompilerVersionsMismatch, network, deployed.Version(), strings.Join(configured, ", "))
	}

	return matched, nil
}
