package solc

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// NormalizeVersion reduces any compiler version form to "major.minor.patch":
// a leading "v" and a "+commit.<hash>" build suffix are stripped, so
// "v0.8.2+commit.661d1103" and "0.8.2" normalize identically.
func NormalizeVersion(version string) string {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	if idx := strings.IndexAny(version, "+-"); idx != -1 {
		version = version[:idx]
	}
	return version
}

// LongVersionTag formats a long compiler version the way explorers expect
// it, e.g. "0.8.2+commit.661d1103" becomes "v0.8.2+commit.661d1103".
func LongVersionTag(longVersion string) string {
	longVersion = strings.TrimSpace(longVersion)
	if strings.HasPrefix(longVersion, "v") {
		return longVersion
	}
	return "v" + longVersion
}

// SameVersion reports whether two version strings denote the same release,
// ignoring the leading "v" and any build suffix.
func SameVersion(a, b string) bool {
	return NormalizeVersion(a) == NormalizeVersion(b)
}

// canonical converts a version to the "vX.Y.Z" form x/mod/semver expects.
func canonical(version string) string {
	return "v" + NormalizeVersion(version)
}

// VersionRange is a semver interval with optional bounds.
type VersionRange struct {
	min        string
	max        string
	includeMin bool
	includeMax bool
}

// ParseVersionRange understands the two range forms embedded bytecode can
// imply: "X - Y" (inclusive on both ends) and "<X" (exclusive upper bound).
func ParseVersionRange(s string) (*VersionRange, error) {
	s = strings.TrimSpace(s)

	if rest, ok := strings.CutPrefix(s, "<"); ok {
		max := canonical(rest)
		if !semver.IsValid(max) {
			return nil, fmt.Errorf("invalid version range %q", s)
		}
		return &VersionRange{max: max}, nil
	}

	if lo, hi, ok := strings.Cut(s, " - "); ok {
		min, max := canonical(lo), canonical(hi)
		if !semver.IsValid(min) || !semver.IsValid(max) {
			return nil, fmt.Errorf("invalid version range %q", s)
		}
		return &VersionRange{min: min, max: max, includeMin: true, includeMax: true}, nil
	}

	return nil, fmt.Errorf("invalid version range %q", s)
}

// Contains reports whether version falls inside the range.
func (r *VersionRange) Contains(version string) bool {
	v := canonical(version)
	if !semver.IsValid(v) {
		return false
	}
	if r.min != "" {
		if cmp := semver.Compare(v, r.min); cmp < 0 || (cmp == 0 && !r.includeMin) {
			return false
		}
	}
	if r.max != "" {
		if cmp := semver.Compare(v, r.max); cmp > 0 || (cmp == 0 && !r.includeMax) {
			return false
		}
	}
	return true
}
