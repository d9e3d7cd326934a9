// Package bytecode models deployed and compiled EVM runtime bytecode and
// the normalization that makes the two byte-comparable. Compiled and
// deployed code produced from identical source and settings still differ
// in a few well-known regions: the appended metadata hash, deploy-time
// injected immutable values, linked library addresses and the library
// call-protection slot. Normalize masks all of them with zero bytes so
// that equality of the masked blobs is equality of the code.
package bytecode

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// addressLength is the size of an EVM address slot in bytecode.
	addressLength = 20

	// opPush20 precedes the embedded own-address in deployed library code.
	opPush20 = 0x73
)

// Reference is a byte-offset region inside runtime bytecode.
type Reference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Bytecode is an immutable view over a runtime bytecode blob together with
// what its metadata trailer reveals about the producing compiler.
type Bytecode struct {
	code           []byte
	version        string
	isVersionRange bool
	altVM          bool
	executableLen  int
}

// Parse inspects code and extracts the embedded compiler version.
// Bytecode without a decodable trailer is classified as either
// pre-metadata solc output or alternate-VM output.
func Parse(code []byte) *Bytecode {
	b := &Bytecode{code: append([]byte(nil), code...)}

	meta := decodeMetadata(b.code)
	switch {
	case meta == nil:
		b.version = MetadataAbsentVersionRange
		b.isVersionRange = true
		b.altVM = isAlternateVM(b.code, meta)
		b.executableLen = len(b.code)
	case meta.solcVersion == "":
		b.version = MetadataPresentVersionRange
		b.isVersionRange = true
		b.executableLen = len(b.code) - meta.size
	default:
		b.version = meta.solcVersion
		b.executableLen = len(b.code) - meta.size
	}

	return b
}

// ParseHex parses a hex string, with or without the 0x prefix.
func ParseHex(s string) (*Bytecode, error) {
	code, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode hex: %w", err)
	}
	return Parse(code), nil
}

// Bytes returns a copy of the raw bytecode.
func (b *Bytecode) Bytes() []byte {
	return append([]byte(nil), b.code...)
}

// Len returns the raw bytecode length in bytes.
func (b *Bytecode) Len() int {
	return len(b.code)
}

// Version returns the embedded compiler version, or one of the range
// constants when only a range is inferable.
func (b *Bytecode) Version() string {
	return b.version
}

// IsVersionRange reports whether Version is a range rather than an exact
// release.
func (b *Bytecode) IsVersionRange() bool {
	return b.isVersionRange
}

// IsAlternateVM reports whether the blob was produced for a non-standard
// VM variant. Version matching does not apply to such bytecode.
func (b *Bytecode) IsAlternateVM() bool {
	return b.altVM
}

// ExecutableSection returns the bytecode up to the metadata trailer.
func (b *Bytecode) ExecutableSection() []byte {
	return b.code[:b.executableLen]
}

// Symbols collects the non-deterministic regions a compiler artifact
// declares for its runtime bytecode.
type Symbols struct {
	// ImmutableReferences maps internal variable ids to the regions where
	// deploy-time constants are injected.
	ImmutableReferences map[string][]Reference

	// LibraryLinks are the address slots reserved for linked libraries.
	LibraryLinks []Reference

	// CallProtection marks deployed library code, which carries its own
	// address in the leading PUSH20 instruction.
	CallProtection bool
}

// Normalize returns a copy of code with every non-deterministic region
// overwritten with zero bytes: the metadata trailer including its length
// field, immutable value slots, library address slots and the call
// protection slot. Normalizing an already-normalized blob returns the
// same bytes.
func Normalize(code []byte, sym *Symbols) []byte {
	out := append([]byte(nil), code...)
	if meta := decodeMetadata(out); meta != nil {
		zeroRegion(out, len(out)-meta.size, meta.size)
	}
	return maskRegions(out, sym)
}

// Match reports whether two bytecode blobs are the same code once their
// non-deterministic regions are masked. Each blob's own metadata trailer
// is excluded, so trailers of different size, or a missing trailer on one
// side, do not break the comparison. Executable sections of different
// length match only when the longer one exceeds by exactly a trailing
// 2-byte encoded-length field that describes no decodable blob.
func Match(deployed, compiled []byte, sym *Symbols) bool {
	d := executableSection(deployed)
	c := executableSection(compiled)

	if len(d) != len(c) {
		d, c = trimLengthField(d, c)
		if len(d) != len(c) {
			return false
		}
	}

	return bytes.Equal(maskRegions(d, sym), maskRegions(c, sym))
}

// executableSection returns code up to its decodable metadata trailer, or
// the whole blob when there is none.
func executableSection(code []byte) []byte {
	if meta := decodeMetadata(code); meta != nil {
		return code[:len(code)-meta.size]
	}
	return code
}

// trimLengthField drops a trailing encoded-length field from the longer
// section when that field is the only length difference between the two.
func trimLengthField(a, b []byte) ([]byte, []byte) {
	switch {
	case len(a) == len(b)+metadataLengthSize:
		return a[:len(b)], b
	case len(b) == len(a)+metadataLengthSize:
		return a, b[:len(a)]
	default:
		return a, b
	}
}

// maskRegions zeroes the artifact-declared non-deterministic regions of an
// executable section.
func maskRegions(code []byte, sym *Symbols) []byte {
	out := append([]byte(nil), code...)
	if sym == nil {
		return out
	}

	for _, refs := range sym.ImmutableReferences {
		for _, ref := range refs {
			zeroRegion(out, ref.Start, ref.Length)
		}
	}
	for _, ref := range sym.LibraryLinks {
		zeroRegion(out, ref.Start, ref.Length)
	}
	if sym.CallProtection && len(out) > 0 && out[0] == opPush20 {
		zeroRegion(out, 1, addressLength)
	}

	return out
}

// zeroRegion zeroes length bytes starting at start, clamped to the blob.
func zeroRegion(code []byte, start, length int) {
	if start < 0 || start >= len(code) {
		return
	}
	end := start + length
	if end > len(code) {
		end = len(code)
	}
	for i := start; i < end; i++ {
		code[i] = 0
	}
}
