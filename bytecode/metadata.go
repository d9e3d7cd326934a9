package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Solidity appends a CBOR-encoded metadata blob to emitted bytecode,
// followed by a 2-byte big-endian length of that blob. The blob carries a
// content hash (IPFS or Swarm) of the off-chain metadata plus, for modern
// compilers, the exact compiler version as three raw bytes.
const metadataLengthSize = 2

// Version ranges reported when the trailer does not pin an exact release.
const (
	// MetadataAbsentVersionRange covers compilers that predate the
	// metadata trailer entirely.
	MetadataAbsentVersionRange = "<0.4.7"

	// MetadataPresentVersionRange covers compilers that emit a trailer
	// without the solc version entry.
	MetadataPresentVersionRange = "0.4.7 - 0.5.8"
)

// metadataSection describes the decoded trailer of a bytecode blob.
type metadataSection struct {
	// solcVersion is the exact embedded version, empty when the trailer
	// carries no version entry.
	solcVersion string
	// size is the total trailer size in bytes, including the trailing
	// length field.
	size int
}

// decodeMetadata parses the trailing metadata section of code.
// It returns nil when no decodable trailer is present.
func decodeMetadata(code []byte) *metadataSection {
	if len(code) < metadataLengthSize {
		return nil
	}

	payloadLen := int(binary.BigEndian.Uint16(code[len(code)-metadataLengthSize:]))
	end := len(code) - metadataLengthSize
	start := end - payloadLen
	if start < 0 {
		return nil
	}

	var fields map[string]cbor.RawMessage
	if err := cbor.Unmarshal(code[start:end], &fields); err != nil {
		return nil
	}

	section := &metadataSection{size: payloadLen + metadataLengthSize}
	if raw, ok := fields["solc"]; ok {
		section.solcVersion = decodeSolcVersion(raw)
	}

	return section
}

// decodeSolcVersion extracts the version from the trailer's solc entry.
// Release compilers encode it as three raw bytes (major, minor, patch);
// pre-release builds embed the full version string instead.
func decodeSolcVersion(raw cbor.RawMessage) string {
	var packed []byte
	if err := cbor.Unmarshal(raw, &packed); err == nil && len(packed) == 3 {
		return fmt.Sprintf("%d.%d.%d", packed[0], packed[1], packed[2])
	}

	var literal string
	if err := cbor.Unmarshal(raw, &literal); err == nil {
		return literal
	}

	return ""
}

// isAlternateVM reports whether code looks like output of an alternate-VM
// toolchain. Those compilers do not append the solc CBOR trailer; their
// emitted code ends in a zero-terminated epilogue instead of a nonzero
// length field, whereas pre-metadata solc output ends with executable
// opcodes.
func isAlternateVM(code []byte, meta *metadataSection) bool {
	return meta == nil && len(code) > 0 && code[len(code)-1] == 0x00
}
