// Package testutil provides shared fixtures for building synthetic
// bytecode blobs in tests.
package testutil

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// MetadataTrailer builds a solc-style metadata trailer: a CBOR map with an
// ipfs hash entry and, when solcVersion is non-empty, a packed solc version
// entry, followed by the 2-byte big-endian payload length.
func MetadataTrailer(solcVersion string, hashSeed byte) []byte {
	hash := make([]byte, 34)
	for i := range hash {
		hash[i] = hashSeed
	}

	fields := map[string]interface{}{"ipfs": hash}
	if solcVersion != "" {
		fields["solc"] = packVersion(solcVersion)
	}

	payload, err := cbor.Marshal(fields)
	if err != nil {
		panic(fmt.Sprintf("testutil: encode metadata: %v", err))
	}

	trailer := make([]byte, len(payload)+2)
	copy(trailer, payload)
	binary.BigEndian.PutUint16(trailer[len(payload):], uint16(len(payload)))
	return trailer
}

// WithMetadata appends a metadata trailer to an executable section.
func WithMetadata(exec []byte, solcVersion string, hashSeed byte) []byte {
	return append(append([]byte(nil), exec...), MetadataTrailer(solcVersion, hashSeed)...)
}

// packVersion encodes "major.minor.patch" as the three raw bytes release
// compilers embed in the trailer.
func packVersion(version string) []byte {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) != 3 {
		panic(fmt.Sprintf("testutil: version %q is not major.minor.patch", version))
	}
	packed := make([]byte, 3)
	for i, part := range parts {
		var n int
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil {
			panic(fmt.Sprintf("testutil: version %q is not numeric", version))
		}
		packed[i] = byte(n)
	}
	return packed
}
