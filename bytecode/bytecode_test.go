package bytecode

import (
	"bytes"
	"testing"

	"github.com/0xmhha/verify-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exec returns a small executable section ending in a nonzero opcode, as
// pre-metadata solc output does.
func exec() []byte {
	return []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x60, 0x0a, 0xf3}
}

func TestParse_ExactVersion(t *testing.T) {
	code := testutil.WithMetadata(exec(), "0.8.2", 0xaa)

	b := Parse(code)

	assert.Equal(t, "0.8.2", b.Version())
	assert.False(t, b.IsVersionRange())
	assert.False(t, b.IsAlternateVM())
	assert.Equal(t, exec(), b.ExecutableSection())
}

func TestParse_MetadataWithoutVersion(t *testing.T) {
	code := testutil.WithMetadata(exec(), "", 0xaa)

	b := Parse(code)

	assert.Equal(t, MetadataPresentVersionRange, b.Version())
	assert.True(t, b.IsVersionRange())
	assert.False(t, b.IsAlternateVM())
	assert.Equal(t, exec(), b.ExecutableSection())
}

func TestParse_NoMetadata(t *testing.T) {
	b := Parse(exec())

	assert.Equal(t, MetadataAbsentVersionRange, b.Version())
	assert.True(t, b.IsVersionRange())
	assert.False(t, b.IsAlternateVM())
	assert.Equal(t, exec(), b.ExecutableSection())
}

func TestParse_AlternateVM(t *testing.T) {
	// No decodable trailer and a zero-terminated epilogue.
	code := append(exec(), 0x00, 0x00, 0x00)

	b := Parse(code)

	assert.True(t, b.IsAlternateVM())
	assert.True(t, b.IsVersionRange())
	assert.Equal(t, len(code), len(b.ExecutableSection()))
}

func TestParseHex(t *testing.T) {
	b, err := ParseHex("0x6080604052")
	require.NoError(t, err)
	assert.Equal(t, 5, b.Len())

	_, err = ParseHex("0xzz")
	assert.Error(t, err)
}

func TestBytecode_Immutable(t *testing.T) {
	raw := testutil.WithMetadata(exec(), "0.8.2", 0xaa)
	b := Parse(raw)

	// Mutating the source or the returned copy must not affect the value.
	raw[0] = 0xff
	got := b.Bytes()
	got[1] = 0xff

	assert.Equal(t, byte(0x60), b.Bytes()[0])
	assert.Equal(t, byte(0x80), b.Bytes()[1])
}

func TestNormalize_Idempotent(t *testing.T) {
	code := testutil.WithMetadata(exec(), "0.8.2", 0xaa)
	sym := &Symbols{
		ImmutableReferences: map[string][]Reference{
			"7": {{Start: 2, Length: 2}},
		},
	}

	once := Normalize(code, sym)
	twice := Normalize(once, sym)

	assert.Equal(t, once, twice)
	assert.Equal(t, len(code), len(once))
}

func TestNormalize_MetadataHashVariance(t *testing.T) {
	a := testutil.WithMetadata(exec(), "0.8.2", 0xaa)
	b := testutil.WithMetadata(exec(), "0.8.2", 0xbb)
	require.NotEqual(t, a, b)

	assert.Equal(t, Normalize(a, nil), Normalize(b, nil))
}

func TestNormalize_ZeroesImmutableRegions(t *testing.T) {
	code := testutil.WithMetadata(exec(), "0.8.2", 0xaa)
	sym := &Symbols{
		ImmutableReferences: map[string][]Reference{
			"7": {{Start: 1, Length: 3}},
		},
	}

	out := Normalize(code, sym)

	assert.Equal(t, []byte{0, 0, 0}, out[1:4])
	assert.Equal(t, code[4], out[4])
}

func TestNormalize_ZeroesLibraryLinks(t *testing.T) {
	section := make([]byte, 30)
	for i := range section {
		section[i] = 0x5b
	}
	code := testutil.WithMetadata(section, "0.8.2", 0xaa)
	sym := &Symbols{LibraryLinks: []Reference{{Start: 4, Length: 20}}}

	out := Normalize(code, sym)

	for i := 4; i < 24; i++ {
		assert.Zero(t, out[i])
	}
	assert.Equal(t, byte(0x5b), out[0])
	assert.Equal(t, byte(0x5b), out[24])
}

func TestNormalize_CallProtection(t *testing.T) {
	section := append([]byte{opPush20}, bytes.Repeat([]byte{0x11}, 25)...)
	code := testutil.WithMetadata(section, "0.8.2", 0xaa)

	out := Normalize(code, &Symbols{CallProtection: true})

	assert.Equal(t, byte(opPush20), out[0])
	assert.Equal(t, make([]byte, addressLength), out[1:1+addressLength])
	assert.Equal(t, byte(0x11), out[1+addressLength])
}

func TestNormalize_OutOfRangeReferencesClamped(t *testing.T) {
	code := testutil.WithMetadata(exec(), "0.8.2", 0xaa)
	sym := &Symbols{
		ImmutableReferences: map[string][]Reference{
			"1": {{Start: len(code) - 1, Length: 10}, {Start: len(code) + 4, Length: 2}},
		},
	}

	out := Normalize(code, sym)

	assert.Equal(t, len(code), len(out))
	assert.Zero(t, out[len(out)-1])
}

func TestMatch_DifferentMetadataHashes(t *testing.T) {
	deployed := testutil.WithMetadata(exec(), "0.8.2", 0xaa)
	compiled := testutil.WithMetadata(exec(), "0.8.2", 0xbb)

	assert.True(t, Match(deployed, compiled, nil))
}

func TestMatch_LinkedVersusPlaceholder(t *testing.T) {
	// Resolving placeholders to addresses then comparing must be
	// equivalent to zeroing the slots on both sides.
	section := make([]byte, 30)
	for i := range section {
		section[i] = 0x5b
	}
	linked := append([]byte(nil), section...)
	for i := 4; i < 24; i++ {
		linked[i] = 0xde // a concrete library address
	}

	deployed := testutil.WithMetadata(linked, "0.8.2", 0xaa)
	compiled := testutil.WithMetadata(section, "0.8.2", 0xbb)
	sym := &Symbols{LibraryLinks: []Reference{{Start: 4, Length: 20}}}

	assert.True(t, Match(deployed, compiled, sym))
	assert.False(t, Match(deployed, compiled, nil))
}

func TestMatch_DifferentCode(t *testing.T) {
	other := exec()
	other[0] = 0x61

	deployed := testutil.WithMetadata(exec(), "0.8.2", 0xaa)
	compiled := testutil.WithMetadata(other, "0.8.2", 0xaa)

	assert.False(t, Match(deployed, compiled, nil))
}

func TestMatch_MissingTrailerOnOneSide(t *testing.T) {
	deployed := testutil.WithMetadata(exec(), "0.8.2", 0xaa)
	compiled := exec()

	assert.True(t, Match(deployed, compiled, nil))
	assert.True(t, Match(compiled, deployed, nil))
}

func TestMatch_TrailingLengthFieldTolerated(t *testing.T) {
	// An encoded-length field that describes no decodable blob is part of
	// the non-deterministic suffix and must not break matching.
	deployed := append(exec(), 0x02, 0x10)
	compiled := exec()

	assert.True(t, Match(deployed, compiled, nil))
	assert.True(t, Match(compiled, deployed, nil))
}

func TestMatch_LengthMismatchBeyondFieldRejected(t *testing.T) {
	deployed := append(exec(), 0x01, 0x02, 0x03, 0x04)
	compiled := exec()

	assert.False(t, Match(deployed, compiled, nil))
}
