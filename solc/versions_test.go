package solc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.8.2", "0.8.2"},
		{"v0.8.2", "0.8.2"},
		{"0.8.2+commit.661d1103", "0.8.2"},
		{"v0.8.2+commit.661d1103", "0.8.2"},
		{"0.8.5-nightly.2021.5.12", "0.8.5"},
		{" 0.8.2 ", "0.8.2"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeVersion(tt.in), "input %q", tt.in)
	}
}

func TestLongVersionTag(t *testing.T) {
	assert.Equal(t, "v0.8.2+commit.661d1103", LongVersionTag("0.8.2+commit.661d1103"))
	assert.Equal(t, "v0.8.2+commit.661d1103", LongVersionTag("v0.8.2+commit.661d1103"))
}

func TestSameVersion(t *testing.T) {
	assert.True(t, SameVersion("v0.8.2+commit.661d1103", "0.8.2"))
	assert.False(t, SameVersion("0.8.2", "0.8.3"))
}

func TestParseVersionRange_Bounded(t *testing.T) {
	r, err := ParseVersionRange("0.4.7 - 0.5.8")
	require.NoError(t, err)

	assert.True(t, r.Contains("0.4.7"))
	assert.True(t, r.Contains("0.5.0"))
	assert.True(t, r.Contains("0.5.8"))
	assert.False(t, r.Contains("0.4.6"))
	assert.False(t, r.Contains("0.5.9"))
}

func TestParseVersionRange_UpperBound(t *testing.T) {
	r, err := ParseVersionRange("<0.4.7")
	require.NoError(t, err)

	assert.True(t, r.Contains("0.4.6"))
	assert.True(t, r.Contains("0.1.0"))
	assert.False(t, r.Contains("0.4.7"))
	assert.False(t, r.Contains("0.8.2"))
}

func TestParseVersionRange_Invalid(t *testing.T) {
	for _, in := range []string{"", "0.8.2", "garbage - more", "<not.a.version"} {
		_, err := ParseVersionRange(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestVersionRange_RejectsInvalidVersion(t *testing.T) {
	r, err := ParseVersionRange("<0.4.7")
	require.NoError(t, err)

	assert.False(t, r.Contains("not-a-version"))
}
