package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithConfig_Defaults(t *testing.T) {
	log, err := NewWithConfig(&Config{})
	require.NoError(t, err)
	defer func() { _ = log.Sync() }()

	assert.NotNil(t, log)
}

func TestNewWithConfig_InvalidLevel(t *testing.T) {
	_, err := NewWithConfig(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWithConfig_NilConfig(t *testing.T) {
	_, err := NewWithConfig(nil)
	assert.Error(t, err)
}

func TestNewWithConfig_Development(t *testing.T) {
	log, err := NewWithConfig(&Config{Level: "debug", Development: true, Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1)) // debug
}

func TestNamed(t *testing.T) {
	log, err := NewProduction()
	require.NoError(t, err)
	assert.NotNil(t, Named(log, "verify"))
}
