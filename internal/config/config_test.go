package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
rpc:
  endpoint: "http://localhost:8545"
network:
  name: devnet
artifacts:
  dir: ./artifacts/build-info
verify:
  compiler_versions:
    - "0.8.2+commit.661d1103"
    - "0.8.19+commit.7dd6d404"
explorers:
  - name: scan-a
    api_url: "https://api.scan-a.example.com/api"
    browser_url: "https://scan-a.example.com"
  - name: scan-b
    api_url: "https://api.scan-b.example.com/api"
database:
  enabled: true
  pebble:
    path: ./data/records
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8545", cfg.RPC.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.RPC.Timeout)
	assert.Equal(t, "devnet", cfg.Network.Name)
	assert.Equal(t, "./artifacts/build-info", cfg.Artifacts.Dir)
	assert.Len(t, cfg.Verify.CompilerVersions, 2)
	assert.Equal(t, 10*time.Second, cfg.Verify.SettleDelay)

	require.Len(t, cfg.Explorers, 2)
	assert.Equal(t, "scan-a", cfg.Explorers[0].Name)
	assert.Equal(t, 30*time.Second, cfg.Explorers[0].Timeout)
	assert.Equal(t, float64(5), cfg.Explorers[0].RequestsPerSecond)

	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "./data/records", cfg.Database.Pebble.Path)
	assert.Equal(t, 16, cfg.Database.Pebble.Cache)

	assert.Equal(t, ":8080", cfg.API.ListenAddr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VERIFY_RPC_ENDPOINT", "ws://override:8546")
	t.Setenv("VERIFY_NETWORK", "stagenet")
	t.Setenv("VERIFY_COMPILER_VERSIONS", "0.8.2, 0.8.19")
	t.Setenv("VERIFY_SETTLE_DELAY", "3s")
	t.Setenv("VERIFY_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "ws://override:8546", cfg.RPC.Endpoint)
	assert.Equal(t, "stagenet", cfg.Network.Name)
	assert.Equal(t, []string{"0.8.2", "0.8.19"}, cfg.Verify.CompilerVersions)
	assert.Equal(t, 3*time.Second, cfg.Verify.SettleDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvExplorer(t *testing.T) {
	t.Setenv("VERIFY_RPC_ENDPOINT", "http://localhost:8545")
	t.Setenv("VERIFY_NETWORK", "devnet")
	t.Setenv("VERIFY_ARTIFACTS_DIR", "./artifacts")
	t.Setenv("VERIFY_COMPILER_VERSIONS", "0.8.2")
	t.Setenv("VERIFY_EXPLORER_API_URL", "https://api.scan.example.com/api")
	t.Setenv("VERIFY_EXPLORER_API_KEY", "key123")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Len(t, cfg.Explorers, 1)
	assert.Equal(t, "devnet", cfg.Explorers[0].Name)
	assert.Equal(t, "https://api.scan.example.com/api", cfg.Explorers[0].APIURL)
	assert.Equal(t, "key123", cfg.Explorers[0].APIKey)
}

func TestLoad_InvalidEnvDuration(t *testing.T) {
	t.Setenv("VERIFY_SETTLE_DELAY", "soon")

	_, err := Load(writeConfig(t, validYAML))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, validYAML))
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.RPC.Endpoint = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Artifacts.Dir = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Verify.CompilerVersions = nil
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Explorers = nil
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Explorers[1].Name = cfg.Explorers[0].Name
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.Pebble.Path = ""
	assert.Error(t, cfg.Validate())
}
