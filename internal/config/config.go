// Package config holds the process configuration: YAML file, environment
// overrides, defaults and validation. The resulting Config is built once
// at startup and never mutated afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/verify-go/explorer"
	"github.com/0xmhha/verify-go/storage"
)

// Config is the top-level configuration.
type Config struct {
	RPC       RPCConfig         `yaml:"rpc"`
	Network   NetworkConfig     `yaml:"network"`
	Artifacts ArtifactsConfig   `yaml:"artifacts"`
	Explorers []explorer.Config `yaml:"explorers"`
	Verify    VerifyConfig      `yaml:"verify"`
	Database  DatabaseConfig    `yaml:"database"`
	API       APIConfig         `yaml:"api"`
	Log       LogConfig         `yaml:"log"`
}

// RPCConfig holds the chain connection settings.
type RPCConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NetworkConfig names the chain contracts are verified on.
type NetworkConfig struct {
	Name string `yaml:"name"`
}

// ArtifactsConfig locates the local compilation artifacts.
type ArtifactsConfig struct {
	// Dir is the build-info directory, typically artifacts/build-info.
	Dir string `yaml:"dir"`
}

// VerifyConfig holds the verification pipeline settings.
type VerifyConfig struct {
	// CompilerVersions lists the locally available solc versions.
	CompilerVersions []string `yaml:"compiler_versions"`

	// SettleDelay is the wait between submission and the status poll.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// DatabaseConfig holds the optional verification-record store settings.
type DatabaseConfig struct {
	Enabled bool           `yaml:"enabled"`
	Pebble  storage.Config `yaml:"pebble"`
}

// APIConfig holds the optional HTTP service settings.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"`
	Development bool   `yaml:"development"`
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{}
}

// Load builds the configuration from an optional YAML file, environment
// overrides and defaults, then validates it.
func Load(configFile string) (*Config, error) {
	cfg := NewConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile merges a YAML file into the configuration.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv applies VERIFY_* environment overrides.
func (c *Config) LoadFromEnv() error {
	if endpoint := os.Getenv("VERIFY_RPC_ENDPOINT"); endpoint != "" {
		c.RPC.Endpoint = endpoint
	}
	if timeout := os.Getenv("VERIFY_RPC_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid VERIFY_RPC_TIMEOUT: %w", err)
		}
		c.RPC.Timeout = d
	}
	if network := os.Getenv("VERIFY_NETWORK"); network != "" {
		c.Network.Name = network
	}
	if dir := os.Getenv("VERIFY_ARTIFACTS_DIR"); dir != "" {
		c.Artifacts.Dir = dir
	}
	if versions := os.Getenv("VERIFY_COMPILER_VERSIONS"); versions != "" {
		c.Verify.CompilerVersions = splitAndTrim(versions)
	}
	if delay := os.Getenv("VERIFY_SETTLE_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid VERIFY_SETTLE_DELAY: %w", err)
		}
		c.Verify.SettleDelay = d
	}
	if enabled := os.Getenv("VERIFY_DB_ENABLED"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid VERIFY_DB_ENABLED: %w", err)
		}
		c.Database.Enabled = b
	}
	if path := os.Getenv("VERIFY_DB_PATH"); path != "" {
		c.Database.Pebble.Path = path
	}
	if enabled := os.Getenv("VERIFY_API_ENABLED"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid VERIFY_API_ENABLED: %w", err)
		}
		c.API.Enabled = b
	}
	if addr := os.Getenv("VERIFY_API_LISTEN_ADDR"); addr != "" {
		c.API.ListenAddr = addr
	}
	if level := os.Getenv("VERIFY_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	// A single explorer back-end can be configured entirely from the
	// environment.
	if apiURL := os.Getenv("VERIFY_EXPLORER_API_URL"); apiURL != "" {
		backend := explorer.DefaultConfig(firstNonEmpty(os.Getenv("VERIFY_EXPLORER_NAME"), c.Network.Name, "explorer"), apiURL)
		backend.BrowserURL = os.Getenv("VERIFY_EXPLORER_BROWSER_URL")
		backend.APIKey = os.Getenv("VERIFY_EXPLORER_API_KEY")
		c.Explorers = append(c.Explorers, *backend)
	}

	return nil
}

// SetDefaults fills in defaults for missing values.
func (c *Config) SetDefaults() {
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = 30 * time.Second
	}
	if c.Network.Name == "" {
		c.Network.Name = "mainnet"
	}
	if c.Verify.SettleDelay == 0 {
		c.Verify.SettleDelay = 10 * time.Second
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
	if c.Database.Enabled {
		if c.Database.Pebble.Cache == 0 {
			c.Database.Pebble.Cache = 16
		}
		if c.Database.Pebble.MaxOpenFiles == 0 {
			c.Database.Pebble.MaxOpenFiles = 128
		}
	}
	for i := range c.Explorers {
		if c.Explorers[i].Timeout == 0 {
			c.Explorers[i].Timeout = 30 * time.Second
		}
		if c.Explorers[i].RequestsPerSecond == 0 {
			c.Explorers[i].RequestsPerSecond = 5
		}
		if c.Explorers[i].Name == "" {
			c.Explorers[i].Name = fmt.Sprintf("explorer-%d", i+1)
		}
	}
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("rpc.endpoint is required")
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir is required")
	}
	if len(c.Verify.CompilerVersions) == 0 {
		return fmt.Errorf("verify.compiler_versions must list at least one version")
	}
	if len(c.Explorers) == 0 {
		return fmt.Errorf("at least one explorer back-end is required")
	}

	seen := make(map[string]bool, len(c.Explorers))
	for i := range c.Explorers {
		if err := c.Explorers[i].Validate(); err != nil {
			return fmt.Errorf("explorers[%d]: %w", i, err)
		}
		if seen[c.Explorers[i].Name] {
			return fmt.Errorf("explorers[%d]: duplicate back-end name %q", i, c.Explorers[i].Name)
		}
		seen[c.Explorers[i].Name] = true
	}

	if c.Database.Enabled {
		if err := c.Database.Pebble.Validate(); err != nil {
			return fmt.Errorf("database.pebble: %w", err)
		}
	}
	return nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
