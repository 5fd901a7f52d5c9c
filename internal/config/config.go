// Package config handles loading, validating, and writing the NodeFlow
// host configuration from ~/.nodeflow/config.yaml.
//
// The config defines:
//   - Server bind address for the dashboard (host:port)
//   - Default chat endpoint, model, and timeout used by graph nodes
//   - Env file location and which process env keys are exposed to graphs
//   - Run log toggle and directory
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level NodeFlow host configuration.
// Loaded from ~/.nodeflow/config.yaml, with sensible defaults for fields
// that are not explicitly set.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Env      EnvConfig      `yaml:"env"`
	Audit    AuditConfig    `yaml:"audit"`
}

// ServerConfig defines where the dashboard listens.
// Default: 127.0.0.1:3600 (loopback only — never bind to 0.0.0.0).
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultsConfig holds the fallback values graph nodes use when a node
// instance doesn't set them itself.
type DefaultsConfig struct {
	APIBase        string  `yaml:"api_base"`
	Model          string  `yaml:"model"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// EnvConfig controls the env_var node's sources.
//
// File is a dotenv file read on every lookup, so edits apply without a
// restart. ExposeKeys lists glob patterns of process environment keys
// that graphs may read; everything else in the process env is hidden.
type EnvConfig struct {
	File       string   `yaml:"file"`
	ExposeKeys []string `yaml:"expose_keys"`
}

// AuditConfig controls the hash-chained run log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Load reads and parses config.yaml from the given path.
// If the file doesn't exist, returns defaults for configDir (not an
// error). Invalid YAML or validation failures return an error.
func Load(path, configDir string) (*Config, error) {
	cfg := applyDefaults(configDir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file — use defaults. This is normal on first run
			// before `nodeflow config init` creates the file.
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// WriteDefault writes a default config.yaml with all fields populated
// and a comment header. Used by `nodeflow config init` when no config
// file exists yet.
func WriteDefault(path, configDir string) error {
	cfg := applyDefaults(configDir)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	header := `# NodeFlow Host Configuration
#
# server:
#   host: Dashboard bind address (default: 127.0.0.1, loopback only)
#   port: Dashboard listen port (default: 3600)
#
# defaults:
#   api_base: Chat completion endpoint used when a node doesn't set one
#   model: Model used when a node doesn't set one
#   timeout_seconds: Per-request timeout for chat nodes
#
# env:
#   file: Dotenv file read by the env_var node
#   expose_keys: Glob patterns of process env keys graphs may read
#
# audit:
#   enabled: Record every node run in the hash-chained run log
#   dir: Run log directory

`
	return os.WriteFile(path, []byte(header+string(data)), 0o644)
}

// applyDefaults returns a Config with all fields set to their default
// values, relative to the given config directory.
func applyDefaults(configDir string) *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3600,
		},
		Defaults: DefaultsConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 120,
		},
		Env: EnvConfig{
			File:       filepath.Join(configDir, ".env"),
			ExposeKeys: []string{"OPENAI_*", "NODEFLOW_*"},
		},
		Audit: AuditConfig{
			Enabled: true,
			Dir:     filepath.Join(configDir, "audit"),
		},
	}
}

// validate checks the config for logical errors after parsing.
func validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return fmt.Errorf("server.host must not be empty")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range (1-65535)", cfg.Server.Port)
	}

	if cfg.Defaults.APIBase == "" {
		return fmt.Errorf("defaults.api_base must not be empty")
	}
	if cfg.Defaults.TimeoutSeconds < 0 {
		return fmt.Errorf("defaults.timeout_seconds must be non-negative")
	}

	if cfg.Audit.Enabled && cfg.Audit.Dir == "" {
		return fmt.Errorf("audit.dir is required when audit is enabled")
	}

	return nil
}
