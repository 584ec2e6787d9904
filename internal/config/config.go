// Package config loads the server configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	DBPath   string         `yaml:"db_path"`
	LogLevel string         `yaml:"log_level"`
	Scorer   ScorerConfig   `yaml:"scorer"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ScorerConfig selects and configures the black-box scorer adapter.
type ScorerConfig struct {
	// Type is "http" or "script".
	Type string `yaml:"type"`

	// URL is the scoring endpoint for the http type.
	URL string `yaml:"url"`

	// ScriptPath is the scorer script file for the script type.
	ScriptPath string `yaml:"script_path"`

	// MaxRetries bounds retry attempts of the http adapter.
	MaxRetries int `yaml:"max_retries"`

	// KeyringService/KeyringAccount locate the bearer token for the http
	// adapter in the OS keyring. Optional.
	KeyringService string `yaml:"keyring_service"`
	KeyringAccount string `yaml:"keyring_account"`

	// KeyringFallbackPath is the file fallback for headless environments.
	KeyringFallbackPath string `yaml:"keyring_fallback_path"`
}

// DefaultsConfig holds per-request defaults.
type DefaultsConfig struct {
	Index     string `yaml:"index"`
	MaxOrder  int    `yaml:"max_order"`
	Budget    int    `yaml:"budget"`
	Estimator string `yaml:"estimator"`
	Tokenizer string `yaml:"tokenizer"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		DBPath:   "tokenshap.db",
		LogLevel: "info",
		Defaults: DefaultsConfig{
			Index:     "SII",
			MaxOrder:  2,
			Budget:    512,
			Estimator: "stratified",
			Tokenizer: "word",
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Scorer.Type {
	case "http":
		if c.Scorer.URL == "" {
			return fmt.Errorf("config: scorer.url is required for the http scorer")
		}
	case "script":
		if c.Scorer.ScriptPath == "" {
			return fmt.Errorf("config: scorer.script_path is required for the script scorer")
		}
	case "":
		return fmt.Errorf("config: scorer.type is required (http or script)")
	default:
		return fmt.Errorf("config: unknown scorer.type %q", c.Scorer.Type)
	}
	if c.Defaults.MaxOrder < 1 {
		return fmt.Errorf("config: defaults.max_order must be at least 1")
	}
	if c.Defaults.Budget < 1 {
		return fmt.Errorf("config: defaults.budget must be at least 1")
	}
	return nil
}
