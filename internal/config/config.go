package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up in the current
// directory when no --repo flag is given.
const FileName = "benchtop.yml"

// Config represents the top-level benchtop.yml configuration.
type Config struct {
	Version    string `yaml:"version"`
	Repository string `yaml:"repository"`
	LogLevel   string `yaml:"log_level,omitempty"`
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1" {
		return fmt.Errorf("unsupported version: %s (expected: 1)", c.Version)
	}

	// Required: repository path
	if c.Repository == "" {
		return fmt.Errorf("repository is required")
	}

	// Optional: log level, but if given it must be one zap understands
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %s (expected: debug, info, warn or error)", c.LogLevel)
	}

	return nil
}

// Load reads and validates a benchtop.yml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	// Relative repository paths are resolved against the config file's
	// directory, so the file works from anywhere.
	if !filepath.IsAbs(cfg.Repository) {
		base, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		cfg.Repository = filepath.Join(base, cfg.Repository)
	}

	return &cfg, nil
}

// Default returns the configuration written by `benchtop init`.
func Default(repository string) *Config {
	return &Config{
		Version:    "1",
		Repository: repository,
	}
}

// Write serializes the configuration to a benchtop.yml file.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
