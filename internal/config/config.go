// Package config loads server configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath points at the YAML config file.
	EnvConfigPath = "LORECHUNK_CONFIG"

	// EnvDBPath overrides the SQLite database location.
	EnvDBPath = "LORECHUNK_DB_PATH"
)

// Duration wraps time.Duration so YAML values like "2s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full server configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Detector DetectorConfig `yaml:"detector"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Handoff  HandoffConfig  `yaml:"handoff"`
	Sessions SessionConfig  `yaml:"sessions"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DetectorConfig holds the default segmentation size constraints, all in
// characters. Tool calls may override them per request.
type DetectorConfig struct {
	MinChars    int `yaml:"min_chars"`
	TargetChars int `yaml:"target_chars"`
	MaxChars    int `yaml:"max_chars"`
	Overlap     int `yaml:"overlap"`
}

// AutosaveConfig controls the debounced draft save.
type AutosaveConfig struct {
	Interval Duration `yaml:"interval"`
}

// HandoffConfig controls embed handoff dispatch.
type HandoffConfig struct {
	Workers int `yaml:"workers"`
}

// SessionConfig bounds in-memory document sessions.
type SessionConfig struct {
	MaxOpen int `yaml:"max_open"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "lorechunk.db"},
		Detector: DetectorConfig{
			MinChars:    400,
			TargetChars: 1200,
			MaxChars:    2000,
			Overlap:     200,
		},
		Autosave: AutosaveConfig{Interval: Duration(2 * time.Second)},
		Handoff:  HandoffConfig{Workers: 4},
		Sessions: SessionConfig{MaxOpen: 32},
	}
}

// Load reads configuration from path, falling back to the LORECHUNK_CONFIG
// environment variable and then to defaults. Environment overrides are
// applied after the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	d := c.Detector
	if d.MinChars < 1 {
		return fmt.Errorf("detector.min_chars must be at least 1, got %d", d.MinChars)
	}
	if d.TargetChars < d.MinChars {
		return fmt.Errorf("detector.target_chars (%d) must be >= min_chars (%d)", d.TargetChars, d.MinChars)
	}
	if d.MaxChars < d.TargetChars {
		return fmt.Errorf("detector.max_chars (%d) must be >= target_chars (%d)", d.MaxChars, d.TargetChars)
	}
	if d.Overlap < 0 {
		return fmt.Errorf("detector.overlap must not be negative, got %d", d.Overlap)
	}
	if c.Autosave.Interval < 0 {
		return fmt.Errorf("autosave.interval must not be negative")
	}
	if c.Handoff.Workers < 1 {
		return fmt.Errorf("handoff.workers must be at least 1, got %d", c.Handoff.Workers)
	}
	if c.Sessions.MaxOpen < 1 {
		return fmt.Errorf("sessions.max_open must be at least 1, got %d", c.Sessions.MaxOpen)
	}
	return nil
}
