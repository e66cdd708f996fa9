// Package config provides configuration management for the filemutex CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aki/filemutex"
)

// ConfigFile is the filename for the filemutex configuration
const ConfigFile = "config.yaml"

// Config represents the filemutex CLI configuration
type Config struct {
	Lock LockConfig `yaml:"lock"`
	Log  LogConfig  `yaml:"log"`
}

// LockConfig controls how lock files are derived and acquired
type LockConfig struct {
	// Suffix is appended to a resource path to derive its lock file path
	Suffix string `yaml:"suffix"`
	// RetryInterval is the poll interval for deadline-based acquisition
	RetryInterval Duration `yaml:"retryInterval"`
	// Timeout bounds blocking acquisitions started by CLI commands;
	// zero means wait indefinitely
	Timeout Duration `yaml:"timeout"`
}

// LogConfig controls CLI logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "5s"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
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

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Lock: LockConfig{
			Suffix:        filemutex.DefaultSuffix,
			RetryInterval: Duration(filemutex.DefaultRetryInterval),
			Timeout:       0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the conventional config file location for the
// current user.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "filemutex", ConfigFile)
}

// Load reads the configuration from path. A missing file is not an
// error: defaults are returned so the CLI works without any setup.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(cfg)

	return cfg, nil
}

// Save writes the configuration to path, creating parent directories as
// needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyDefaults fills fields a partial config file left empty
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Lock.Suffix == "" {
		cfg.Lock.Suffix = def.Lock.Suffix
	}
	if cfg.Lock.RetryInterval == 0 {
		cfg.Lock.RetryInterval = def.Lock.RetryInterval
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}
