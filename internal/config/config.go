// Package config provides configuration file parsing for dirwatcher.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds defaults for the watch command. Command-line flags override
// any value set here.
type Config struct {
	// Extension is the file name suffix to watch
	Extension string

	// Interval is the time between poll cycles
	Interval time.Duration

	// ErrorBackoff is the extra pause after an unexpected cycle failure
	ErrorBackoff time.Duration

	// LogLevel sets the logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFormat is "text" or "json"
	LogFormat string

	// History enables recording runs and matches in the history database
	History bool

	// DBPath overrides the history database location
	DBPath string
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		Extension:    ".txt",
		Interval:     time.Second,
		ErrorBackoff: 4 * time.Second,
		LogLevel:     "info",
		LogFormat:    "text",
		History:      true,
	}
}

// Dir returns the dirwatcher config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/dirwatcher if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "dirwatcher"), nil
}

// DefaultPath returns {Dir}/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from path on top of the defaults.
// If the file does not exist, the defaults are returned without an error.
// A malformed file or an invalid value is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are strings so "1.5" (seconds) and "250ms" both work.
	var raw struct {
		Extension    *string `yaml:"extension"`
		Interval     string  `yaml:"interval"`
		ErrorBackoff string  `yaml:"error_backoff"`
		LogLevel     string  `yaml:"log_level"`
		LogFormat    string  `yaml:"log_format"`
		History      *bool   `yaml:"history"`
		DBPath       string  `yaml:"db_path"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if raw.Extension != nil {
		cfg.Extension = strings.TrimSpace(*raw.Extension)
	}
	if raw.Interval != "" {
		d, err := ParseSeconds(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", raw.Interval, err)
		}
		cfg.Interval = d
	}
	if raw.ErrorBackoff != "" {
		d, err := ParseSeconds(raw.ErrorBackoff)
		if err != nil {
			return nil, fmt.Errorf("invalid error_backoff %q: %w", raw.ErrorBackoff, err)
		}
		cfg.ErrorBackoff = d
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	if raw.LogFormat != "" {
		cfg.LogFormat = raw.LogFormat
	}
	if raw.History != nil {
		cfg.History = *raw.History
	}
	if raw.DBPath != "" {
		cfg.DBPath = raw.DBPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.Extension == "" {
		return fmt.Errorf("extension cannot be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.ErrorBackoff <= 0 {
		return fmt.Errorf("error_backoff must be positive, got %s", c.ErrorBackoff)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// ParseSeconds parses either a bare number of seconds ("1", "0.5") or a Go
// duration string ("250ms", "2s").
func ParseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
