// Package config provides configuration loading for pdbident.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDir is the per-user configuration directory under the home directory.
	DefaultDir = ".pdbident"
	// ConfigFile is the configuration file name.
	ConfigFile = "config.yaml"
	// DefaultProvider is the provider used when none is configured.
	DefaultProvider = "native"
)

// Environment variables that override file values.
const (
	EnvConfig     = "PDBIDENT_CONFIG"
	EnvProvider   = "PDBIDENT_PROVIDER"
	EnvLogLevel   = "PDBIDENT_LOG_LEVEL"
	EnvLogPretty  = "PDBIDENT_LOG_PRETTY"
	fallbackLevel = "warn"
)

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "disabled": true, "off": true, "none": true,
}

// Config is the pdbident configuration.
type Config struct {
	// Provider names the symbol provider to bootstrap.
	Provider string    `yaml:"provider"`
	Log      LogConfig `yaml:"log"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: DefaultProvider,
		Log: LogConfig{
			Level:  fallbackLevel,
			Pretty: true,
		},
	}
}

// Loader reads the configuration file.
type Loader struct {
	path   string
	getenv func(string) string
}

// NewLoader creates a loader for path. An empty path resolves to
// $PDBIDENT_CONFIG, then ~/.pdbident/config.yaml.
func NewLoader(path string) *Loader {
	return newLoader(path, os.Getenv)
}

func newLoader(path string, getenv func(string) string) *Loader {
	if path == "" {
		path = getenv(EnvConfig)
	}
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, DefaultDir, ConfigFile)
		}
	}
	return &Loader{path: path, getenv: getenv}
}

// Path returns the configuration file path, or "" if none could be resolved.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the configuration file, falling back to defaults when it does
// not exist, then applies environment overrides and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		//nolint:gosec // G304: path comes from the operator.
		data, err := os.ReadFile(l.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", l.path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", l.path, err)
			}
		}
	}

	if err := MergeFromEnv(cfg, l.getenv); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFromEnv applies PDBIDENT_* overrides to cfg.
func MergeFromEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvProvider); v != "" {
		cfg.Provider = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv(EnvLogPretty); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvLogPretty, v, err)
		}
		cfg.Log.Pretty = pretty
	}
	return nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider) == "" {
		return fmt.Errorf("provider must not be empty")
	}
	if c.Log.Level == "" {
		c.Log.Level = fallbackLevel
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
