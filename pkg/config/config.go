// Package config provides configuration loading and management for goelastix.
// Configuration is read from YAML (default) or TOML files, chosen by
// extension, and can be overridden from the environment.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"goelastix/internal/logging"
)

// Environment variables that override file settings
const (
	EnvElastixPath     = "GOELASTIX_ELASTIX_PATH"
	EnvTransformixPath = "GOELASTIX_TRANSFORMIX_PATH"
	EnvLogLevel        = logging.EnvLogLevel
)

// DefaultConfigFile is read from the working directory when no path is given
const DefaultConfigFile = "goelastix.yaml"

const (
	defaultKillGrace   = 5 * time.Second
	defaultLogLevel    = "info"
	defaultElastixPath = "elastix"
)

// Config represents the application configuration
type Config struct {
	// Tools locates the external executables
	Tools struct {
		// ElastixPath is the elastix executable, looked up on PATH if bare
		ElastixPath string `yaml:"elastixPath" toml:"elastixPath"`

		// TransformixPath is the transformix executable
		TransformixPath string `yaml:"transformixPath" toml:"transformixPath"`
	} `yaml:"tools" toml:"tools"`

	// Run controls how the tools are invoked
	Run struct {
		// Verbose forwards the tools' standard output to the terminal
		Verbose bool `yaml:"verbose" toml:"verbose"`

		// Strict rejects half-specified image or point-set pairs
		Strict bool `yaml:"strict" toml:"strict"`

		// WatchOutput logs result files as the tools write them
		WatchOutput bool `yaml:"watchOutput" toml:"watchOutput"`

		// KillGrace is the wait between SIGTERM and SIGKILL on cancellation
		KillGrace Duration `yaml:"killGrace" toml:"killGrace"`
	} `yaml:"run" toml:"run"`

	Log struct {
		Level   string `yaml:"level" toml:"level"`
		Console bool   `yaml:"console" toml:"console"`
	} `yaml:"log" toml:"log"`
}

// Duration is a time.Duration written as a string such as "5s"
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler for YAML and TOML
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for YAML and TOML
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Tools.ElastixPath = defaultElastixPath
	cfg.Tools.TransformixPath = "transformix"

	cfg.Run.Verbose = false
	cfg.Run.Strict = false
	cfg.Run.WatchOutput = false
	cfg.Run.KillGrace = Duration(defaultKillGrace)

	cfg.Log.Level = defaultLogLevel
	cfg.Log.Console = true

	return cfg
}

// isTOML reports whether path should be read and written as TOML
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file.
// If the file doesn't exist, it returns the default configuration.
// Environment overrides are applied in both cases.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
			// defaults
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		case isTOML(configPath):
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from GOELASTIX_* environment variables
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvElastixPath)); v != "" {
		c.Tools.ElastixPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTransformixPath)); v != "" {
		c.Tools.TransformixPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the configuration for values the tools cannot work with
func (c *Config) Validate() error {
	if c.Tools.ElastixPath == "" {
		return fmt.Errorf("tools.elastixPath must not be empty")
	}
	if c.Tools.TransformixPath == "" {
		return fmt.Errorf("tools.transformixPath must not be empty")
	}
	if c.Run.KillGrace < 0 {
		return fmt.Errorf("run.killGrace must not be negative")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
