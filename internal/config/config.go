// Package config loads the rgraph configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogLevel is a slog level name.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l names a known level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// Level converts l to a slog.Level. Unknown or empty levels are info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root of the configuration file.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Types     TypesConfig     `yaml:"types"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
}

type LogConfig struct {
	Level LogLevel `yaml:"level"`
}

// StoreConfig configures snapshot persistence. An empty path disables the
// store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// TypesConfig lists directories or files of CUE type definitions.
type TypesConfig struct {
	Paths []string `yaml:"paths"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type RuntimeConfig struct {
	// AutoConnect connects every behaviour when its instance is created.
	AutoConnect bool `yaml:"auto_connect"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:       LogConfig{Level: LogLevelInfo},
		Telemetry: TelemetryConfig{ServiceName: "rgraph"},
		Runtime:   RuntimeConfig{AutoConnect: true},
	}
}

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over Default and validates
// it. Unknown fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns a joined error listing every invalid value.
func (c *Config) Validate() error {
	var errs []error
	if c.Log.Level != "" && !c.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", c.Log.Level))
	}
	for i, p := range c.Types.Paths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("types.paths[%d] is empty", i))
		}
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		errs = append(errs, errors.New("telemetry.service_name is required when telemetry is enabled"))
	}
	return errors.Join(errs...)
}
