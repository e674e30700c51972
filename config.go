// config.go: kernel configuration, file loading and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// Store drivers understood by the CLI and OpenStore helpers.
const (
	StoreDriverMemory = "memory"
	StoreDriverSQLite = "sqlite"
	StoreDriverBolt   = "bolt"
)

// Duration is a time.Duration that decodes from strings such as "2s" in JSON,
// YAML, TOML and environment variables.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// StoreConfig selects the activation store backend.
type StoreConfig struct {
	// Driver is one of "memory", "sqlite" or "bolt".
	Driver string `json:"driver" yaml:"driver" env:"DRIVER"`

	// DSN is the database file path for sqlite and bolt.
	DSN string `json:"dsn" yaml:"dsn" env:"DSN"`
}

// AuditSettings configures the activation audit trail.
type AuditSettings struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" env:"ENABLED"`
	OutputFile string `json:"output_file" yaml:"output_file" env:"OUTPUT_FILE"`
}

// WatchConfig configures the manifest watcher.
type WatchConfig struct {
	Enabled      bool     `json:"enabled" yaml:"enabled" env:"ENABLED"`
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// Config is the complete kernel configuration.
//
// Example YAML:
//
//	plugin_root: ${APP_HOME:-.}/plugins
//	theme_root: ${APP_HOME:-.}/themes
//	fallback_theme: default
//	fault_policy: isolate
//	store:
//	  driver: sqlite
//	  dsn: ./data/extend.db
//	audit:
//	  enabled: true
//	  output_file: ./data/audit.jsonl
type Config struct {
	PluginRoot         string   `json:"plugin_root" yaml:"plugin_root" env:"PLUGIN_ROOT"`
	ThemeRoot          string   `json:"theme_root" yaml:"theme_root" env:"THEME_ROOT"`
	FallbackTheme      string   `json:"fallback_theme" yaml:"fallback_theme" env:"FALLBACK_THEME"`
	NamespaceSeparator string   `json:"namespace_separator" yaml:"namespace_separator" env:"NAMESPACE_SEPARATOR"`
	SourceExtension    string   `json:"source_extension" yaml:"source_extension" env:"SOURCE_EXTENSION"`
	ViewExtension      string   `json:"view_extension" yaml:"view_extension" env:"VIEW_EXTENSION"`
	ViewPaths          []string `json:"view_paths" yaml:"view_paths" env:"VIEW_PATHS" envSeparator:","`
	FaultPolicy        string   `json:"fault_policy" yaml:"fault_policy" env:"FAULT_POLICY"`
	LogLevel           string   `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`

	Store StoreConfig   `json:"store" yaml:"store" envPrefix:"STORE_"`
	Audit AuditSettings `json:"audit" yaml:"audit" envPrefix:"AUDIT_"`
	Watch WatchConfig   `json:"watch" yaml:"watch" envPrefix:"WATCH_"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		PluginRoot:         "plugins",
		ThemeRoot:          "themes",
		FallbackTheme:      DefaultFallbackTheme,
		NamespaceSeparator: DefaultNamespaceSeparator,
		SourceExtension:    DefaultSourceExtension,
		ViewExtension:      DefaultViewExtension,
		FaultPolicy:        FaultPropagate.String(),
		LogLevel:           "info",
		Store: StoreConfig{
			Driver: StoreDriverMemory,
		},
		Watch: WatchConfig{
			PollInterval: Duration(2 * time.Second),
		},
	}
}

// LoadConfig reads path over DefaultConfig, then applies GOEXTEND_*
// environment overrides, expands ${VAR} references and validates.
// An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.ExpandEnv(DefaultEnvConfigOptions()); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - operator supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewConfigNotFoundError(cleanPath)
		}
		return NewConfigParseError(cleanPath, err)
	}
	if err := parseConfigWithHybridStrategy(data, argus.DetectFormat(cleanPath), cfg); err != nil {
		return NewConfigParseError(cleanPath, err)
	}
	return nil
}

// parseConfigWithHybridStrategy uses yaml.v3 for YAML and argus for the
// other formats, binding the parsed map through JSON.
func parseConfigWithHybridStrategy(data []byte, format argus.ConfigFormat, cfg *Config) error {
	if format == argus.FormatYAML {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
		return nil
	}

	configMap, err := argus.ParseConfig(data, format)
	if err != nil {
		return err
	}
	return bindConfigMap(configMap, cfg)
}

func bindConfigMap(configMap map[string]interface{}, cfg *Config) error {
	encoded, err := json.Marshal(configMap)
	if err != nil {
		return fmt.Errorf("failed to encode config map: %w", err)
	}
	if err := json.Unmarshal(encoded, cfg); err != nil {
		return fmt.Errorf("failed to bind config: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the kernel cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.PluginRoot) == "" {
		return NewConfigValidationError("plugin_root is required", nil)
	}
	if strings.TrimSpace(c.ThemeRoot) == "" {
		return NewConfigValidationError("theme_root is required", nil)
	}
	if c.NamespaceSeparator == "" {
		return NewConfigValidationError("namespace_separator cannot be empty", nil)
	}
	if _, err := ParseFaultPolicy(c.FaultPolicy); err != nil {
		return err
	}

	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverSQLite, StoreDriverBolt:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return NewConfigValidationError(fmt.Sprintf("store.dsn is required for driver %q", c.Store.Driver), nil)
		}
	default:
		return NewConfigValidationError(fmt.Sprintf("unknown store driver %q", c.Store.Driver), nil)
	}

	if c.Audit.Enabled && strings.TrimSpace(c.Audit.OutputFile) == "" {
		return NewConfigValidationError("audit.output_file is required when audit is enabled", nil)
	}
	if c.Watch.Enabled && c.Watch.PollInterval.Std() < 100*time.Millisecond {
		return NewConfigValidationError("watch.poll_interval must be at least 100ms", nil)
	}
	return nil
}

// Policy returns the parsed fault policy, defaulting to FaultPropagate.
func (c Config) Policy() FaultPolicy {
	policy, err := ParseFaultPolicy(c.FaultPolicy)
	if err != nil {
		return FaultPropagate
	}
	return policy
}
