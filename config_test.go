// config_test.go: configuration defaults, file loading and validation tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"path/filepath"
	"testing"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "plugins", cfg.PluginRoot)
	assert.Equal(t, "themes", cfg.ThemeRoot)
	assert.Equal(t, DefaultFallbackTheme, cfg.FallbackTheme)
	assert.Equal(t, `\`, cfg.NamespaceSeparator)
	assert.Equal(t, ".go", cfg.SourceExtension)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, FaultPropagate, cfg.Policy())
	assert.Equal(t, 2*time.Second, cfg.Watch.PollInterval.Std())
}

func TestLoadConfig_Files(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML", func(t *testing.T) {
		t.Setenv("APP_HOME", "/srv/app")
		path := filepath.Join(dir, "extend.yaml")
		writeFile(t, path, `plugin_root: ${APP_HOME}/plugins
theme_root: ${THEMES_DIR:-/srv/themes}
fault_policy: isolate
view_paths:
  - ${APP_HOME}/views
store:
  driver: sqlite
  dsn: ${APP_HOME}/extend.db
watch:
  enabled: true
  poll_interval: 750ms
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "/srv/app/plugins", cfg.PluginRoot)
		assert.Equal(t, "/srv/themes", cfg.ThemeRoot)
		assert.Equal(t, []string{"/srv/app/views"}, cfg.ViewPaths)
		assert.Equal(t, FaultIsolate, cfg.Policy())
		assert.Equal(t, StoreConfig{Driver: StoreDriverSQLite, DSN: "/srv/app/extend.db"}, cfg.Store)
		assert.Equal(t, 750*time.Millisecond, cfg.Watch.PollInterval.Std())

		// Unset fields keep their defaults.
		assert.Equal(t, DefaultFallbackTheme, cfg.FallbackTheme)
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "extend.json")
		writeFile(t, path, `{
  "plugin_root": "/opt/plugins",
  "store": {"driver": "bolt", "dsn": "/opt/extend.bolt"},
  "watch": {"enabled": true, "poll_interval": "3s"}
}`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "/opt/plugins", cfg.PluginRoot)
		assert.Equal(t, "themes", cfg.ThemeRoot)
		assert.Equal(t, StoreDriverBolt, cfg.Store.Driver)
		assert.Equal(t, 3*time.Second, cfg.Watch.PollInterval.Std())
	})

	t.Run("TOML", func(t *testing.T) {
		path := filepath.Join(dir, "extend.toml")
		writeFile(t, path, "plugin_root = \"/opt/toml-plugins\"\nfallback_theme = \"classic\"\n")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "/opt/toml-plugins", cfg.PluginRoot)
		assert.Equal(t, "classic", cfg.FallbackTheme)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "absent.yaml"))
		assert.True(t, HasErrorCode(err, ErrCodeConfigNotFound))
	})

	t.Run("MalformedFile", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		writeFile(t, path, "plugin_root: [unterminated\n")

		_, err := LoadConfig(path)
		assert.True(t, HasErrorCode(err, ErrCodeConfigParseError))
	})

	t.Run("InvalidAfterLoad", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.yaml")
		writeFile(t, path, "store:\n  driver: sqlite\n")

		_, err := LoadConfig(path)
		assert.True(t, HasErrorCode(err, ErrCodeConfigValidationError))
	})
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GOEXTEND_PLUGIN_ROOT", "/env/plugins")
	t.Setenv("GOEXTEND_FAULT_POLICY", "isolate")
	t.Setenv("GOEXTEND_VIEW_PATHS", "/env/views,/env/shared")
	t.Setenv("GOEXTEND_STORE_DRIVER", "bolt")
	t.Setenv("GOEXTEND_STORE_DSN", "/env/extend.bolt")
	t.Setenv("GOEXTEND_AUDIT_ENABLED", "true")
	t.Setenv("GOEXTEND_AUDIT_OUTPUT_FILE", "/env/audit.jsonl")
	t.Setenv("GOEXTEND_WATCH_POLL_INTERVAL", "250ms")

	path := filepath.Join(t.TempDir(), "extend.yaml")
	writeFile(t, path, "plugin_root: /file/plugins\ntheme_root: /file/themes\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/plugins", cfg.PluginRoot)
	assert.Equal(t, "/file/themes", cfg.ThemeRoot)
	assert.Equal(t, FaultIsolate, cfg.Policy())
	assert.Equal(t, []string{"/env/views", "/env/shared"}, cfg.ViewPaths)
	assert.Equal(t, StoreConfig{Driver: StoreDriverBolt, DSN: "/env/extend.bolt"}, cfg.Store)
	assert.Equal(t, AuditSettings{Enabled: true, OutputFile: "/env/audit.jsonl"}, cfg.Audit)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.PollInterval.Std())
}

func TestLoadConfig_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("GOEXTEND_WATCH_POLL_INTERVAL", "soon")

	_, err := LoadConfig("")
	assert.True(t, HasErrorCode(err, ErrCodeConfigValidationError))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "EmptyPluginRoot", mutate: func(c *Config) { c.PluginRoot = " " }},
		{name: "EmptyThemeRoot", mutate: func(c *Config) { c.ThemeRoot = "" }},
		{name: "EmptySeparator", mutate: func(c *Config) { c.NamespaceSeparator = "" }},
		{name: "UnknownPolicy", mutate: func(c *Config) { c.FaultPolicy = "retry" }},
		{name: "UnknownDriver", mutate: func(c *Config) { c.Store.Driver = "redis" }},
		{name: "BoltWithoutDSN", mutate: func(c *Config) { c.Store.Driver = StoreDriverBolt }},
		{name: "AuditWithoutFile", mutate: func(c *Config) { c.Audit.Enabled = true }},
		{name: "WatchTooFast", mutate: func(c *Config) {
			c.Watch.Enabled = true
			c.Watch.PollInterval = Duration(10 * time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var structured *goerrors.Error
			require.ErrorAs(t, err, &structured)
			assert.Equal(t, goerrors.ErrorCode(ErrCodeConfigValidationError), structured.Code)
		})
	}

	t.Run("InvalidConfigRejectedByNew", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.PluginRoot = ""
		_, err := New(cfg, nil)
		assert.True(t, HasErrorCode(err, ErrCodeConfigValidationError))
	})
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 1m30s ")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("later")))
}
