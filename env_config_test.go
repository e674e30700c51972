// env_config_test.go: ${VAR} expansion precedence and value validation tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvironmentVariables_Precedence(t *testing.T) {
	options := EnvConfigOptions{
		Prefix:    "GOEXTEND_",
		Overrides: map[string]string{"EXT_OVERRIDDEN": "override", "EXT_BARE": "override"},
		Defaults:  map[string]string{"EXT_DEFAULTED": "default", "EXT_INLINE": "default"},
	}
	t.Setenv("GOEXTEND_EXT_PREFIXED", "prefixed")
	t.Setenv("EXT_PREFIXED", "bare")
	t.Setenv("EXT_BARE", "bare")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "PrefixedWinsOverBare", input: "${EXT_PREFIXED}", expected: "prefixed"},
		{name: "BareWinsOverOverride", input: "${EXT_BARE}", expected: "bare"},
		{name: "Override", input: "${EXT_OVERRIDDEN}", expected: "override"},
		{name: "InlineWinsOverDefaults", input: "${EXT_INLINE:-inline}", expected: "inline"},
		{name: "Defaults", input: "${EXT_DEFAULTED}", expected: "default"},
		{name: "UnresolvedIsEmpty", input: "a${EXT_UNSET}b", expected: "ab"},
		{name: "NoReferences", input: "/plain/path", expected: "/plain/path"},
		{name: "Several", input: "${EXT_BARE}/${EXT_INLINE:-x}/${EXT_DEFAULTED}", expected: "bare/x/default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expanded, err := ExpandEnvironmentVariables(tt.input, options)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, expanded)
		})
	}
}

func TestExpandEnvironmentVariables_NoPrefix(t *testing.T) {
	t.Setenv("EXT_ONLY", "bare")

	expanded, err := ExpandEnvironmentVariables("${EXT_ONLY}", EnvConfigOptions{})
	require.NoError(t, err)
	assert.Equal(t, "bare", expanded)
}

func TestExpandEnvironmentVariables_Errors(t *testing.T) {
	t.Run("FailOnMissing", func(t *testing.T) {
		_, err := ExpandEnvironmentVariables("${EXT_REQUIRED}", EnvConfigOptions{Prefix: EnvPrefix, FailOnMissing: true})
		require.Error(t, err)
		assert.True(t, HasErrorCode(err, ErrCodeConfigValidationError))
	})

	invalid := map[string]string{
		"NullByte":         "a\x00b",
		"ControlCharacter": "a\x01b",
		"Newline":          "line\nbreak",
		"TooLong":          strings.Repeat("x", maxEnvValueLength+1),
	}
	for name, value := range invalid {
		t.Run(name, func(t *testing.T) {
			options := EnvConfigOptions{
				ValidateValues: true,
				Overrides:      map[string]string{"EXT_VALUE": value},
			}
			_, err := ExpandEnvironmentVariables("${EXT_VALUE}", options)
			assert.True(t, HasErrorCode(err, ErrCodeConfigValidationError))
		})
	}

	t.Run("TabIsAllowed", func(t *testing.T) {
		options := EnvConfigOptions{
			ValidateValues: true,
			Overrides:      map[string]string{"EXT_VALUE": "a\tb"},
		}
		expanded, err := ExpandEnvironmentVariables("${EXT_VALUE}", options)
		require.NoError(t, err)
		assert.Equal(t, "a\tb", expanded)
	})

	t.Run("ValidationDisabled", func(t *testing.T) {
		options := EnvConfigOptions{Overrides: map[string]string{"EXT_VALUE": "a\x01b"}}
		expanded, err := ExpandEnvironmentVariables("${EXT_VALUE}", options)
		require.NoError(t, err)
		assert.Equal(t, "a\x01b", expanded)
	})
}

func TestConfig_ExpandEnv(t *testing.T) {
	t.Setenv("EXT_HOME", "/home/ext")

	cfg := DefaultConfig()
	cfg.PluginRoot = "${EXT_HOME}/plugins"
	cfg.ThemeRoot = "${EXT_HOME}/themes"
	cfg.Store.DSN = "${EXT_HOME}/extend.db"
	cfg.Audit.OutputFile = "${EXT_AUDIT:-/var/log}/audit.jsonl"
	cfg.ViewPaths = []string{"${EXT_HOME}/views"}

	require.NoError(t, cfg.ExpandEnv(DefaultEnvConfigOptions()))
	assert.Equal(t, "/home/ext/plugins", cfg.PluginRoot)
	assert.Equal(t, "/home/ext/themes", cfg.ThemeRoot)
	assert.Equal(t, "/home/ext/extend.db", cfg.Store.DSN)
	assert.Equal(t, "/var/log/audit.jsonl", cfg.Audit.OutputFile)
	assert.Equal(t, []string{"/home/ext/views"}, cfg.ViewPaths)

	options := DefaultEnvConfigOptions()
	options.FailOnMissing = true
	cfg.ThemeRoot = "${EXT_NOT_SET}"
	err := cfg.ExpandEnv(options)
	assert.True(t, HasErrorCode(err, ErrCodeConfigValidationError))
}

func TestApplyEnv_LeavesUnsetFields(t *testing.T) {
	t.Setenv("GOEXTEND_THEME_ROOT", "/env/themes")

	cfg := DefaultConfig()
	cfg.PluginRoot = "/kept/plugins"
	require.NoError(t, ApplyEnv(&cfg))
	assert.Equal(t, "/kept/plugins", cfg.PluginRoot)
	assert.Equal(t, "/env/themes", cfg.ThemeRoot)
}
