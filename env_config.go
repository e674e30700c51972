// env_config.go: environment overrides and ${VAR} expansion for kernel configuration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override read by ApplyEnv.
const EnvPrefix = "GOEXTEND_"

// maxEnvValueLength bounds expanded values.
const maxEnvValueLength = 4096

var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// EnvConfigOptions configures ${VAR} expansion.
//
// Example usage:
//
//	options := EnvConfigOptions{
//	    Prefix:         "GOEXTEND_",
//	    FailOnMissing:  true,
//	    ValidateValues: true,
//	}
type EnvConfigOptions struct {
	// Prefix is tried before the bare variable name.
	Prefix string `json:"prefix" yaml:"prefix"`

	// FailOnMissing turns an unresolved variable into an error.
	FailOnMissing bool `json:"fail_on_missing" yaml:"fail_on_missing"`

	// ValidateValues rejects null bytes, control characters and oversize values.
	ValidateValues bool `json:"validate_values" yaml:"validate_values"`

	Defaults  map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Overrides map[string]string `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// DefaultEnvConfigOptions returns the options LoadConfig uses.
func DefaultEnvConfigOptions() EnvConfigOptions {
	return EnvConfigOptions{
		Prefix:         EnvPrefix,
		ValidateValues: true,
		Defaults:       make(map[string]string),
		Overrides:      make(map[string]string),
	}
}

// ApplyEnv overlays GOEXTEND_* environment variables onto cfg. Unset
// variables leave the current value untouched.
//
// Recognized variables include GOEXTEND_PLUGIN_ROOT, GOEXTEND_THEME_ROOT,
// GOEXTEND_FAULT_POLICY, GOEXTEND_STORE_DRIVER, GOEXTEND_STORE_DSN,
// GOEXTEND_AUDIT_ENABLED and GOEXTEND_WATCH_POLL_INTERVAL.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return NewConfigValidationError("failed to apply environment overrides", err)
	}
	return nil
}

// ExpandEnvironmentVariables expands ${VAR} and ${VAR:-default} in input.
//
// A variable resolves from, in order: Prefix+VAR in the environment, VAR in
// the environment, Overrides, the inline default, Defaults. An unresolved
// variable expands to "" unless FailOnMissing is set.
//
// Example:
//
//	expanded, err := ExpandEnvironmentVariables("${APP_HOME:-/srv}/plugins", options)
func ExpandEnvironmentVariables(input string, options EnvConfigOptions) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var firstErr error
	result := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		if firstErr != nil {
			return match
		}
		submatches := variablePattern.FindStringSubmatch(match)
		expanded, err := expandSingleEnvironmentVariable(submatches[1], submatches[3], options)
		if err != nil {
			firstErr = err
			return match
		}
		return expanded
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func expandSingleEnvironmentVariable(varName, inlineDefault string, options EnvConfigOptions) (string, error) {
	prefixedName := options.Prefix + varName
	if options.Prefix != "" {
		if value := os.Getenv(prefixedName); value != "" {
			return validateAndSanitizeValue(value, options)
		}
	}
	if value := os.Getenv(varName); value != "" {
		return validateAndSanitizeValue(value, options)
	}
	if value, exists := options.Overrides[varName]; exists {
		return validateAndSanitizeValue(value, options)
	}
	if inlineDefault != "" {
		return validateAndSanitizeValue(inlineDefault, options)
	}
	if value, exists := options.Defaults[varName]; exists {
		return validateAndSanitizeValue(value, options)
	}

	if options.FailOnMissing {
		return "", NewConfigValidationError(fmt.Sprintf("required environment variable not found: %s (also tried %s)", varName, prefixedName), nil)
	}
	return "", nil
}

func validateAndSanitizeValue(value string, options EnvConfigOptions) (string, error) {
	if !options.ValidateValues {
		return value, nil
	}
	if strings.Contains(value, "\x00") {
		return "", NewConfigValidationError("environment variable value contains null byte", nil)
	}
	if len(value) > maxEnvValueLength {
		return "", NewConfigValidationError(fmt.Sprintf("environment variable value too long: %d bytes (max %d)", len(value), maxEnvValueLength), nil)
	}
	for i, r := range value {
		if r < 32 && r != '\t' {
			return "", NewConfigValidationError(fmt.Sprintf("environment variable contains control character at position %d", i), nil)
		}
	}
	return value, nil
}

// ExpandEnv expands ${VAR} references in every path-like field of c.
func (c *Config) ExpandEnv(options EnvConfigOptions) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"plugin_root", &c.PluginRoot},
		{"theme_root", &c.ThemeRoot},
		{"fallback_theme", &c.FallbackTheme},
		{"store.dsn", &c.Store.DSN},
		{"audit.output_file", &c.Audit.OutputFile},
	}
	for _, field := range fields {
		expanded, err := ExpandEnvironmentVariables(*field.value, options)
		if err != nil {
			return NewConfigValidationError("failed to expand "+field.name, err)
		}
		*field.value = expanded
	}

	for i, path := range c.ViewPaths {
		expanded, err := ExpandEnvironmentVariables(path, options)
		if err != nil {
			return NewConfigValidationError(fmt.Sprintf("failed to expand view_paths[%d]", i), err)
		}
		c.ViewPaths[i] = expanded
	}
	return nil
}
