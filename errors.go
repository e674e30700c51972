// errors.go: structured error definitions for the go-extend kernel
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	stderrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for the go-extend kernel
const (
	// Discovery errors (1000-1099)
	ErrCodeDiscoveryError    = "DISCOVERY_1001"
	ErrCodeManifestParse     = "DISCOVERY_1002"
	ErrCodeDuplicateModule   = "DISCOVERY_1003"
	ErrCodeInvalidModuleName = "DISCOVERY_1004"

	// Activation errors (1100-1199)
	ErrCodeUnknownModule    = "ACTIVATION_1101"
	ErrCodeActivationFailed = "ACTIVATION_1102"

	// Loader errors (1200-1299)
	ErrCodeResolutionMiss   = "LOADER_1201"
	ErrCodeInvalidNamespace = "LOADER_1202"

	// Hook errors (1300-1399)
	ErrCodeCallbackFault = "HOOK_1301"
	ErrCodeInvalidHook   = "HOOK_1302"

	// Store errors (1400-1499)
	ErrCodeBackendUnavailable = "STORE_1401"

	// Boot errors (1500-1599)
	ErrCodeProviderNotFound = "BOOT_1501"
	ErrCodeProviderFailed   = "BOOT_1502"
	ErrCodeBootManifest     = "BOOT_1503"

	// Theme errors (1600-1699)
	ErrCodeThemeInit   = "THEME_1601"
	ErrCodeThemeScript = "THEME_1602"

	// Configuration errors (1700-1799)
	ErrCodeConfigNotFound        = "CONFIG_1701"
	ErrCodeConfigParseError      = "CONFIG_1702"
	ErrCodeConfigValidationError = "CONFIG_1703"
	ErrCodeConfigWatcherError    = "CONFIG_1704"
)

// Store sentinels. Backends wrap these with %w so callers can use errors.Is.
var (
	// ErrBackendUnavailable reports that the activation store has not been provisioned yet.
	ErrBackendUnavailable = stderrors.New("activation store backend unavailable")

	// ErrRecordNotFound reports that no activation record matches the requested key.
	ErrRecordNotFound = stderrors.New("activation record not found")
)

// Discovery error constructors

func NewDiscoveryError(message string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeDiscoveryError, "Discovery error: "+message).
		WithUserMessage("Module discovery failed").
		WithSeverity("warning")
}

func NewManifestParseError(path string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeManifestParse, "Manifest parse error").
		WithUserMessage("The module manifest could not be parsed").
		WithContext("manifest_path", path).
		WithSeverity("warning")
}

func NewDuplicateModuleError(name, path, firstPath string) *errors.Error {
	return errors.New(ErrCodeDuplicateModule, "Duplicate module name").
		WithUserMessage("Module names must be unique per module kind").
		WithContext("module_name", name).
		WithContext("path", path).
		WithContext("first_path", firstPath).
		WithSeverity("warning")
}

func NewInvalidModuleNameError(name, reason string) *errors.Error {
	return errors.New(ErrCodeInvalidModuleName, "Invalid module name").
		WithUserMessage("Module name contains forbidden characters").
		WithContext("module_name", name).
		WithContext("reason", reason).
		WithSeverity("warning")
}

// Activation error constructors

func NewUnknownModuleError(kind, name string) *errors.Error {
	return errors.New(ErrCodeUnknownModule, "Unknown "+kind).
		WithUserMessage("No activation record exists for the requested "+kind).
		WithContext("kind", kind).
		WithContext("name", name).
		WithSeverity("error")
}

func NewActivationFailedError(kind, name string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeActivationFailed, "Activation failed").
		WithUserMessage("The activation state could not be persisted").
		WithContext("kind", kind).
		WithContext("name", name).
		WithSeverity("error").
		AsRetryable()
}

// Loader error constructors

func NewResolutionMissError(symbol, candidate string) *errors.Error {
	return errors.New(ErrCodeResolutionMiss, "Symbol not resolved").
		WithUserMessage("No registered namespace resolves the requested symbol").
		WithContext("symbol", symbol).
		WithContext("candidate", candidate).
		WithSeverity("info")
}

func NewInvalidNamespaceError(prefix, dir string) *errors.Error {
	return errors.New(ErrCodeInvalidNamespace, "Invalid namespace mapping").
		WithUserMessage("A namespace mapping requires a base directory").
		WithContext("prefix", prefix).
		WithContext("directory", dir).
		WithSeverity("error")
}

// Hook error constructors

func NewCallbackFaultError(hook, owner string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeCallbackFault, "Hook callback fault").
		WithUserMessage("A hook callback failed and was isolated").
		WithContext("hook", hook).
		WithContext("owner", owner).
		WithSeverity("error")
}

func NewInvalidHookError(reason string) *errors.Error {
	return errors.New(ErrCodeInvalidHook, "Invalid hook registration").
		WithUserMessage("Hook registrations require a name and a callback").
		WithContext("reason", reason).
		WithSeverity("error")
}

// Store error constructors

func NewBackendUnavailableError(cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeBackendUnavailable, "Activation store unavailable").
		WithUserMessage("The activation store is not provisioned yet").
		WithSeverity("warning")
}

// Boot error constructors

func NewProviderNotFoundError(module, provider string) *errors.Error {
	return errors.New(ErrCodeProviderNotFound, "Provider not found").
		WithUserMessage("The module declares a provider that is not in the provider table").
		WithContext("module", module).
		WithContext("provider", provider).
		WithSeverity("error")
}

func NewProviderFailedError(module, provider, phase string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeProviderFailed, "Provider failed").
		WithUserMessage("A module provider failed during boot").
		WithContext("module", module).
		WithContext("provider", provider).
		WithContext("phase", phase).
		WithSeverity("error")
}

func NewBootManifestError(module string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeBootManifest, "Module manifest unavailable at boot").
		WithUserMessage("An active module could not be loaded from disk").
		WithContext("module", module).
		WithSeverity("warning")
}

// Theme error constructors

func NewThemeInitError(slug string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeThemeInit, "Theme initialization failed").
		WithUserMessage("The theme initializer returned an error").
		WithContext("theme", slug).
		WithSeverity("error")
}

func NewThemeScriptError(slug, path string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeThemeScript, "Theme script failed").
		WithUserMessage("The theme script could not be executed").
		WithContext("theme", slug).
		WithContext("script", path).
		WithSeverity("error")
}

// Configuration error constructors

func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The specified configuration file does not exist").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeConfigParseError, "Configuration parse error").
		WithUserMessage("Failed to parse the configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeConfigValidationError, "Configuration validation error: "+message).
		WithUserMessage("The configuration contains invalid values").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return wrapOrNew(cause, ErrCodeConfigWatcherError, "Watcher error: "+message).
		WithUserMessage("The file watcher encountered an error").
		WithSeverity("warning")
}

// wrapOrNew wraps cause when present so constructors accept a nil cause.
func wrapOrNew(cause error, code errors.ErrorCode, message string) *errors.Error {
	if cause == nil {
		return errors.New(code, message)
	}
	return errors.Wrap(cause, code, message)
}

// HasErrorCode reports whether err, or an error it wraps, is a go-errors
// value carrying code.
func HasErrorCode(err error, code errors.ErrorCode) bool {
	var structured *errors.Error
	if stderrors.As(err, &structured) {
		return structured.Code == code
	}
	return false
}

// IsResolutionMiss reports whether err is a non-fatal loader miss.
func IsResolutionMiss(err error) bool {
	return HasErrorCode(err, ErrCodeResolutionMiss)
}

// IsBackendUnavailable reports whether err means the store is not provisioned.
func IsBackendUnavailable(err error) bool {
	return stderrors.Is(err, ErrBackendUnavailable) || HasErrorCode(err, ErrCodeBackendUnavailable)
}
