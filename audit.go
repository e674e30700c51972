// audit.go: activation audit trail backed by the argus audit logger
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"os"
	"path/filepath"
	"time"

	"github.com/agilira/argus"
)

// Audit event types written by the kernel.
const (
	AuditPluginActivated   = "plugin_activated"
	AuditPluginDeactivated = "plugin_deactivated"
	AuditPluginBroken      = "plugin_marked_broken"
	AuditThemeActivated    = "theme_activated"
	AuditPluginsSynced     = "plugins_synced"
	AuditThemesSynced      = "themes_synced"
)

// ActivationAuditor records committed activation transitions.
//
// A nil *ActivationAuditor is valid and records nothing, so components call
// it unconditionally.
type ActivationAuditor struct {
	auditLogger *argus.AuditLogger
	logger      Logger
}

// NewActivationAuditor opens the audit file. The parent directory is created
// when missing.
func NewActivationAuditor(outputFile string, logger Logger) (*ActivationAuditor, error) {
	logger = NewLogger(logger)
	if outputFile == "" {
		return nil, NewConfigValidationError("audit output file is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outputFile), 0750); err != nil {
		return nil, NewConfigValidationError("failed to create audit directory", err)
	}

	auditLogger, err := argus.NewAuditLogger(argus.AuditConfig{
		Enabled:       true,
		OutputFile:    outputFile,
		MinLevel:      argus.AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		return nil, NewConfigValidationError("failed to create audit logger", err)
	}

	logger.Info("Activation audit trail configured", "file", outputFile)
	return &ActivationAuditor{auditLogger: auditLogger, logger: logger}, nil
}

// Record writes one audit event.
func (a *ActivationAuditor) Record(eventType string, kind ModuleKind, name string, details map[string]interface{}) {
	if a == nil || a.auditLogger == nil {
		return
	}
	context := map[string]interface{}{
		"kind": kind.String(),
		"name": name,
	}
	for k, v := range details {
		context[k] = v
	}
	a.auditLogger.LogSecurityEvent(eventType, "Extension activation event", context)
}

// Close flushes and closes the audit file.
func (a *ActivationAuditor) Close() error {
	if a == nil || a.auditLogger == nil {
		return nil
	}
	if err := a.auditLogger.Close(); err != nil {
		a.logger.Warn("Failed to close audit logger", "error", err)
		return err
	}
	return nil
}
