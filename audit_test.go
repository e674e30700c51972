// audit_test.go: activation audit trail tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivationAuditor(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	tree.plugin("acme/blog", `{"name": "acme/blog"}`)

	cfg := tree.config()
	cfg.Audit.Enabled = true
	cfg.Audit.OutputFile = filepath.Join(t.TempDir(), "audit", "activation.jsonl")

	logger := NewTestLogger()
	kernel, err := New(cfg, NewMemoryStore(), WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, logger.HasMessage("INFO", "Activation audit trail configured"))

	_, err = kernel.Plugins().Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, kernel.Plugins().Activate(ctx, "acme/blog"))
	require.NoError(t, kernel.Close())

	data, err := os.ReadFile(cfg.Audit.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), AuditPluginActivated)
	assert.Contains(t, string(data), "acme/blog")
}

func TestActivationAuditor_Nil(t *testing.T) {
	var auditor *ActivationAuditor
	assert.NotPanics(t, func() {
		auditor.Record(AuditThemeActivated, KindTheme, "default", nil)
	})
	assert.NoError(t, auditor.Close())

	_, err := NewActivationAuditor("", nil)
	assert.True(t, HasErrorCode(err, ErrCodeConfigValidationError))
}
