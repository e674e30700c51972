// testing_helpers_test.go: temporary plugin and theme trees for kernel tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testTree is a temporary directory holding a plugin root and a theme root.
type testTree struct {
	t       *testing.T
	root    string
	plugins string
	themes  string
}

func newTestTree(t *testing.T) *testTree {
	t.Helper()
	root := t.TempDir()
	return &testTree{
		t:       t,
		root:    root,
		plugins: filepath.Join(root, "plugins"),
		themes:  filepath.Join(root, "themes"),
	}
}

// writeFile creates path with content, creating parent directories.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o750))
}

// plugin writes plugins/{name}/plugin.json and returns the module directory.
func (tr *testTree) plugin(name, manifest string) string {
	tr.t.Helper()
	dir := filepath.Join(tr.plugins, filepath.FromSlash(name))
	writeFile(tr.t, filepath.Join(dir, "plugin.json"), manifest)
	return dir
}

// theme writes themes/{slug}/theme.json, or only the directory when manifest
// is empty, and returns the theme directory.
func (tr *testTree) theme(slug, manifest string) string {
	tr.t.Helper()
	dir := filepath.Join(tr.themes, slug)
	if manifest == "" {
		mkdir(tr.t, dir)
		return dir
	}
	writeFile(tr.t, filepath.Join(dir, "theme.json"), manifest)
	return dir
}

func (tr *testTree) config() Config {
	cfg := DefaultConfig()
	cfg.PluginRoot = tr.plugins
	cfg.ThemeRoot = tr.themes
	return cfg
}

// kernel builds a kernel over the tree with a capturing logger and a fresh
// memory store.
func (tr *testTree) kernel(opts ...Option) (*Kernel, *TestLogger) {
	tr.t.Helper()
	return tr.kernelWith(tr.config(), NewMemoryStore(), opts...)
}

func (tr *testTree) kernelWith(cfg Config, store ActivationStore, opts ...Option) (*Kernel, *TestLogger) {
	tr.t.Helper()
	logger := NewTestLogger()
	kernel, err := New(cfg, store, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(tr.t, err)
	tr.t.Cleanup(func() { _ = kernel.Close() })
	return kernel, logger
}

// argValue returns the value following key in a captured log entry.
func argValue(msg TestLogMessage, key string) (any, bool) {
	for i := 0; i+1 < len(msg.Args); i += 2 {
		if k, ok := msg.Args[i].(string); ok && k == key {
			return msg.Args[i+1], true
		}
	}
	return nil, false
}

// findMessage returns the first captured entry with level and message.
func findMessage(logger *TestLogger, level, message string) (TestLogMessage, bool) {
	for _, msg := range logger.Messages() {
		if msg.Level == level && msg.Message == message {
			return msg, true
		}
	}
	return TestLogMessage{}, false
}
