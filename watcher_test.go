// watcher_test.go: manifest watcher resync and lifecycle tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agilira/argus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryWatcher_Refresh(t *testing.T) {
	tree := newTestTree(t)
	blog := tree.plugin("acme/blog", `{"name": "acme/blog"}`)
	dark := tree.theme("dark", `{"name": "Dark"}`)
	bare := tree.theme("bare", "")
	kernel, _ := tree.kernel()

	watcher := NewDiscoveryWatcher(kernel, 50*time.Millisecond)
	require.NoError(t, watcher.refresh(context.Background()))

	assert.ElementsMatch(t, []string{
		tree.plugins,
		tree.themes,
		filepath.Join(tree.plugins, "acme"),
		filepath.Join(blog, "plugin.json"),
		filepath.Join(dark, "theme.json"),
		bare,
	}, watcher.WatchedPaths())
}

// Test: only changes under a discovery root trigger a resync.
func TestDiscoveryWatcher_HandleChange(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	tree.plugin("acme/blog", `{"name": "acme/blog"}`)
	kernel, logger := tree.kernel()

	watcher := NewDiscoveryWatcher(kernel, 50*time.Millisecond)
	require.NoError(t, watcher.refresh(ctx))

	shop := tree.plugin("acme/shop", `{"name": "acme/shop"}`)
	watcher.handleChange(argus.ChangeEvent{Path: filepath.Join(shop, "plugin.json"), IsCreate: true})
	assert.Equal(t, int64(1), watcher.Syncs())

	records, err := kernel.Plugins().List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "acme/shop", records[1].Name)
	assert.Contains(t, watcher.WatchedPaths(), filepath.Join(shop, "plugin.json"))

	tree.theme("light", "")
	watcher.handleChange(argus.ChangeEvent{Path: tree.themes, IsModify: true})
	assert.Equal(t, int64(2), watcher.Syncs())
	themes, err := kernel.Themes().List(ctx)
	require.NoError(t, err)
	require.Len(t, themes, 1)
	assert.Equal(t, "light", themes[0].Slug)

	watcher.handleChange(argus.ChangeEvent{Path: filepath.Join(t.TempDir(), "elsewhere.json")})
	assert.Equal(t, int64(2), watcher.Syncs())
	assert.True(t, logger.HasMessage("DEBUG", "Manifest change detected"))
}

func TestDiscoveryWatcher_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	tree.plugin("acme/blog", `{"name": "acme/blog"}`)
	kernel, logger := tree.kernel()

	watcher := NewDiscoveryWatcher(kernel, 50*time.Millisecond)
	assert.False(t, watcher.IsRunning())

	require.NoError(t, watcher.Start(ctx))
	assert.True(t, watcher.IsRunning())
	assert.True(t, logger.HasMessage("INFO", "Discovery watcher started"))

	err := watcher.Start(ctx)
	assert.True(t, HasErrorCode(err, ErrCodeConfigWatcherError))

	require.NoError(t, watcher.Stop())
	assert.False(t, watcher.IsRunning())
	assert.NoError(t, watcher.Stop())

	err = watcher.Start(ctx)
	assert.True(t, HasErrorCode(err, ErrCodeConfigWatcherError))
}

func TestIsWithin(t *testing.T) {
	root := filepath.Join("srv", "plugins")
	tests := []struct {
		path     string
		expected bool
	}{
		{path: root, expected: true},
		{path: filepath.Join(root, "acme", "blog", "plugin.json"), expected: true},
		{path: filepath.Join("srv", "plugins-old", "x"), expected: false},
		{path: filepath.Join("srv", "themes"), expected: false},
		{path: "srv", expected: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, isWithin(root, tt.path), tt.path)
	}
}
