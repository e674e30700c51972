// storetest.go: conformance suite shared by every activation store backend
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package storetest checks goextend.ActivationStore implementations against
// the behavior the kernel relies on.
//
// Example usage:
//
//	func TestStoreConformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) goextend.ActivationStore {
//	        store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "extend.db"))
//	        require.NoError(t, err)
//	        return store
//	    })
//	}
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	goextend "github.com/agilira/go-extend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, provisioned store. The suite closes it.
type Factory func(t *testing.T) goextend.ActivationStore

// Run executes the conformance suite.
func Run(t *testing.T, open Factory) {
	t.Helper()

	fresh := func(t *testing.T) goextend.ActivationStore {
		store := open(t)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}

	t.Run("UpsertPluginOutcomes", func(t *testing.T) {
		ctx := context.Background()
		store := fresh(t)

		outcome, err := store.UpsertPlugin(ctx, "acme/blog", `Acme\Blog\`, "1.0.0")
		require.NoError(t, err)
		assert.Equal(t, goextend.UpsertCreated, outcome)

		outcome, err = store.UpsertPlugin(ctx, "acme/blog", `Acme\Blog\`, "1.0.0")
		require.NoError(t, err)
		assert.Equal(t, goextend.UpsertUnchanged, outcome)

		outcome, err = store.UpsertPlugin(ctx, "acme/blog", `Acme\Blog\`, "1.1.0")
		require.NoError(t, err)
		assert.Equal(t, goextend.UpsertUpdated, outcome)

		record, err := store.GetPlugin(ctx, "acme/blog")
		require.NoError(t, err)
		assert.NotEmpty(t, record.ID)
		assert.Equal(t, "1.1.0", record.Version)
		assert.Equal(t, goextend.StatusInactive, record.Status)
	})

	t.Run("UpsertPreservesStatus", func(t *testing.T) {
		ctx := context.Background()
		store := fresh(t)

		_, err := store.UpsertPlugin(ctx, "acme/blog", "", "1.0.0")
		require.NoError(t, err)
		require.NoError(t, store.SetPluginStatus(ctx, "acme/blog", goextend.StatusActive))

		_, err = store.UpsertPlugin(ctx, "acme/blog", "", "2.0.0")
		require.NoError(t, err)

		record, err := store.GetPlugin(ctx, "acme/blog")
		require.NoError(t, err)
		assert.Equal(t, goextend.StatusActive, record.Status)
	})

	t.Run("UnknownPlugin", func(t *testing.T) {
		ctx := context.Background()
		store := fresh(t)

		_, err := store.GetPlugin(ctx, "ghost/plugin")
		assert.True(t, errors.Is(err, goextend.ErrRecordNotFound), "got %v", err)

		err = store.SetPluginStatus(ctx, "ghost/plugin", goextend.StatusActive)
		assert.True(t, errors.Is(err, goextend.ErrRecordNotFound), "got %v", err)

		records, err := store.ListPlugins(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("ActivePluginsOrderedByName", func(t *testing.T) {
		ctx := context.Background()
		store := fresh(t)

		for _, name := range []string{"zeta/z", "alpha/a", "mid/m", "beta/b"} {
			_, err := store.UpsertPlugin(ctx, name, "", "1.0.0")
			require.NoError(t, err)
		}
		require.NoError(t, store.SetPluginStatus(ctx, "zeta/z", goextend.StatusActive))
		require.NoError(t, store.SetPluginStatus(ctx, "alpha/a", goextend.StatusActive))
		require.NoError(t, store.SetPluginStatus(ctx, "mid/m", goextend.StatusBroken))

		active, err := store.ActivePlugins(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha/a", "zeta/z"}, pluginNames(active))

		all, err := store.ListPlugins(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha/a", "beta/b", "mid/m", "zeta/z"}, pluginNames(all))
	})

	t.Run("UpsertThemeIgnoresActiveFlag", func(t *testing.T) {
		ctx := context.Background()
		store := fresh(t)

		outcome, err := store.UpsertTheme(ctx, goextend.ThemeRecord{Slug: "default", Name: "Default", IsActive: true})
		require.NoError(t, err)
		assert.Equal(t, goextend.UpsertCreated, outcome)

		_, err = store.ActiveTheme(ctx)
		assert.True(t, errors.Is(err, goextend.ErrRecordNotFound), "got %v", err)

		outcome, err = store.UpsertTheme(ctx, goextend.ThemeRecord{Slug: "default", Name: "Default"})
		require.NoError(t, err)
		assert.Equal(t, goextend.UpsertUnchanged, outcome)

		outcome, err = store.UpsertTheme(ctx, goextend.ThemeRecord{Slug: "default", Name: "Default", Version: "2.0"})
		require.NoError(t, err)
		assert.Equal(t, goextend.UpsertUpdated, outcome)
	})

	t.Run("UpsertThemeStoresParent", func(t *testing.T) {
		ctx := context.Background()
		store := fresh(t)

		child := goextend.ThemeRecord{Slug: "child", Name: "Child", ParentID: "default"}
		_, err := store.UpsertTheme(ctx, child)
		require.NoError(t, err)

		outcome, err := store.UpsertTheme(ctx, child)
		require.NoError(t, err)
		assert.Equal(t, goextend.UpsertUnchanged, outcome)

		record, err := store.GetTheme(ctx, "child")
		require.NoError(t, err)
		assert.Equal(t, "default", record.ParentID)
	})

	t.Run("ExactlyOneActiveTheme", func(t *testing.T) {
		ctx := context.Background()
		store := fresh(t)

		for _, slug := range []string{"default", "dark", "light"} {
			_, err := store.UpsertTheme(ctx, goextend.ThemeRecord{Slug: slug, Name: slug})
			require.NoError(t, err)
		}

		for _, target := range []string{"dark", "light", "light", "default"} {
			require.NoError(t, store.ActivateTheme(ctx, target))

			themes, err := store.ListThemes(ctx)
			require.NoError(t, err)
			active := 0
			for _, theme := range themes {
				if theme.IsActive {
					active++
					assert.Equal(t, target, theme.Slug)
				}
			}
			assert.Equal(t, 1, active, "after activating %s", target)

			current, err := store.ActiveTheme(ctx)
			require.NoError(t, err)
			assert.Equal(t, target, current.Slug)
		}
	})

	t.Run("ActivateUnknownThemeKeepsCurrent", func(t *testing.T) {
		ctx := context.Background()
		store := fresh(t)

		_, err := store.UpsertTheme(ctx, goextend.ThemeRecord{Slug: "default", Name: "Default"})
		require.NoError(t, err)
		require.NoError(t, store.ActivateTheme(ctx, "default"))

		err = store.ActivateTheme(ctx, "ghost")
		assert.True(t, errors.Is(err, goextend.ErrRecordNotFound), "got %v", err)

		current, err := store.ActiveTheme(ctx)
		require.NoError(t, err)
		assert.Equal(t, "default", current.Slug)

		_, err = store.GetTheme(ctx, "ghost")
		assert.True(t, errors.Is(err, goextend.ErrRecordNotFound), "got %v", err)
	})

	t.Run("ConcurrentThemeSwitches", func(t *testing.T) {
		ctx := context.Background()
		store := fresh(t)

		slugs := []string{"a", "b", "c", "d"}
		for _, slug := range slugs {
			_, err := store.UpsertTheme(ctx, goextend.ThemeRecord{Slug: slug, Name: slug})
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(slug string) {
				defer wg.Done()
				_ = store.ActivateTheme(ctx, slug)
			}(slugs[i%len(slugs)])
		}
		wg.Wait()

		themes, err := store.ListThemes(ctx)
		require.NoError(t, err)
		active := 0
		for _, theme := range themes {
			if theme.IsActive {
				active++
			}
		}
		assert.Equal(t, 1, active)
	})
}

// RunUnavailable checks that an unprovisioned store reports
// goextend.ErrBackendUnavailable from every call.
func RunUnavailable(t *testing.T, open Factory) {
	t.Helper()

	store := open(t)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	calls := map[string]func() error{
		"UpsertPlugin": func() error {
			_, err := store.UpsertPlugin(ctx, "acme/blog", "", "1.0.0")
			return err
		},
		"ListPlugins": func() error {
			_, err := store.ListPlugins(ctx)
			return err
		},
		"ActivePlugins": func() error {
			_, err := store.ActivePlugins(ctx)
			return err
		},
		"ListThemes": func() error {
			_, err := store.ListThemes(ctx)
			return err
		},
		"ActiveTheme": func() error {
			_, err := store.ActiveTheme(ctx)
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.True(t, goextend.IsBackendUnavailable(err), "got %v", err)
		})
	}
}

func pluginNames(records []goextend.PluginRecord) []string {
	names := make([]string, 0, len(records))
	for _, record := range records {
		names = append(names, record.Name)
	}
	return names
}
