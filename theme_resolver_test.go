// theme_resolver_test.go: theme sync, switching, fallback and initialization tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemeResolver_SyncAndActivate(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	tree.theme("default", `{"name": "Default", "version": "1.0"}`)
	tree.theme("dark-mode", "")
	kernel, _ := tree.kernel()
	themes := kernel.Themes()
	events := hookRecorder(t, kernel.Hooks(), HookThemeSwitched)

	report, err := themes.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dark-mode", "default"}, report.Created)

	records, err := themes.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Dark Mode", records[0].Name)
	for _, record := range records {
		assert.False(t, record.IsActive)
	}

	t.Run("ExactlyOneActive", func(t *testing.T) {
		require.NoError(t, themes.Activate(ctx, "default"))
		require.NoError(t, themes.Activate(ctx, "dark-mode"))

		records, err := themes.List(ctx)
		require.NoError(t, err)
		var active []string
		for _, record := range records {
			if record.IsActive {
				active = append(active, record.Slug)
			}
		}
		assert.Equal(t, []string{"dark-mode"}, active)
		assert.Equal(t, []string{"theme_switched:default", "theme_switched:dark-mode"}, *events)
	})

	t.Run("SyncKeepsActiveFlag", func(t *testing.T) {
		report, err := themes.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"dark-mode", "default"}, report.Unchanged)

		active, err := kernel.Store().ActiveTheme(ctx)
		require.NoError(t, err)
		assert.Equal(t, "dark-mode", active.Slug)
	})

	t.Run("UnknownThemeKeepsCurrent", func(t *testing.T) {
		err := themes.Activate(ctx, "ghost")
		assert.True(t, HasErrorCode(err, ErrCodeUnknownModule))

		active, err := kernel.Store().ActiveTheme(ctx)
		require.NoError(t, err)
		assert.Equal(t, "dark-mode", active.Slug)
	})
}

func TestThemeResolver_LoadActive(t *testing.T) {
	ctx := context.Background()

	t.Run("FallbackWhenNothingActive", func(t *testing.T) {
		tree := newTestTree(t)
		dir := tree.theme("default", `{"name": "Default"}`)
		kernel, _ := tree.kernel()

		theme, err := kernel.Themes().LoadActive(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, theme)
		assert.Equal(t, "default", theme.Slug)
		assert.Equal(t, dir, theme.Dir)
		assert.False(t, theme.Fallback)
		assert.Equal(t, "Default", theme.Manifest.Name)
		assert.Same(t, theme, kernel.Themes().Current())
	})

	t.Run("StoredActiveTheme", func(t *testing.T) {
		tree := newTestTree(t)
		tree.theme("default", "")
		tree.theme("dark-mode", "")
		kernel, _ := tree.kernel()
		_, err := kernel.Themes().Sync(ctx)
		require.NoError(t, err)
		require.NoError(t, kernel.Themes().Activate(ctx, "dark-mode"))

		theme, err := kernel.Themes().LoadActive(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "dark-mode", theme.Slug)
		assert.True(t, theme.Manifest.Synthesized)
	})

	t.Run("MissingThemeFallsBack", func(t *testing.T) {
		tree := newTestTree(t)
		tree.theme("default", "")
		kernel, logger := tree.kernel()

		theme, err := kernel.Themes().LoadActive(ctx, "vanished")
		require.NoError(t, err)
		require.NotNil(t, theme)
		assert.Equal(t, "default", theme.Slug)
		assert.True(t, theme.Fallback)
		assert.True(t, logger.HasMessage("WARN", "Theme not found"))
	})

	t.Run("MissingFallbackLoadsNothing", func(t *testing.T) {
		tree := newTestTree(t)
		kernel, _ := tree.kernel()
		events := hookRecorder(t, kernel.Hooks(), HookThemeLoaded)

		theme, err := kernel.Themes().LoadActive(ctx, "vanished")
		require.NoError(t, err)
		assert.Nil(t, theme)
		assert.Nil(t, kernel.Themes().Current())
		assert.Empty(t, *events)
	})

	t.Run("SlugCannotEscapeRoot", func(t *testing.T) {
		tree := newTestTree(t)
		tree.theme("default", "")
		kernel, _ := tree.kernel()

		theme, err := kernel.Themes().LoadActive(ctx, "../plugins")
		require.NoError(t, err)
		assert.Equal(t, "default", theme.Slug)
		assert.True(t, theme.Fallback)
	})

	t.Run("MalformedManifestIsSynthesized", func(t *testing.T) {
		tree := newTestTree(t)
		tree.theme("default", `{"name": `)
		kernel, _ := tree.kernel()

		theme, err := kernel.Themes().LoadActive(ctx, "")
		require.NoError(t, err)
		assert.True(t, theme.Manifest.Synthesized)
		assert.Equal(t, "Default", theme.Manifest.Name)
	})

	t.Run("UnprovisionedStoreUsesFallback", func(t *testing.T) {
		tree := newTestTree(t)
		tree.theme("default", "")
		kernel, _ := tree.kernelWith(tree.config(), NewUnprovisionedMemoryStore())

		theme, err := kernel.Themes().LoadActive(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "default", theme.Slug)
	})

	t.Run("ConfiguredFallback", func(t *testing.T) {
		tree := newTestTree(t)
		tree.theme("classic", "")
		cfg := tree.config()
		cfg.FallbackTheme = "classic"
		kernel, _ := tree.kernelWith(cfg, nil)

		theme, err := kernel.Themes().LoadActive(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "classic", theme.Slug)
		assert.Equal(t, "classic", kernel.Themes().Fallback())
	})
}

func TestThemeResolver_InstallsViews(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	dir := tree.theme("default", "")
	writeFile(t, filepath.Join(dir, "views", "layouts", "app.html"), "<main></main>")
	tree.theme("bare", "")

	base := filepath.Join(tree.root, "app-views")
	writeFile(t, filepath.Join(base, "layouts", "app.html"), "<base></base>")
	views := NewViewFinder(".html", base)
	kernel, _ := tree.kernel(WithViewResolver(views))

	t.Run("ThemeViewsTakePrecedence", func(t *testing.T) {
		theme, err := kernel.Themes().LoadActive(ctx, "default")
		require.NoError(t, err)

		assert.Equal(t, []string{theme.ViewsDir, base}, views.Locations())
		path, err := views.Find("layouts.app")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "views", "layouts", "app.html"), path)

		path, err = views.Find("theme::layouts.app")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "views", "layouts", "app.html"), path)
	})

	t.Run("ThemeWithoutViewsInstallsNothing", func(t *testing.T) {
		before := views.Locations()
		_, err := kernel.Themes().LoadActive(ctx, "bare")
		require.NoError(t, err)
		assert.Equal(t, before, views.Locations())
	})
}

func TestThemeResolver_Initializer(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	tree.theme("default", "")
	tree.theme("failing", "")

	calls := 0
	initErr := errors.New("init failed")
	kernel, _ := tree.kernel(
		WithThemeInitializer("default", func(k *Kernel, theme *LoadedTheme) error {
			calls++
			assert.Equal(t, "default", theme.Slug)
			return nil
		}),
		WithThemeInitializer("failing", func(*Kernel, *LoadedTheme) error {
			return initErr
		}),
	)

	t.Run("RunsOncePerProcess", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := kernel.Themes().LoadActive(ctx, "default")
			require.NoError(t, err)
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("FailureIsReportedOnce", func(t *testing.T) {
		theme, err := kernel.Themes().LoadActive(ctx, "failing")
		assert.Nil(t, theme)
		assert.True(t, HasErrorCode(err, ErrCodeThemeInit))
		assert.ErrorIs(t, err, initErr)

		theme, err = kernel.Themes().LoadActive(ctx, "failing")
		require.NoError(t, err)
		assert.Equal(t, "failing", theme.Slug)
	})
}

// Test: the manifest parent is stored and survives repeated syncs
func TestThemeResolver_SyncKeepsParent(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	tree.theme("child", `{"name": "Child", "parent": "default"}`)
	kernel, _ := tree.kernel()
	themes := kernel.Themes()

	_, err := themes.Sync(ctx)
	require.NoError(t, err)
	report, err := themes.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"child"}, report.Unchanged)

	records, err := themes.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "default", records[0].ParentID)
}

// Test: a failed initializer leaves the view locations untouched and a retry
// installs the views exactly once
func TestThemeResolver_ViewsAfterInit(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	failing := tree.theme("failing", "")
	writeFile(t, filepath.Join(failing, "views", "home.html"), "<h1>failing</h1>")
	other := tree.theme("other", "")
	writeFile(t, filepath.Join(other, "views", "home.html"), "<h1>other</h1>")

	views := NewViewFinder("")
	kernel, _ := tree.kernel(
		WithViewResolver(views),
		WithThemeInitializer("failing", func(*Kernel, *LoadedTheme) error {
			return errors.New("init failed")
		}))
	failingViews := filepath.Join(failing, "views")
	otherViews := filepath.Join(other, "views")

	_, err := kernel.Themes().LoadActive(ctx, "failing")
	require.Error(t, err)
	assert.Empty(t, views.Locations())
	assert.Empty(t, views.NamespaceDirs(ThemeViewNamespace))

	for i := 0; i < 2; i++ {
		_, err = kernel.Themes().LoadActive(ctx, "failing")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{failingViews}, views.Locations())
	assert.Equal(t, []string{failingViews}, views.NamespaceDirs(ThemeViewNamespace))

	// Switching back puts the theme first again.
	_, err = kernel.Themes().LoadActive(ctx, "other")
	require.NoError(t, err)
	_, err = kernel.Themes().LoadActive(ctx, "failing")
	require.NoError(t, err)
	assert.Equal(t, failingViews, views.Locations()[0])
	assert.Equal(t, otherViews, views.Locations()[1])
}

func TestThemeResolver_ThemeLoadedHook(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	tree.theme("default", "")
	kernel, _ := tree.kernel()
	events := hookRecorder(t, kernel.Hooks(), HookThemeLoaded)

	_, err := kernel.Themes().LoadActive(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"theme_loaded:default"}, *events)
}

func TestThemeResolver_AssetURL(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	tree.theme("dark", "")
	cfg := tree.config()
	cfg.FallbackTheme = "dark"
	kernel, _ := tree.kernelWith(cfg, NewMemoryStore())
	themes := kernel.Themes()

	// Before any load the fallback slug is used.
	assert.Equal(t, "/themes/dark/assets/app.css", themes.AssetURL("assets/app.css"))

	theme, err := themes.LoadActive(ctx, "dark")
	require.NoError(t, err)
	assert.Equal(t, "/themes/dark/assets/logo.svg", theme.AssetURL("/assets/logo.svg"))
	assert.Equal(t, "/themes/dark/style.css", themes.AssetURL("style.css"))
	assert.Equal(t, "/themes/default/x.js", ThemeAssetURL("default", "//x.js"))
}
