// views_test.go: view location precedence and namespace lookup tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewFinder(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	theme := filepath.Join(root, "theme")
	admin := filepath.Join(root, "admin")
	writeFile(t, filepath.Join(app, "home.html"), "app home")
	writeFile(t, filepath.Join(app, "partials", "nav.html"), "app nav")
	writeFile(t, filepath.Join(theme, "home.html"), "theme home")
	writeFile(t, filepath.Join(admin, "dashboard.tpl"), "admin")

	views := NewViewFinder("", app)

	t.Run("BaseLocation", func(t *testing.T) {
		path, err := views.Find("partials.nav")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(app, "partials", "nav.html"), path)
	})

	t.Run("PrependedLocationWins", func(t *testing.T) {
		views.PrependLocation(theme)
		path, err := views.Find("home")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(theme, "home.html"), path)

		// Falls through to later locations.
		path, err = views.Find("partials.nav")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(app, "partials", "nav.html"), path)
	})

	t.Run("AppendedLocationIsLast", func(t *testing.T) {
		views.AppendLocation(admin)
		assert.Equal(t, []string{theme, app, admin}, views.Locations())
	})

	t.Run("Namespaces", func(t *testing.T) {
		views.AddNamespace("theme", app)
		views.AddNamespace("theme", theme)
		assert.Equal(t, []string{theme, app}, views.NamespaceDirs("theme"))

		path, err := views.Find("theme::partials.nav")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(app, "partials", "nav.html"), path)

		_, err = views.Find("unknown::home")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := views.Find("nothing.here")
		assert.ErrorIs(t, err, os.ErrNotExist)

		_, err = views.Find("theme::")
		assert.Error(t, err)
	})

	t.Run("CustomExtension", func(t *testing.T) {
		tpl := NewViewFinder("tpl", admin)
		path, err := tpl.Find("dashboard")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(admin, "dashboard.tpl"), path)
	})
}

func TestAssetQueue(t *testing.T) {
	queue := NewAssetQueue()
	queue.EnqueueStyle(Asset{Handle: "main", Src: "/main.css"})
	queue.EnqueueStyle(Asset{Handle: "print", Src: "/print.css", Media: "print"})
	queue.EnqueueScript(Asset{Handle: "app", Src: "/app.js", InFooter: true})
	queue.EnqueueScript(Asset{Handle: "vendor", Src: "/vendor.js"})

	// Re-enqueueing a handle replaces it in place.
	queue.EnqueueStyle(Asset{Handle: "main", Src: "/main.v2.css", Version: "2"})

	assert.Equal(t, []Asset{
		{Handle: "main", Src: "/main.v2.css", Version: "2", Media: "all"},
		{Handle: "print", Src: "/print.css", Media: "print"},
	}, queue.Styles())
	assert.Equal(t, []Asset{{Handle: "app", Src: "/app.js", InFooter: true}}, queue.Scripts(true))
	assert.Equal(t, []Asset{{Handle: "vendor", Src: "/vendor.js"}}, queue.Scripts(false))

	styles := queue.Styles()
	styles[0].Src = "mutated"
	assert.Equal(t, "/main.v2.css", queue.Styles()[0].Src)
}
