// store_test.go: SQLite activation store tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	goextend "github.com/agilira/go-extend"
	"github.com/agilira/go-extend/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "extend.db"), opts...)
	require.NoError(t, err)
	return store
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) goextend.ActivationStore {
		return openTemp(t)
	})
}

// Test: a database without the schema behaves as an unprovisioned backend.
func TestStoreWithoutMigrations(t *testing.T) {
	storetest.RunUnavailable(t, func(t *testing.T) goextend.ActivationStore {
		return openTemp(t, WithoutMigrations())
	})
}

func TestMigrate(t *testing.T) {
	t.Run("ProvisionsSkippedSchema", func(t *testing.T) {
		ctx := context.Background()
		store := openTemp(t, WithoutMigrations())
		defer store.Close()

		_, err := store.ListPlugins(ctx)
		require.True(t, goextend.IsBackendUnavailable(err))

		require.NoError(t, store.Migrate(ctx))
		records, err := store.ListPlugins(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("IsIdempotent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "extend.db")
		first, err := Open(path)
		require.NoError(t, err)
		_, err = first.UpsertPlugin(context.Background(), "acme/blog", "", "1.0.0")
		require.NoError(t, err)
		require.NoError(t, first.Close())

		second, err := Open(path)
		require.NoError(t, err)
		defer second.Close()

		var version int
		require.NoError(t, second.sqlDB.QueryRow("PRAGMA user_version").Scan(&version))
		assert.Equal(t, 1, version)

		record, err := second.GetPlugin(context.Background(), "acme/blog")
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", record.Version)
	})
}

// Test: the partial unique index refuses a second active theme.
func TestSingleActiveIndex(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	defer store.Close()

	for _, slug := range []string{"default", "dark"} {
		_, err := store.UpsertTheme(ctx, goextend.ThemeRecord{Slug: slug, Name: slug})
		require.NoError(t, err)
	}
	require.NoError(t, store.ActivateTheme(ctx, "default"))

	_, err := store.sqlDB.ExecContext(ctx, `UPDATE themes SET is_active = 1 WHERE slug = 'dark'`)
	require.Error(t, err)
}

func TestMigrationVersion(t *testing.T) {
	version, err := migrationVersion("001_activation.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	for _, name := range []string{"activation.sql", "abc_activation.sql", "000_zero.sql"} {
		_, err := migrationVersion(name)
		assert.Error(t, err, name)
	}
}

// Test: files are ordered by number, not by name, and duplicates are refused.
func TestSchemaVersions(t *testing.T) {
	versions, err := schemaVersions(fstest.MapFS{
		"10_later.sql": {Data: []byte("SELECT 1;")},
		"2_early.sql":  {Data: []byte("SELECT 1;")},
		"README.md":    {Data: []byte("notes")},
	})
	require.NoError(t, err)
	assert.Equal(t, []schemaVersion{{2, "2_early.sql"}, {10, "10_later.sql"}}, versions)

	_, err = schemaVersions(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"1_b.sql":   {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
