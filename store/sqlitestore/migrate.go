// migrate.go: embedded schema versions tracked by PRAGMA user_version
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

type schemaVersion struct {
	version int
	file    string
}

// applyMigrations runs every NNN_name.sql file of migrationFS whose number is
// above the database's user_version. Each file and its version bump share one
// transaction.
func applyMigrations(ctx context.Context, sqlDB *sql.DB, migrationFS fs.FS) error {
	versions, err := schemaVersions(migrationFS)
	if err != nil {
		return err
	}

	var current int
	if err := sqlDB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, v := range versions {
		if v.version <= current {
			continue
		}
		content, err := fs.ReadFile(migrationFS, v.file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", v.file, err)
		}

		tx, err := sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", v.file, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", v.file, err)
		}
		// PRAGMA takes no bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", v.file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", v.file, err)
		}
		current = v.version
	}
	return nil
}

// schemaVersions lists the *.sql files at the root of migrationFS in version
// order. Two files with the same number are rejected.
func schemaVersions(migrationFS fs.FS) ([]schemaVersion, error) {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var versions []schemaVersion
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := migrationVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, entry.Name(), version)
		}
		seen[version] = entry.Name()
		versions = append(versions, schemaVersion{version: version, file: entry.Name()})
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].version < versions[j].version })
	return versions, nil
}

// migrationVersion parses the leading number of a file such as
// 001_activation.sql.
func migrationVersion(name string) (int, error) {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, fmt.Errorf("migration %s has no version prefix", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("migration %s has an invalid version prefix", name)
	}
	return version, nil
}
