// store.go: SQLite-backed activation store
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package sqlitestore provides a SQLite-backed goextend.ActivationStore.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	goextend "github.com/agilira/go-extend"
	"github.com/agilira/go-extend/store/sqlitestore/migrations"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const dsnOptions = "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"

// Store persists plugin and theme activation records in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ goextend.ActivationStore = (*Store)(nil)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	skipMigrations bool
	now            func() time.Time
}

// WithoutMigrations opens the database without installing the schema.
// Every store call then fails with goextend.ErrBackendUnavailable until the
// tables exist.
func WithoutMigrations() Option {
	return func(o *openOptions) {
		o.skipMigrations = true
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *openOptions) {
		o.now = now
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite activation store and applies embedded migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	options := openOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}

	cleanPath := filepath.Clean(path)
	sqlDB, err := sql.Open("sqlite", cleanPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if !options.skipMigrations {
		if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return &Store{sqlDB: sqlDB, now: options.now}, nil
}

// Migrate installs the schema on a store opened WithoutMigrations.
func (s *Store) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, s.sqlDB, migrations.FS)
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// UpsertPlugin implements goextend.PluginStore.
func (s *Store) UpsertPlugin(ctx context.Context, name, namespace, version string) (goextend.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", mapError("begin upsert plugin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentNamespace, currentVersion string
	err = tx.QueryRowContext(ctx,
		`SELECT namespace, version FROM plugins WHERE name = ?`, name,
	).Scan(&currentNamespace, &currentVersion)

	outcome := goextend.UpsertUpdated
	switch {
	case errors.Is(err, sql.ErrNoRows):
		outcome = goextend.UpsertCreated
	case err != nil:
		return "", mapError("read plugin", err)
	case currentNamespace == namespace && currentVersion == version:
		return goextend.UpsertUnchanged, nil
	}

	now := toMillis(s.now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO plugins (id, name, namespace, version, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   namespace = excluded.namespace,
		   version = excluded.version,
		   updated_at = excluded.updated_at`,
		uuid.NewString(), name, namespace, version, goextend.StatusInactive.String(), now, now,
	); err != nil {
		return "", mapError("upsert plugin", err)
	}
	if err := tx.Commit(); err != nil {
		return "", mapError("commit upsert plugin", err)
	}
	return outcome, nil
}

// SetPluginStatus implements goextend.PluginStore.
func (s *Store) SetPluginStatus(ctx context.Context, name string, status goextend.ModuleStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.IsValid() {
		return fmt.Errorf("invalid plugin status %q", status)
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE plugins SET status = ?, updated_at = ? WHERE name = ?`,
		status.String(), toMillis(s.now()), name,
	)
	if err != nil {
		return mapError("set plugin status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return mapError("set plugin status", err)
	}
	if rows == 0 {
		return fmt.Errorf("plugin %q: %w", name, goextend.ErrRecordNotFound)
	}
	return nil
}

const pluginColumns = `id, name, namespace, version, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlugin(row rowScanner) (goextend.PluginRecord, error) {
	var (
		record             goextend.PluginRecord
		status             string
		createdAt, updated int64
	)
	if err := row.Scan(&record.ID, &record.Name, &record.Namespace, &record.Version, &status, &createdAt, &updated); err != nil {
		return goextend.PluginRecord{}, err
	}
	parsed, err := goextend.ParseModuleStatus(status)
	if err != nil {
		return goextend.PluginRecord{}, err
	}
	record.Status = parsed
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updated)
	return record, nil
}

// GetPlugin implements goextend.PluginStore.
func (s *Store) GetPlugin(ctx context.Context, name string) (goextend.PluginRecord, error) {
	if err := ctx.Err(); err != nil {
		return goextend.PluginRecord{}, err
	}
	record, err := scanPlugin(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+pluginColumns+` FROM plugins WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goextend.PluginRecord{}, fmt.Errorf("plugin %q: %w", name, goextend.ErrRecordNotFound)
		}
		return goextend.PluginRecord{}, mapError("get plugin", err)
	}
	return record, nil
}

// ListPlugins implements goextend.PluginStore.
func (s *Store) ListPlugins(ctx context.Context) ([]goextend.PluginRecord, error) {
	return s.queryPlugins(ctx, "list plugins", `SELECT `+pluginColumns+` FROM plugins ORDER BY name`)
}

// ActivePlugins implements goextend.PluginStore.
func (s *Store) ActivePlugins(ctx context.Context) ([]goextend.PluginRecord, error) {
	return s.queryPlugins(ctx, "list active plugins",
		`SELECT `+pluginColumns+` FROM plugins WHERE status = ? ORDER BY name`,
		goextend.StatusActive.String())
}

func (s *Store) queryPlugins(ctx context.Context, op, query string, args ...any) ([]goextend.PluginRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	records := make([]goextend.PluginRecord, 0)
	for rows.Next() {
		record, err := scanPlugin(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return records, nil
}

// UpsertTheme implements goextend.ThemeStore.
func (s *Store) UpsertTheme(ctx context.Context, record goextend.ThemeRecord) (goextend.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", mapError("begin upsert theme", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current goextend.ThemeRecord
	err = tx.QueryRowContext(ctx,
		`SELECT name, version, author, parent_id FROM themes WHERE slug = ?`, record.Slug,
	).Scan(&current.Name, &current.Version, &current.Author, &current.ParentID)

	outcome := goextend.UpsertUpdated
	switch {
	case errors.Is(err, sql.ErrNoRows):
		outcome = goextend.UpsertCreated
	case err != nil:
		return "", mapError("read theme", err)
	case current.Name == record.Name && current.Version == record.Version &&
		current.Author == record.Author && current.ParentID == record.ParentID:
		return goextend.UpsertUnchanged, nil
	}

	now := toMillis(s.now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO themes (id, slug, name, version, author, parent_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(slug) DO UPDATE SET
		   name = excluded.name,
		   version = excluded.version,
		   author = excluded.author,
		   parent_id = excluded.parent_id,
		   updated_at = excluded.updated_at`,
		uuid.NewString(), record.Slug, record.Name, record.Version, record.Author, record.ParentID, now, now,
	); err != nil {
		return "", mapError("upsert theme", err)
	}
	if err := tx.Commit(); err != nil {
		return "", mapError("commit upsert theme", err)
	}
	return outcome, nil
}

const themeColumns = `id, slug, name, version, author, parent_id, is_active, created_at, updated_at`

func scanTheme(row rowScanner) (goextend.ThemeRecord, error) {
	var (
		record             goextend.ThemeRecord
		active             int
		createdAt, updated int64
	)
	if err := row.Scan(&record.ID, &record.Slug, &record.Name, &record.Version, &record.Author,
		&record.ParentID, &active, &createdAt, &updated); err != nil {
		return goextend.ThemeRecord{}, err
	}
	record.IsActive = active == 1
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updated)
	return record, nil
}

// GetTheme implements goextend.ThemeStore.
func (s *Store) GetTheme(ctx context.Context, slug string) (goextend.ThemeRecord, error) {
	if err := ctx.Err(); err != nil {
		return goextend.ThemeRecord{}, err
	}
	record, err := scanTheme(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+themeColumns+` FROM themes WHERE slug = ?`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goextend.ThemeRecord{}, fmt.Errorf("theme %q: %w", slug, goextend.ErrRecordNotFound)
		}
		return goextend.ThemeRecord{}, mapError("get theme", err)
	}
	return record, nil
}

// ListThemes implements goextend.ThemeStore.
func (s *Store) ListThemes(ctx context.Context) ([]goextend.ThemeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+themeColumns+` FROM themes ORDER BY slug`)
	if err != nil {
		return nil, mapError("list themes", err)
	}
	defer rows.Close()

	records := make([]goextend.ThemeRecord, 0)
	for rows.Next() {
		record, err := scanTheme(rows)
		if err != nil {
			return nil, mapError("list themes", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list themes", err)
	}
	return records, nil
}

// ActivateTheme implements goextend.ThemeStore. The flag is cleared and set
// in one transaction; the partial unique index rejects a second active row.
func (s *Store) ActivateTheme(ctx context.Context, slug string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin activate theme", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := toMillis(s.now())
	if _, err := tx.ExecContext(ctx,
		`UPDATE themes SET is_active = 0, updated_at = ? WHERE is_active = 1 AND slug <> ?`, now, slug,
	); err != nil {
		return mapError("clear active theme", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE themes SET is_active = 1, updated_at = CASE WHEN is_active = 1 THEN updated_at ELSE ? END WHERE slug = ?`,
		now, slug,
	)
	if err != nil {
		return mapError("set active theme", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return mapError("set active theme", err)
	}
	if rows == 0 {
		return fmt.Errorf("theme %q: %w", slug, goextend.ErrRecordNotFound)
	}
	if err := tx.Commit(); err != nil {
		return mapError("commit activate theme", err)
	}
	return nil
}

// ActiveTheme implements goextend.ThemeStore.
func (s *Store) ActiveTheme(ctx context.Context) (goextend.ThemeRecord, error) {
	if err := ctx.Err(); err != nil {
		return goextend.ThemeRecord{}, err
	}
	record, err := scanTheme(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+themeColumns+` FROM themes WHERE is_active = 1 LIMIT 1`))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goextend.ThemeRecord{}, fmt.Errorf("active theme: %w", goextend.ErrRecordNotFound)
		}
		return goextend.ThemeRecord{}, mapError("get active theme", err)
	}
	return record, nil
}

// mapError wraps err with op, adding goextend.ErrBackendUnavailable when the
// schema is missing.
func mapError(op string, err error) error {
	if isMissingTable(err) {
		return fmt.Errorf("%s: %w: %w", op, goextend.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such table")
}
