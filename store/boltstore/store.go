// store.go: BoltDB-backed activation store
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

// Package boltstore provides a BoltDB-backed goextend.ActivationStore.
//
// Records are JSON documents keyed by plugin name in the "plugins" bucket and
// by theme slug in the "themes" bucket. Cursor order gives name-ordered
// listings.
package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	goextend "github.com/agilira/go-extend"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	pluginBucket = "plugins"
	themeBucket  = "themes"
)

var errStop = errors.New("stop iteration")

// Store persists activation records in BoltDB.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ goextend.ActivationStore = (*Store)(nil)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	skipBuckets bool
	now         func() time.Time
}

// WithoutBuckets opens the database without creating the buckets. Every
// store call then fails with goextend.ErrBackendUnavailable until Provision.
func WithoutBuckets() Option {
	return func(o *openOptions) {
		o.skipBuckets = true
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *openOptions) {
		o.now = now
	}
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	options := openOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db, now: options.now}
	if !options.skipBuckets {
		if err := store.Provision(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store, nil
}

// Provision creates the buckets when missing.
func (s *Store) Provision() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{pluginBucket, themeBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func bucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("%s bucket is missing: %w", name, goextend.ErrBackendUnavailable)
	}
	return b, nil
}

func getPlugin(b *bbolt.Bucket, name string) (goextend.PluginRecord, bool, error) {
	payload := b.Get([]byte(name))
	if payload == nil {
		return goextend.PluginRecord{}, false, nil
	}
	var record goextend.PluginRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return goextend.PluginRecord{}, false, fmt.Errorf("decode plugin %q: %w", name, err)
	}
	return record, true, nil
}

func putPlugin(b *bbolt.Bucket, record goextend.PluginRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal plugin: %w", err)
	}
	return b.Put([]byte(record.Name), payload)
}

// UpsertPlugin implements goextend.PluginStore.
func (s *Store) UpsertPlugin(ctx context.Context, name, namespace, version string) (goextend.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var outcome goextend.UpsertOutcome
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, pluginBucket)
		if err != nil {
			return err
		}
		record, ok, err := getPlugin(b, name)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		switch {
		case !ok:
			record = goextend.PluginRecord{
				ID:        uuid.NewString(),
				Name:      name,
				Namespace: namespace,
				Version:   version,
				Status:    goextend.StatusInactive,
				CreatedAt: now,
				UpdatedAt: now,
			}
			outcome = goextend.UpsertCreated
		case record.Namespace == namespace && record.Version == version:
			outcome = goextend.UpsertUnchanged
			return nil
		default:
			record.Namespace = namespace
			record.Version = version
			record.UpdatedAt = now
			outcome = goextend.UpsertUpdated
		}
		return putPlugin(b, record)
	})
	if err != nil {
		return "", err
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

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, pluginBucket)
		if err != nil {
			return err
		}
		record, ok, err := getPlugin(b, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("plugin %q: %w", name, goextend.ErrRecordNotFound)
		}
		record.Status = status
		record.UpdatedAt = s.now().UTC()
		return putPlugin(b, record)
	})
}

// GetPlugin implements goextend.PluginStore.
func (s *Store) GetPlugin(ctx context.Context, name string) (goextend.PluginRecord, error) {
	if err := ctx.Err(); err != nil {
		return goextend.PluginRecord{}, err
	}

	var record goextend.PluginRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, pluginBucket)
		if err != nil {
			return err
		}
		found, ok, err := getPlugin(b, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("plugin %q: %w", name, goextend.ErrRecordNotFound)
		}
		record = found
		return nil
	})
	return record, err
}

// ListPlugins implements goextend.PluginStore.
func (s *Store) ListPlugins(ctx context.Context) ([]goextend.PluginRecord, error) {
	return s.scanPlugins(ctx, func(goextend.PluginRecord) bool { return true })
}

// ActivePlugins implements goextend.PluginStore.
func (s *Store) ActivePlugins(ctx context.Context) ([]goextend.PluginRecord, error) {
	return s.scanPlugins(ctx, goextend.PluginRecord.IsActive)
}

func (s *Store) scanPlugins(ctx context.Context, keep func(goextend.PluginRecord) bool) ([]goextend.PluginRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]goextend.PluginRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, pluginBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(key, payload []byte) error {
			var record goextend.PluginRecord
			if err := json.Unmarshal(payload, &record); err != nil {
				return fmt.Errorf("decode plugin %q: %w", key, err)
			}
			if keep(record) {
				records = append(records, record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func getTheme(b *bbolt.Bucket, slug string) (goextend.ThemeRecord, bool, error) {
	payload := b.Get([]byte(slug))
	if payload == nil {
		return goextend.ThemeRecord{}, false, nil
	}
	var record goextend.ThemeRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return goextend.ThemeRecord{}, false, fmt.Errorf("decode theme %q: %w", slug, err)
	}
	return record, true, nil
}

func putTheme(b *bbolt.Bucket, record goextend.ThemeRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal theme: %w", err)
	}
	return b.Put([]byte(record.Slug), payload)
}

// UpsertTheme implements goextend.ThemeStore.
func (s *Store) UpsertTheme(ctx context.Context, record goextend.ThemeRecord) (goextend.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var outcome goextend.UpsertOutcome
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, themeBucket)
		if err != nil {
			return err
		}
		existing, ok, err := getTheme(b, record.Slug)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		switch {
		case !ok:
			record.ID = uuid.NewString()
			record.IsActive = false
			record.CreatedAt = now
			record.UpdatedAt = now
			outcome = goextend.UpsertCreated
			return putTheme(b, record)
		case existing.Name == record.Name && existing.Version == record.Version &&
			existing.Author == record.Author && existing.ParentID == record.ParentID:
			outcome = goextend.UpsertUnchanged
			return nil
		default:
			existing.Name = record.Name
			existing.Version = record.Version
			existing.Author = record.Author
			existing.ParentID = record.ParentID
			existing.UpdatedAt = now
			outcome = goextend.UpsertUpdated
			return putTheme(b, existing)
		}
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// GetTheme implements goextend.ThemeStore.
func (s *Store) GetTheme(ctx context.Context, slug string) (goextend.ThemeRecord, error) {
	if err := ctx.Err(); err != nil {
		return goextend.ThemeRecord{}, err
	}

	var record goextend.ThemeRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, themeBucket)
		if err != nil {
			return err
		}
		found, ok, err := getTheme(b, slug)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("theme %q: %w", slug, goextend.ErrRecordNotFound)
		}
		record = found
		return nil
	})
	return record, err
}

// ListThemes implements goextend.ThemeStore.
func (s *Store) ListThemes(ctx context.Context) ([]goextend.ThemeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]goextend.ThemeRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, themeBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(key, payload []byte) error {
			var record goextend.ThemeRecord
			if err := json.Unmarshal(payload, &record); err != nil {
				return fmt.Errorf("decode theme %q: %w", key, err)
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ActivateTheme implements goextend.ThemeStore. The whole switch runs in one
// bbolt update transaction.
func (s *Store) ActivateTheme(ctx context.Context, slug string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, themeBucket)
		if err != nil {
			return err
		}
		if _, ok, err := getTheme(b, slug); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("theme %q: %w", slug, goextend.ErrRecordNotFound)
		}

		now := s.now().UTC()
		var changed []goextend.ThemeRecord
		err = b.ForEach(func(key, payload []byte) error {
			var record goextend.ThemeRecord
			if err := json.Unmarshal(payload, &record); err != nil {
				return fmt.Errorf("decode theme %q: %w", key, err)
			}
			active := record.Slug == slug
			if record.IsActive != active {
				record.IsActive = active
				record.UpdatedAt = now
				changed = append(changed, record)
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Bucket mutation is not allowed inside ForEach.
		for _, record := range changed {
			if err := putTheme(b, record); err != nil {
				return err
			}
		}
		return nil
	})
}

// ActiveTheme implements goextend.ThemeStore.
func (s *Store) ActiveTheme(ctx context.Context) (goextend.ThemeRecord, error) {
	if err := ctx.Err(); err != nil {
		return goextend.ThemeRecord{}, err
	}

	var active goextend.ThemeRecord
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, themeBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(key, payload []byte) error {
			var record goextend.ThemeRecord
			if err := json.Unmarshal(payload, &record); err != nil {
				return fmt.Errorf("decode theme %q: %w", key, err)
			}
			if record.IsActive {
				active = record
				found = true
				return errStop
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, errStop) {
		return goextend.ThemeRecord{}, err
	}
	if !found {
		return goextend.ThemeRecord{}, fmt.Errorf("active theme: %w", goextend.ErrRecordNotFound)
	}
	return active, nil
}
