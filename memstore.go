// memstore.go: in-memory activation store
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	timecache "github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// MemoryStore is a process-local ActivationStore.
//
// It is the default store for tests and for hosts that keep activation state
// elsewhere. A store created with NewUnprovisionedMemoryStore behaves like a
// backend whose schema has not been installed: every call fails with
// ErrBackendUnavailable until Provision is called.
type MemoryStore struct {
	mu          sync.RWMutex
	provisioned bool
	plugins     map[string]PluginRecord
	themes      map[string]ThemeRecord
}

var _ ActivationStore = (*MemoryStore)(nil)

// NewMemoryStore creates a provisioned, empty store.
func NewMemoryStore() *MemoryStore {
	s := NewUnprovisionedMemoryStore()
	s.provisioned = true
	return s
}

// NewUnprovisionedMemoryStore creates a store that reports ErrBackendUnavailable.
func NewUnprovisionedMemoryStore() *MemoryStore {
	return &MemoryStore{
		plugins: make(map[string]PluginRecord),
		themes:  make(map[string]ThemeRecord),
	}
}

// Provision marks the store as ready.
func (s *MemoryStore) Provision() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisioned = true
}

func (s *MemoryStore) checkAvailable() error {
	if !s.provisioned {
		return fmt.Errorf("memory store: %w", ErrBackendUnavailable)
	}
	return nil
}

// UpsertPlugin implements PluginStore.
func (s *MemoryStore) UpsertPlugin(_ context.Context, name, namespace, version string) (UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return "", err
	}

	now := timecache.CachedTime()
	existing, ok := s.plugins[name]
	if !ok {
		s.plugins[name] = PluginRecord{
			ID:        uuid.NewString(),
			Name:      name,
			Namespace: namespace,
			Version:   version,
			Status:    StatusInactive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return UpsertCreated, nil
	}

	if existing.Namespace == namespace && existing.Version == version {
		return UpsertUnchanged, nil
	}
	existing.Namespace = namespace
	existing.Version = version
	existing.UpdatedAt = now
	s.plugins[name] = existing
	return UpsertUpdated, nil
}

// SetPluginStatus implements PluginStore.
func (s *MemoryStore) SetPluginStatus(_ context.Context, name string, status ModuleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return err
	}

	record, ok := s.plugins[name]
	if !ok {
		return fmt.Errorf("plugin %q: %w", name, ErrRecordNotFound)
	}
	record.Status = status
	record.UpdatedAt = timecache.CachedTime()
	s.plugins[name] = record
	return nil
}

// GetPlugin implements PluginStore.
func (s *MemoryStore) GetPlugin(_ context.Context, name string) (PluginRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkAvailable(); err != nil {
		return PluginRecord{}, err
	}

	record, ok := s.plugins[name]
	if !ok {
		return PluginRecord{}, fmt.Errorf("plugin %q: %w", name, ErrRecordNotFound)
	}
	return record, nil
}

// ListPlugins implements PluginStore.
func (s *MemoryStore) ListPlugins(_ context.Context) ([]PluginRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkAvailable(); err != nil {
		return nil, err
	}

	out := make([]PluginRecord, 0, len(s.plugins))
	for _, record := range s.plugins {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ActivePlugins implements PluginStore.
func (s *MemoryStore) ActivePlugins(ctx context.Context) ([]PluginRecord, error) {
	all, err := s.ListPlugins(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, record := range all {
		if record.Status == StatusActive {
			active = append(active, record)
		}
	}
	return active, nil
}

// UpsertTheme implements ThemeStore.
func (s *MemoryStore) UpsertTheme(_ context.Context, record ThemeRecord) (UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return "", err
	}

	now := timecache.CachedTime()
	existing, ok := s.themes[record.Slug]
	if !ok {
		record.ID = uuid.NewString()
		record.IsActive = false
		record.CreatedAt = now
		record.UpdatedAt = now
		s.themes[record.Slug] = record
		return UpsertCreated, nil
	}

	if existing.Name == record.Name && existing.Version == record.Version &&
		existing.Author == record.Author && existing.ParentID == record.ParentID {
		return UpsertUnchanged, nil
	}
	existing.Name = record.Name
	existing.Version = record.Version
	existing.Author = record.Author
	existing.ParentID = record.ParentID
	existing.UpdatedAt = now
	s.themes[record.Slug] = existing
	return UpsertUpdated, nil
}

// GetTheme implements ThemeStore.
func (s *MemoryStore) GetTheme(_ context.Context, slug string) (ThemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkAvailable(); err != nil {
		return ThemeRecord{}, err
	}

	record, ok := s.themes[slug]
	if !ok {
		return ThemeRecord{}, fmt.Errorf("theme %q: %w", slug, ErrRecordNotFound)
	}
	return record, nil
}

// ListThemes implements ThemeStore.
func (s *MemoryStore) ListThemes(_ context.Context) ([]ThemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkAvailable(); err != nil {
		return nil, err
	}

	out := make([]ThemeRecord, 0, len(s.themes))
	for _, record := range s.themes {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// ActivateTheme implements ThemeStore. The write lock makes the switch atomic.
func (s *MemoryStore) ActivateTheme(_ context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAvailable(); err != nil {
		return err
	}

	if _, ok := s.themes[slug]; !ok {
		return fmt.Errorf("theme %q: %w", slug, ErrRecordNotFound)
	}
	now := timecache.CachedTime()
	for key, record := range s.themes {
		active := key == slug
		if record.IsActive != active {
			record.IsActive = active
			record.UpdatedAt = now
			s.themes[key] = record
		}
	}
	return nil
}

// ActiveTheme implements ThemeStore.
func (s *MemoryStore) ActiveTheme(_ context.Context) (ThemeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkAvailable(); err != nil {
		return ThemeRecord{}, err
	}

	for _, record := range s.themes {
		if record.IsActive {
			return record, nil
		}
	}
	return ThemeRecord{}, fmt.Errorf("active theme: %w", ErrRecordNotFound)
}

// Close implements ActivationStore.
func (s *MemoryStore) Close() error {
	return nil
}
