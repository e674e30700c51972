// store.go: activation store contract shared by every persistence backend
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import "context"

// PluginStore persists plugin activation records keyed by module name.
//
// Backends return an error wrapping ErrBackendUnavailable when their schema or
// buckets have not been provisioned, and ErrRecordNotFound for unknown names.
type PluginStore interface {
	// UpsertPlugin creates the record (status inactive) or refreshes its
	// namespace and version. Status is never modified.
	UpsertPlugin(ctx context.Context, name, namespace, version string) (UpsertOutcome, error)

	// SetPluginStatus changes the status of an existing record.
	SetPluginStatus(ctx context.Context, name string, status ModuleStatus) error

	GetPlugin(ctx context.Context, name string) (PluginRecord, error)
	ListPlugins(ctx context.Context) ([]PluginRecord, error)

	// ActivePlugins returns active records ordered by name.
	ActivePlugins(ctx context.Context) ([]PluginRecord, error)
}

// ThemeStore persists theme records keyed by slug.
type ThemeStore interface {
	// UpsertTheme creates or refreshes a theme record without touching IsActive.
	UpsertTheme(ctx context.Context, record ThemeRecord) (UpsertOutcome, error)

	GetTheme(ctx context.Context, slug string) (ThemeRecord, error)
	ListThemes(ctx context.Context) ([]ThemeRecord, error)

	// ActivateTheme clears every active flag and sets slug active in one
	// atomic operation.
	ActivateTheme(ctx context.Context, slug string) error

	// ActiveTheme returns the active theme, or ErrRecordNotFound when none is.
	ActiveTheme(ctx context.Context) (ThemeRecord, error)
}

// ActivationStore is the full persistence collaborator used by the kernel.
type ActivationStore interface {
	PluginStore
	ThemeStore
	Close() error
}
