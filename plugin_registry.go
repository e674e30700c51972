// plugin_registry.go: load-time table of module entry points
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"sort"
	"sync"
)

// ProviderRegistry maps entry-point identifiers to Provider values.
//
// Identifiers are the strings listed under a manifest's "providers" key, for
// example `Vendor\Module\Providers\MenuProvider`. A module whose manifest
// declares no providers is booted through the provider registered under its
// module name, if any.
//
// The table is filled at build time by the host, typically from init
// functions or from main before New is called:
//
//	providers := goextend.NewProviderRegistry()
//	providers.MustRegister(`Acme\Hello\Providers\HelloProvider`, hello.Provider{})
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewProviderRegistry creates an empty provider table.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]Provider)}
}

// Register binds id to provider. Rebinding an id replaces the previous entry.
func (r *ProviderRegistry) Register(id string, provider Provider) error {
	if id == "" {
		return NewInvalidHookError("empty provider identifier")
	}
	if provider == nil {
		return NewInvalidHookError("nil provider").WithContext("provider", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[id] = provider
	return nil
}

// MustRegister is Register that panics on invalid input.
func (r *ProviderRegistry) MustRegister(id string, provider Provider) {
	if err := r.Register(id, provider); err != nil {
		panic(err)
	}
}

// Lookup returns the provider bound to id.
func (r *ProviderRegistry) Lookup(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[id]
	return provider, ok
}

// IDs returns the registered identifiers in sorted order.
func (r *ProviderRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// resolvedProvider is a provider bound to the module that declared it.
type resolvedProvider struct {
	id       string
	source   string
	provider Provider
}

// resolve returns the providers of manifest in declaration order, falling
// back to the module name when none are declared.
func (r *ProviderRegistry) resolve(manifest *Manifest, loader *NamespaceLoader, logger Logger) ([]resolvedProvider, error) {
	ids := manifest.Providers
	if len(ids) == 0 {
		if _, ok := r.Lookup(manifest.Name); !ok {
			return nil, nil
		}
		ids = []string{manifest.Name}
	}

	resolved := make([]resolvedProvider, 0, len(ids))
	for _, id := range ids {
		provider, ok := r.Lookup(id)
		if !ok {
			return nil, NewProviderNotFoundError(manifest.Name, id)
		}

		entry := resolvedProvider{id: id, provider: provider}
		if loader != nil {
			source, err := loader.Resolve(id)
			switch {
			case err == nil:
				entry.source = source
			case IsResolutionMiss(err):
				logger.Debug("Provider source not resolved", "module", manifest.Name, "provider", id)
			default:
				return nil, err
			}
		}
		resolved = append(resolved, entry)
	}
	return resolved, nil
}
