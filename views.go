// views.go: ordered view search locations and namespaces
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DefaultViewExtension is appended to view names by ViewFinder.
	DefaultViewExtension = ".html"

	// ThemeViewNamespace is the namespace under which the active theme's
	// views are registered.
	ThemeViewNamespace = "theme"

	namespaceDelimiter = "::"
)

// ViewResolver is the view collaborator the theme resolver installs into.
type ViewResolver interface {
	PrependLocation(dir string)
	AddNamespace(namespace, dir string)
}

// ViewFinder resolves dotted view names to files.
//
// Names take the form "a.b" (searched in the locations) or "ns::a.b"
// (searched in the namespace's directories). Both resolve to "<dir>/a/b<ext>"
// and the first existing file wins.
type ViewFinder struct {
	mu         sync.RWMutex
	locations  []string
	namespaces map[string][]string
	extension  string
}

var _ ViewResolver = (*ViewFinder)(nil)

// NewViewFinder creates a finder with the given base locations.
func NewViewFinder(extension string, locations ...string) *ViewFinder {
	if extension == "" {
		extension = DefaultViewExtension
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return &ViewFinder{
		locations:  append([]string(nil), locations...),
		namespaces: make(map[string][]string),
		extension:  extension,
	}
}

// PrependLocation puts dir before every existing location.
func (v *ViewFinder) PrependLocation(dir string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.locations = append([]string{dir}, v.locations...)
}

// AppendLocation puts dir after every existing location.
func (v *ViewFinder) AppendLocation(dir string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.locations = append(v.locations, dir)
}

// AddNamespace registers dir under namespace, ahead of directories added
// earlier for the same namespace.
func (v *ViewFinder) AddNamespace(namespace, dir string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.namespaces[namespace] = append([]string{dir}, v.namespaces[namespace]...)
}

// Locations returns the search locations in precedence order.
func (v *ViewFinder) Locations() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.locations...)
}

// NamespaceDirs returns the directories of namespace in precedence order.
func (v *ViewFinder) NamespaceDirs(namespace string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.namespaces[namespace]...)
}

// Find returns the file of the named view.
func (v *ViewFinder) Find(name string) (string, error) {
	dirs, view := v.searchPath(name)
	if view == "" {
		return "", fmt.Errorf("view %q: empty view name", name)
	}

	relative := filepath.FromSlash(strings.ReplaceAll(view, ".", "/")) + v.extension
	for _, dir := range dirs {
		candidate := filepath.Join(dir, relative)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("view %q: %w", name, os.ErrNotExist)
}

func (v *ViewFinder) searchPath(name string) ([]string, string) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if namespace, view, ok := strings.Cut(name, namespaceDelimiter); ok {
		return append([]string(nil), v.namespaces[namespace]...), view
	}
	return append([]string(nil), v.locations...), name
}
