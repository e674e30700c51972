// dynamic_loader.go: prefix to directory symbol resolution for module sources
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DefaultNamespaceSeparator separates namespace segments in symbol names.
	DefaultNamespaceSeparator = `\`

	// DefaultSourceExtension is appended to resolved symbol paths.
	DefaultSourceExtension = ".go"
)

// NamespaceMapping maps a symbol prefix to a base directory.
type NamespaceMapping struct {
	Prefix  string `json:"prefix"`
	BaseDir string `json:"base_dir"`

	// Owner is the module that registered the mapping.
	Owner string `json:"owner,omitempty"`
}

// NamespaceLoader resolves symbol names to source files through ordered
// prefix mappings. The first mapping whose prefix matches wins, even when its
// file does not exist; later mappings are not consulted.
//
// Example usage:
//
//	loader := goextend.NewNamespaceLoader(logger)
//	_ = loader.AddNamespace(`Vendor\A\`, "/p/a/src", "vendor/a")
//	path, err := loader.Resolve(`Vendor\A\Models\X`) // "/p/a/src/Models/X.go"
type NamespaceLoader struct {
	mu        sync.RWMutex
	mappings  []NamespaceMapping
	separator string
	extension string
	logger    Logger
}

// LoaderOption configures a NamespaceLoader.
type LoaderOption func(*NamespaceLoader)

// WithNamespaceSeparator sets the symbol segment separator.
func WithNamespaceSeparator(separator string) LoaderOption {
	return func(l *NamespaceLoader) {
		if separator != "" {
			l.separator = separator
		}
	}
}

// WithSourceExtension sets the extension appended to resolved paths.
func WithSourceExtension(extension string) LoaderOption {
	return func(l *NamespaceLoader) {
		if extension != "" && !strings.HasPrefix(extension, ".") {
			extension = "." + extension
		}
		l.extension = extension
	}
}

// NewNamespaceLoader creates a loader with no mappings.
func NewNamespaceLoader(logger Logger, opts ...LoaderOption) *NamespaceLoader {
	l := &NamespaceLoader{
		separator: DefaultNamespaceSeparator,
		extension: DefaultSourceExtension,
		logger:    NewLogger(logger),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddNamespace appends a mapping. A non-empty prefix is normalized to end
// with the separator; an empty prefix matches every symbol.
func (l *NamespaceLoader) AddNamespace(prefix, baseDir, owner string) error {
	if baseDir == "" {
		return NewInvalidNamespaceError(prefix, baseDir)
	}
	if prefix != "" && !strings.HasSuffix(prefix, l.separator) {
		prefix += l.separator
	}

	l.mu.Lock()
	l.mappings = append(l.mappings, NamespaceMapping{
		Prefix:  prefix,
		BaseDir: filepath.Clean(baseDir),
		Owner:   owner,
	})
	l.mu.Unlock()

	l.logger.Debug("Namespace registered", "prefix", prefix, "dir", baseDir, "owner", owner)
	return nil
}

// Resolve returns the source path for symbol. Matching mappings are tried in
// registration order and the first one whose file exists wins. A miss is
// reported as a ResolutionMiss error, which callers treat as non-fatal.
func (l *NamespaceLoader) Resolve(symbol string) (string, error) {
	candidate := ""
	for _, mapping := range l.matching(symbol) {
		relative := strings.TrimPrefix(symbol, mapping.Prefix)
		relative = strings.ReplaceAll(relative, l.separator, "/")
		path := filepath.Join(mapping.BaseDir, filepath.FromSlash(relative)+l.extension)

		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if candidate == "" {
			candidate = path
		}
	}
	return "", NewResolutionMissError(symbol, candidate)
}

func (l *NamespaceLoader) matching(symbol string) []NamespaceMapping {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []NamespaceMapping
	for _, mapping := range l.mappings {
		if strings.HasPrefix(symbol, mapping.Prefix) {
			out = append(out, mapping)
		}
	}
	return out
}

// RemoveOwner drops every mapping registered by owner and returns how many
// were removed.
func (l *NamespaceLoader) RemoveOwner(owner string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.mappings[:0]
	for _, mapping := range l.mappings {
		if mapping.Owner != owner {
			kept = append(kept, mapping)
		}
	}
	removed := len(l.mappings) - len(kept)
	clear(l.mappings[len(kept):])
	l.mappings = kept
	if removed > 0 {
		l.logger.Debug("Namespaces removed", "owner", owner, "count", removed)
	}
	return removed
}

// Mappings returns a snapshot of the mappings in registration order.
func (l *NamespaceLoader) Mappings() []NamespaceMapping {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]NamespaceMapping, len(l.mappings))
	copy(out, l.mappings)
	return out
}
