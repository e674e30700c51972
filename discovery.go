// discovery.go: filesystem discovery of modules and themes
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// DiscoveryReport lists the modules found under a root directory.
type DiscoveryReport struct {
	// Modules are ordered by directory path. Names are unique.
	Modules []*Manifest

	// Skipped aggregates the errors of modules left out of Modules.
	Skipped error
}

// Lookup returns the discovered module named name.
func (r DiscoveryReport) Lookup(name string) (*Manifest, bool) {
	for _, manifest := range r.Modules {
		if manifest.Name == name {
			return manifest, true
		}
	}
	return nil, false
}

// Names returns the discovered module names in discovery order.
func (r DiscoveryReport) Names() []string {
	names := make([]string, len(r.Modules))
	for i, manifest := range r.Modules {
		names[i] = manifest.Name
	}
	return names
}

// SkippedErrors returns the individual skip errors.
func (r DiscoveryReport) SkippedErrors() []error {
	return multierr.Errors(r.Skipped)
}

// discoveryScan describes one discovery pass over a root directory.
type discoveryScan struct {
	kind       ModuleKind
	root       string
	depth      int
	candidates []string

	// missing returns the manifest of a directory without a manifest file,
	// or nil to skip the directory.
	missing func(dir string) *Manifest

	// identify returns the unique key of a parsed manifest.
	identify func(manifest *Manifest) string

	logger Logger
}

type scanResult struct {
	manifest *Manifest
	err      error
}

// run walks the root, parses every manifest concurrently and resolves
// duplicates in lexical path order. A missing root yields an empty report.
func (s discoveryScan) run(ctx context.Context) (DiscoveryReport, error) {
	dirs, err := s.moduleDirs()
	if err != nil {
		return DiscoveryReport{}, err
	}

	results := make([]scanResult, len(dirs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.GOMAXPROCS(0))
	for i, dir := range dirs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = s.parse(dir)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return DiscoveryReport{}, NewDiscoveryError("discovery interrupted", err)
	}

	report := DiscoveryReport{Modules: make([]*Manifest, 0, len(results))}
	seen := make(map[string]string, len(results))
	for i, result := range results {
		if result.err != nil {
			s.logger.Warn("Module skipped during discovery", "kind", s.kind, "dir", dirs[i], "error", result.err)
			report.Skipped = multierr.Append(report.Skipped, result.err)
			continue
		}
		if result.manifest == nil {
			continue
		}

		key := s.identify(result.manifest)
		if first, dup := seen[key]; dup {
			dupErr := NewDuplicateModuleError(key, result.manifest.Dir, first)
			s.logger.Warn("Duplicate module ignored", "kind", s.kind, "name", key, "dir", result.manifest.Dir, "first", first)
			report.Skipped = multierr.Append(report.Skipped, dupErr)
			continue
		}
		seen[key] = result.manifest.Dir
		report.Modules = append(report.Modules, result.manifest)
	}

	s.logger.Debug("Discovery completed", "kind", s.kind, "root", s.root,
		"modules", len(report.Modules), "skipped", len(report.SkippedErrors()))
	return report, nil
}

// moduleDirs lists the directories exactly depth levels below root, in
// lexical order.
func (s discoveryScan) moduleDirs() ([]string, error) {
	level := []string{s.root}
	for d := 0; d < s.depth; d++ {
		var next []string
		for _, dir := range level {
			entries, err := os.ReadDir(dir)
			if err != nil {
				if d == 0 && errors.Is(err, os.ErrNotExist) {
					s.logger.Debug("Discovery root missing", "kind", s.kind, "root", s.root)
					return nil, nil
				}
				if d == 0 {
					return nil, NewDiscoveryError("failed to read root "+dir, err)
				}
				s.logger.Warn("Failed to read directory", "dir", dir, "error", err)
				continue
			}
			// os.ReadDir returns entries sorted by name.
			for _, entry := range entries {
				if entry.IsDir() {
					next = append(next, filepath.Join(dir, entry.Name()))
				}
			}
		}
		level = next
	}
	return level, nil
}

func (s discoveryScan) parse(dir string) scanResult {
	path, ok := findManifest(dir, s.candidates)
	if !ok {
		if s.missing == nil {
			return scanResult{}
		}
		return scanResult{manifest: s.missing(dir)}
	}

	manifest, err := ParseManifest(path)
	if err != nil {
		return scanResult{err: err}
	}
	if manifest.Name == "" {
		if s.kind == KindTheme {
			manifest.Name = synthesizeThemeManifest(dir).Name
		} else {
			manifest.Name = filepath.Base(dir)
		}
	}
	if err := ValidateModuleName(s.identify(manifest)); err != nil {
		return scanResult{err: err}
	}
	return scanResult{manifest: manifest}
}

// DiscoverPlugins scans {root}/{vendor}/{module} for plugin manifests.
func DiscoverPlugins(ctx context.Context, root string, logger Logger) (DiscoveryReport, error) {
	return discoveryScan{
		kind:       KindPlugin,
		root:       root,
		depth:      2,
		candidates: PluginManifestNames,
		identify:   func(m *Manifest) string { return m.Name },
		logger:     NewLogger(logger),
	}.run(ctx)
}

// DiscoverThemes scans {root}/{slug} for themes. Themes without a manifest
// get a synthesized one; themes are identified by their directory slug.
func DiscoverThemes(ctx context.Context, root string, logger Logger) (DiscoveryReport, error) {
	return discoveryScan{
		kind:       KindTheme,
		root:       root,
		depth:      1,
		candidates: ThemeManifestNames,
		missing:    synthesizeThemeManifest,
		identify:   func(m *Manifest) string { return ThemeSlug(m) },
		logger:     NewLogger(logger),
	}.run(ctx)
}

// ThemeSlug returns the slug of a theme manifest: its directory name.
func ThemeSlug(manifest *Manifest) string {
	return filepath.Base(manifest.Dir)
}
