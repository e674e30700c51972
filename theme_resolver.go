// theme_resolver.go: theme discovery, single-active switching and fallback loading
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
	"sort"
	"strings"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
)

// DefaultFallbackTheme is the theme loaded when nothing else resolves.
const DefaultFallbackTheme = "default"

// ThemeAssetURLPrefix is the public URL path themes are served under.
const ThemeAssetURLPrefix = "/themes/"

// LoadedTheme describes the theme installed by LoadActive.
type LoadedTheme struct {
	Slug      string
	Dir       string
	ViewsDir  string
	AssetsDir string
	Manifest  *Manifest

	// Fallback is set when the requested theme was missing.
	Fallback bool
}

// AssetURL returns the public URL of a file inside the theme directory,
// for example AssetURL("assets/style.css") on "default" gives
// "/themes/default/assets/style.css".
func (t *LoadedTheme) AssetURL(path string) string {
	return ThemeAssetURL(t.Slug, path)
}

// ThemeAssetURL returns the public URL of path inside the theme slug.
func ThemeAssetURL(slug, path string) string {
	return ThemeAssetURLPrefix + slug + "/" + strings.TrimLeft(path, "/")
}

// ThemeResolver discovers themes under {root}/{slug}, keeps exactly one of
// them active in the store and installs it into the view resolver.
type ThemeResolver struct {
	kernel   *Kernel
	root     string
	fallback string
	store    ThemeStore
	logger   Logger

	mu           sync.Mutex
	current      *LoadedTheme
	initialized  map[string]bool
	lastViews    string
	initializers map[string]ThemeInitializer
	scripts      map[string]*themeScript
}

func newThemeResolver(kernel *Kernel, root, fallback string, store ThemeStore, initializers map[string]ThemeInitializer) *ThemeResolver {
	if fallback == "" {
		fallback = DefaultFallbackTheme
	}
	return &ThemeResolver{
		kernel:       kernel,
		root:         root,
		fallback:     fallback,
		store:        store,
		logger:       kernel.logger.With("component", "theme_resolver"),
		initialized:  make(map[string]bool),
		initializers: initializers,
		scripts:      make(map[string]*themeScript),
	}
}

// Root returns the theme root directory.
func (r *ThemeResolver) Root() string {
	return r.root
}

// Fallback returns the configured fallback slug.
func (r *ThemeResolver) Fallback() string {
	return r.fallback
}

// Discover scans the theme root.
func (r *ThemeResolver) Discover(ctx context.Context) (DiscoveryReport, error) {
	return DiscoverThemes(ctx, r.root, r.logger)
}

// Sync upserts every discovered theme without changing which one is active.
// Report entries are theme slugs.
func (r *ThemeResolver) Sync(ctx context.Context) (SyncReport, error) {
	discovery, err := r.Discover(ctx)
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{Skipped: discovery.Skipped}
	onDisk := goset.NewSet[string]()
	for _, manifest := range discovery.Modules {
		slug := ThemeSlug(manifest)
		onDisk.Add(slug)
		outcome, err := r.store.UpsertTheme(ctx, ThemeRecord{
			Name:     manifest.Name,
			Slug:     slug,
			Version:  manifest.Version,
			Author:   manifest.Author,
			ParentID: manifest.Parent,
		})
		if err != nil {
			return report, r.storeError(slug, err)
		}
		switch outcome {
		case UpsertCreated:
			report.Created = append(report.Created, slug)
		case UpsertUpdated:
			report.Updated = append(report.Updated, slug)
		default:
			report.Unchanged = append(report.Unchanged, slug)
		}
	}

	records, err := r.store.ListThemes(ctx)
	if err != nil {
		return report, r.storeError("", err)
	}
	stored := goset.NewSet[string]()
	for _, record := range records {
		stored.Add(record.Slug)
	}
	report.Missing = stored.Difference(onDisk).ToSlice()
	sort.Strings(report.Missing)

	r.logger.Info("Themes synchronized",
		"created", len(report.Created),
		"updated", len(report.Updated),
		"unchanged", len(report.Unchanged),
		"missing", len(report.Missing))
	r.kernel.auditor.Record(AuditThemesSynced, KindTheme, "", map[string]interface{}{
		"created": report.Created,
		"missing": report.Missing,
	})
	return report, nil
}

// List returns every theme record ordered by slug.
func (r *ThemeResolver) List(ctx context.Context) ([]ThemeRecord, error) {
	records, err := r.store.ListThemes(ctx)
	if err != nil {
		return nil, r.storeError("", err)
	}
	return records, nil
}

// Activate makes slug the only active theme and fires theme_switched.
func (r *ThemeResolver) Activate(ctx context.Context, slug string) error {
	if err := r.store.ActivateTheme(ctx, slug); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return NewUnknownModuleError(KindTheme.String(), slug)
		}
		return r.storeError(slug, err)
	}

	r.logger.Info("Theme activated", "theme", slug)
	r.kernel.auditor.Record(AuditThemeActivated, KindTheme, slug, nil)
	return r.kernel.hooks.DoAction(ctx, HookThemeSwitched, slug)
}

// LoadActive resolves and installs a theme.
//
// The target is explicit when non-empty, otherwise the store's active theme,
// otherwise the fallback. A missing target directory is retried once with
// the fallback; when the fallback is missing too no theme is loaded and the
// result is (nil, nil).
func (r *ThemeResolver) LoadActive(ctx context.Context, explicit string) (*LoadedTheme, error) {
	started := time.Now()
	defer r.kernel.metrics.recordBootDuration(ctx, KindTheme, started)

	target := strings.TrimSpace(explicit)
	if target == "" {
		active, err := r.activeSlug(ctx)
		if err != nil {
			return nil, err
		}
		target = active
	}
	if target == "" {
		target = r.fallback
	}

	dir, ok := r.themeDir(target)
	fellBack := false
	if !ok {
		r.logger.Warn("Theme not found", "theme", target, "root", r.root)
		if target == r.fallback {
			return nil, nil
		}
		target = r.fallback
		fellBack = true
		if dir, ok = r.themeDir(target); !ok {
			r.logger.Warn("Fallback theme not found, continuing without theme", "theme", target)
			return nil, nil
		}
	}

	return r.install(ctx, target, dir, fellBack)
}

func (r *ThemeResolver) activeSlug(ctx context.Context) (string, error) {
	record, err := r.store.ActiveTheme(ctx)
	switch {
	case err == nil:
		return record.Slug, nil
	case errors.Is(err, ErrRecordNotFound):
		r.logger.Debug("No active theme recorded")
		return "", nil
	case IsBackendUnavailable(err):
		r.logger.Warn("Activation store unavailable, using fallback theme", "error", err)
		return "", nil
	default:
		return "", r.storeError("", err)
	}
}

// themeDir returns the directory of slug when it exists.
func (r *ThemeResolver) themeDir(slug string) (string, bool) {
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, `/\`) {
		return "", false
	}
	dir := filepath.Join(r.root, slug)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

func (r *ThemeResolver) install(ctx context.Context, slug, dir string, fellBack bool) (*LoadedTheme, error) {
	theme := &LoadedTheme{
		Slug:      slug,
		Dir:       dir,
		ViewsDir:  filepath.Join(dir, "views"),
		AssetsDir: filepath.Join(dir, "assets"),
		Manifest:  r.loadManifest(dir),
		Fallback:  fellBack,
	}

	if err := r.initialize(ctx, theme); err != nil {
		return nil, err
	}
	r.installViews(theme)

	r.mu.Lock()
	r.current = theme
	r.mu.Unlock()

	r.logger.Info("Theme loaded", "theme", slug, "fallback", fellBack)
	if err := r.kernel.hooks.DoAction(ctx, HookThemeLoaded, slug); err != nil {
		return theme, err
	}
	return theme, nil
}

// installViews puts the theme's views ahead of every other location. Loading
// the theme installed last again adds nothing.
func (r *ThemeResolver) installViews(theme *LoadedTheme) {
	if info, err := os.Stat(theme.ViewsDir); err != nil || !info.IsDir() {
		r.logger.Debug("Theme has no views directory", "theme", theme.Slug)
		return
	}

	r.mu.Lock()
	installed := r.lastViews == theme.ViewsDir
	r.lastViews = theme.ViewsDir
	r.mu.Unlock()
	if installed {
		return
	}
	r.kernel.views.PrependLocation(theme.ViewsDir)
	r.kernel.views.AddNamespace(ThemeViewNamespace, theme.ViewsDir)
}

// loadManifest parses the theme manifest, synthesizing one when the file is
// absent or malformed.
func (r *ThemeResolver) loadManifest(dir string) *Manifest {
	path, ok := findManifest(dir, ThemeManifestNames)
	if !ok {
		return synthesizeThemeManifest(dir)
	}
	manifest, err := ParseManifest(path)
	if err != nil {
		r.logger.Warn("Theme manifest unreadable, using synthesized manifest", "path", path, "error", err)
		return synthesizeThemeManifest(dir)
	}
	if manifest.Name == "" {
		manifest.Name = synthesizeThemeManifest(dir).Name
	}
	return manifest
}

// initialize runs the theme initializer and functions.lua the first time
// slug loads in this process.
func (r *ThemeResolver) initialize(ctx context.Context, theme *LoadedTheme) error {
	r.mu.Lock()
	if r.initialized[theme.Slug] {
		r.mu.Unlock()
		return nil
	}
	r.initialized[theme.Slug] = true
	initializer := r.initializers[theme.Slug]
	r.mu.Unlock()

	if initializer != nil {
		if err := initializer(r.kernel, theme); err != nil {
			return NewThemeInitError(theme.Slug, err)
		}
	}

	scriptPath := filepath.Join(theme.Dir, ThemeScriptName)
	if info, err := os.Stat(scriptPath); err != nil || info.IsDir() {
		return nil
	}
	script := newThemeScript(r.kernel, theme.Slug, scriptPath, r.logger)
	if err := script.run(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.scripts[theme.Slug] = script
	r.mu.Unlock()
	r.logger.Debug("Theme script executed", "theme", theme.Slug, "script", scriptPath)
	return nil
}

// AssetURL returns the URL of path inside the current theme, or inside the
// fallback theme before any theme has loaded.
func (r *ThemeResolver) AssetURL(path string) string {
	if current := r.Current(); current != nil {
		return current.AssetURL(path)
	}
	return ThemeAssetURL(r.fallback, path)
}

// Current returns the theme installed by the last successful LoadActive.
func (r *ThemeResolver) Current() *LoadedTheme {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *ThemeResolver) storeError(slug string, err error) error {
	if IsBackendUnavailable(err) {
		return NewBackendUnavailableError(err).WithContext("theme", slug)
	}
	return NewActivationFailedError(KindTheme.String(), slug, err)
}
