// watcher.go: argus-backed manifest watcher that keeps activation records in sync
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
	goset "github.com/deckarep/golang-set/v2"
)

// DiscoveryWatcher re-runs Sync when a module manifest, a theme manifest or
// one of the discovery roots changes.
//
// It only refreshes store records. Modules already booted in the process are
// not reloaded.
//
// Example usage:
//
//	watcher := goextend.NewDiscoveryWatcher(kernel, time.Second)
//	if err := watcher.Start(ctx); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
type DiscoveryWatcher struct {
	kernel  *Kernel
	watcher *argus.Watcher
	logger  Logger

	mu      sync.Mutex
	ctx     context.Context
	watched goset.Set[string]

	running  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	syncs    atomic.Int64
}

// NewDiscoveryWatcher creates a watcher polling at pollInterval.
func NewDiscoveryWatcher(kernel *Kernel, pollInterval time.Duration) *DiscoveryWatcher {
	logger := kernel.logger.With("component", "discovery_watcher")
	return &DiscoveryWatcher{
		kernel: kernel,
		logger: logger,
		ctx:    context.Background(),
		watcher: argus.New(argus.Config{
			PollInterval:         pollInterval,
			CacheTTL:             pollInterval / 2,
			MaxWatchedFiles:      1000,
			OptimizationStrategy: argus.OptimizationSingleEvent,
			ErrorHandler: func(err error, path string) {
				logger.Error("Manifest watching error", "error", err, "file", path)
			},
		}),
		watched: goset.NewSet[string](),
	}
}

// Start watches the roots and every discovered manifest.
func (w *DiscoveryWatcher) Start(ctx context.Context) error {
	if w.stopped.Load() {
		return NewConfigWatcherError("discovery watcher is stopped", nil)
	}
	if !w.running.CompareAndSwap(false, true) {
		return NewConfigWatcherError("discovery watcher is already running", nil)
	}

	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	if err := w.refresh(ctx); err != nil {
		w.running.Store(false)
		return err
	}
	if err := w.watcher.Start(); err != nil {
		w.running.Store(false)
		return NewConfigWatcherError("failed to start manifest watcher", err)
	}

	w.logger.Info("Discovery watcher started", "paths", w.watched.Cardinality())
	return nil
}

// Stop stops polling. A stopped watcher cannot be restarted.
func (w *DiscoveryWatcher) Stop() error {
	var stopErr error
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
		if !w.running.CompareAndSwap(true, false) {
			return
		}
		if err := w.watcher.Stop(); err != nil {
			stopErr = NewConfigWatcherError("failed to stop manifest watcher", err)
			return
		}
		w.logger.Info("Discovery watcher stopped")
	})
	return stopErr
}

// IsRunning reports whether the watcher is polling.
func (w *DiscoveryWatcher) IsRunning() bool {
	return w.running.Load() && !w.stopped.Load()
}

// Syncs returns how many resynchronizations ran.
func (w *DiscoveryWatcher) Syncs() int64 {
	return w.syncs.Load()
}

// WatchedPaths returns the paths currently watched.
func (w *DiscoveryWatcher) WatchedPaths() []string {
	return w.watched.ToSlice()
}

// handleChange resyncs the kind the changed path belongs to.
func (w *DiscoveryWatcher) handleChange(event argus.ChangeEvent) {
	w.logger.Debug("Manifest change detected",
		"path", event.Path,
		"is_create", event.IsCreate,
		"is_delete", event.IsDelete,
		"is_modify", event.IsModify)

	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()

	var err error
	switch {
	case isWithin(w.kernel.plugins.Root(), event.Path):
		_, err = w.kernel.plugins.Sync(ctx)
	case isWithin(w.kernel.themes.Root(), event.Path):
		_, err = w.kernel.themes.Sync(ctx)
	default:
		return
	}
	w.syncs.Add(1)
	if err != nil {
		w.logger.Error("Resync after manifest change failed", "path", event.Path, "error", err)
		return
	}

	if err := w.refresh(ctx); err != nil {
		w.logger.Warn("Failed to refresh watched manifests", "error", err)
	}
}

// refresh adds watches for the roots, plugin vendor directories and every
// manifest found by discovery.
func (w *DiscoveryWatcher) refresh(ctx context.Context) error {
	paths := goset.NewSet(w.kernel.plugins.Root(), w.kernel.themes.Root())

	plugins, err := w.kernel.plugins.Discover(ctx)
	if err != nil {
		return err
	}
	for _, manifest := range plugins.Modules {
		paths.Add(filepath.Dir(manifest.Dir))
		paths.Add(manifest.Path)
	}

	themes, err := w.kernel.themes.Discover(ctx)
	if err != nil {
		return err
	}
	for _, manifest := range themes.Modules {
		if manifest.Synthesized {
			paths.Add(manifest.Dir)
			continue
		}
		paths.Add(manifest.Path)
	}

	for _, path := range paths.Difference(w.watched).ToSlice() {
		if err := w.watcher.Watch(path, w.handleChange); err != nil {
			return NewConfigWatcherError(fmt.Sprintf("failed to watch %s", path), err)
		}
		w.watched.Add(path)
	}
	return nil
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
