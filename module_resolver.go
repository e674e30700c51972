// module_resolver.go: plugin discovery sync, activation state machine and boot
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"time"

	goset "github.com/deckarep/golang-set/v2"
)

// Boot phases recorded in ModuleFailure.
const (
	PhaseManifest = "manifest"
	PhaseAutoload = "autoload"
	PhaseResolve  = "resolve"
	PhaseRegister = "register"
	PhaseBoot     = "boot"
)

// SyncReport summarizes one synchronization of discovered modules into the
// activation store.
type SyncReport struct {
	Created   []string
	Updated   []string
	Unchanged []string

	// Missing lists stored records without an on-disk module. They are kept.
	Missing []string

	// Skipped aggregates discovery errors.
	Skipped error
}

// ModuleFailure records why an active module was skipped during boot.
type ModuleFailure struct {
	Module string
	Phase  string
	Err    error
}

// BootReport summarizes LoadActive.
type BootReport struct {
	// Booted lists the modules whose providers all registered and booted,
	// in boot order.
	Booted []string

	Failed []ModuleFailure

	// Sources maps provider identifiers to their resolved source files.
	Sources map[string]string
}

// Failure returns the failure recorded for module.
func (r BootReport) Failure(module string) (ModuleFailure, bool) {
	for _, failure := range r.Failed {
		if failure.Module == module {
			return failure, true
		}
	}
	return ModuleFailure{}, false
}

// ModuleResolver discovers plugins under {root}/{vendor}/{module}, keeps
// their activation records in sync and boots the active ones.
type ModuleResolver struct {
	kernel *Kernel
	root   string
	store  PluginStore
	logger Logger
}

func newModuleResolver(kernel *Kernel, root string, store PluginStore) *ModuleResolver {
	return &ModuleResolver{
		kernel: kernel,
		root:   root,
		store:  store,
		logger: kernel.logger.With("component", "module_resolver"),
	}
}

// Root returns the plugin root directory.
func (r *ModuleResolver) Root() string {
	return r.root
}

// Discover scans the plugin root.
func (r *ModuleResolver) Discover(ctx context.Context) (DiscoveryReport, error) {
	return DiscoverPlugins(ctx, r.root, r.logger)
}

// Sync upserts every discovered module. Status is never changed; modules
// seen for the first time are created inactive.
func (r *ModuleResolver) Sync(ctx context.Context) (SyncReport, error) {
	discovery, err := r.Discover(ctx)
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{Skipped: discovery.Skipped}
	for _, manifest := range discovery.Modules {
		outcome, err := r.store.UpsertPlugin(ctx, manifest.Name, manifest.Namespace, manifest.Version)
		if err != nil {
			return report, r.storeError(manifest.Name, err)
		}
		switch outcome {
		case UpsertCreated:
			report.Created = append(report.Created, manifest.Name)
		case UpsertUpdated:
			report.Updated = append(report.Updated, manifest.Name)
		default:
			report.Unchanged = append(report.Unchanged, manifest.Name)
		}
	}

	records, err := r.store.ListPlugins(ctx)
	if err != nil {
		return report, r.storeError("", err)
	}
	stored := goset.NewSet[string]()
	for _, record := range records {
		stored.Add(record.Name)
	}
	report.Missing = stored.Difference(goset.NewSet(discovery.Names()...)).ToSlice()
	sort.Strings(report.Missing)

	if len(report.Missing) > 0 {
		r.logger.Warn("Plugin records without modules on disk", "missing", report.Missing)
	}
	r.logger.Info("Plugins synchronized",
		"created", len(report.Created),
		"updated", len(report.Updated),
		"unchanged", len(report.Unchanged),
		"missing", len(report.Missing))
	r.kernel.auditor.Record(AuditPluginsSynced, KindPlugin, "", map[string]interface{}{
		"created": report.Created,
		"updated": report.Updated,
		"missing": report.Missing,
	})
	return report, nil
}

// List returns every plugin record ordered by name.
func (r *ModuleResolver) List(ctx context.Context) ([]PluginRecord, error) {
	records, err := r.store.ListPlugins(ctx)
	if err != nil {
		return nil, r.storeError("", err)
	}
	return records, nil
}

// Get returns the record of name.
func (r *ModuleResolver) Get(ctx context.Context, name string) (PluginRecord, error) {
	record, err := r.store.GetPlugin(ctx, name)
	if err != nil {
		return PluginRecord{}, r.recordError(name, err)
	}
	return record, nil
}

// Activate moves name to active and fires plugin_activated after the
// state is persisted. Activating an active module is a no-op.
func (r *ModuleResolver) Activate(ctx context.Context, name string) error {
	record, err := r.store.GetPlugin(ctx, name)
	if err != nil {
		return r.recordError(name, err)
	}
	if record.Status == StatusActive {
		r.logger.Debug("Plugin already active", "plugin", name)
		return nil
	}

	if err := r.store.SetPluginStatus(ctx, name, StatusActive); err != nil {
		return r.recordError(name, err)
	}
	r.logger.Info("Plugin activated", "plugin", name, "from", record.Status)
	r.kernel.auditor.Record(AuditPluginActivated, KindPlugin, name, map[string]interface{}{
		"from": record.Status.String(),
	})
	return r.kernel.hooks.DoAction(ctx, HookPluginActivated, name)
}

// Deactivate moves name to inactive. Only an active module fires
// plugin_deactivated; a broken module is reset silently.
func (r *ModuleResolver) Deactivate(ctx context.Context, name string) error {
	record, err := r.store.GetPlugin(ctx, name)
	if err != nil {
		return r.recordError(name, err)
	}
	if record.Status == StatusInactive {
		r.logger.Debug("Plugin already inactive", "plugin", name)
		return nil
	}

	if err := r.store.SetPluginStatus(ctx, name, StatusInactive); err != nil {
		return r.recordError(name, err)
	}
	r.logger.Info("Plugin deactivated", "plugin", name, "from", record.Status)
	r.kernel.auditor.Record(AuditPluginDeactivated, KindPlugin, name, map[string]interface{}{
		"from": record.Status.String(),
	})
	if record.Status != StatusActive {
		return nil
	}
	return r.kernel.hooks.DoAction(ctx, HookPluginDeactivated, name)
}

// MarkBroken flags name as broken. The kernel never calls it on its own.
func (r *ModuleResolver) MarkBroken(ctx context.Context, name string) error {
	record, err := r.store.GetPlugin(ctx, name)
	if err != nil {
		return r.recordError(name, err)
	}
	if record.Status == StatusBroken {
		return nil
	}
	if err := r.store.SetPluginStatus(ctx, name, StatusBroken); err != nil {
		return r.recordError(name, err)
	}
	r.logger.Warn("Plugin marked broken", "plugin", name, "from", record.Status)
	r.kernel.auditor.Record(AuditPluginBroken, KindPlugin, name, map[string]interface{}{
		"from": record.Status.String(),
	})
	return nil
}

type preparedModule struct {
	manifest  *Manifest
	providers []resolvedProvider
}

// LoadActive boots every active module in name order.
//
// Boot is two-phase: every prepared module's providers Register first, then
// every module that registered cleanly Boots. A module that fails at any
// step is logged, recorded in the report and skipped; the others continue.
// An unprovisioned store boots nothing and is not an error. plugins_loaded
// fires once all modules are processed.
func (r *ModuleResolver) LoadActive(ctx context.Context) (BootReport, error) {
	started := time.Now()
	defer r.kernel.metrics.recordBootDuration(ctx, KindPlugin, started)

	report := BootReport{Sources: make(map[string]string)}
	active, err := r.store.ActivePlugins(ctx)
	if err != nil {
		if !IsBackendUnavailable(err) {
			return report, r.storeError("", err)
		}
		r.logger.Warn("Activation store unavailable, booting no plugins", "error", err)
		active = nil
	}

	prepared, err := r.prepare(ctx, active, &report)
	if err != nil {
		return report, err
	}

	registered := make([]preparedModule, 0, len(prepared))
	for _, module := range prepared {
		if r.runPhase(ctx, module, PhaseRegister, &report) {
			registered = append(registered, module)
		}
	}

	for _, module := range registered {
		if !r.runPhase(ctx, module, PhaseBoot, &report) {
			continue
		}
		report.Booted = append(report.Booted, module.manifest.Name)
		r.kernel.metrics.recordModuleBooted(ctx, module.manifest.Name)
		r.kernel.health.setModule(module.manifest.Name, true)
		r.logger.Info("Plugin booted", "plugin", module.manifest.Name, "providers", len(module.providers))
	}

	r.logger.Info("Active plugins loaded", "booted", len(report.Booted), "failed", len(report.Failed))
	return report, r.kernel.hooks.DoAction(ctx, HookPluginsLoaded, report.Booted)
}

// prepare re-discovers the active modules, registers their autoload
// mappings and resolves their providers. Mappings of a module that fails
// any later step are removed again by fail.
func (r *ModuleResolver) prepare(ctx context.Context, active []PluginRecord, report *BootReport) ([]preparedModule, error) {
	if len(active) == 0 {
		return nil, nil
	}

	discovery, err := r.Discover(ctx)
	if err != nil {
		return nil, err
	}

	prepared := make([]preparedModule, 0, len(active))
	for _, record := range active {
		manifest, ok := discovery.Lookup(record.Name)
		if !ok {
			r.fail(ctx, report, record.Name, PhaseManifest, NewBootManifestError(record.Name, nil))
			continue
		}

		if err := r.RegisterAutoload(manifest); err != nil {
			r.fail(ctx, report, record.Name, PhaseAutoload, err)
			continue
		}

		providers, err := r.kernel.providers.resolve(manifest, r.kernel.loader, r.logger)
		if err != nil {
			r.fail(ctx, report, record.Name, PhaseResolve, err)
			continue
		}
		if len(providers) == 0 {
			r.logger.Debug("Plugin declares no providers", "plugin", record.Name)
		}
		for _, provider := range providers {
			if provider.source != "" {
				report.Sources[provider.id] = provider.source
			}
		}
		prepared = append(prepared, preparedModule{manifest: manifest, providers: providers})
	}
	return prepared, nil
}

// RegisterAutoload adds the manifest's autoload mappings to the kernel loader,
// in manifest order.
func (r *ModuleResolver) RegisterAutoload(manifest *Manifest) error {
	for _, entry := range manifest.Autoload {
		dir := filepath.Join(manifest.Dir, strings.TrimLeft(entry.Dir, `/\`))
		if err := r.kernel.loader.AddNamespace(entry.Prefix, dir, manifest.Name); err != nil {
			return err
		}
	}
	return nil
}

// runPhase calls Register or Boot on every provider of module. The first
// failure stops the module.
func (r *ModuleResolver) runPhase(ctx context.Context, module preparedModule, phase string, report *BootReport) bool {
	for _, entry := range module.providers {
		provider := entry.provider
		call := func() error {
			if phase == PhaseRegister {
				return provider.Register(r.kernel)
			}
			return provider.Boot(r.kernel)
		}

		var err error
		if r.kernel.faultPolicy == FaultIsolate {
			err = callRecovering(call)
		} else {
			err = call()
		}
		if err != nil {
			r.fail(ctx, report, module.manifest.Name, phase,
				NewProviderFailedError(module.manifest.Name, entry.id, phase, err))
			return false
		}
	}
	return true
}

func (r *ModuleResolver) fail(ctx context.Context, report *BootReport, module, phase string, err error) {
	args := []any{"plugin", module, "phase", phase, "error", err}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		args = append(args, "stack", string(panicErr.Stack))
	}
	r.logger.Error("Plugin skipped during boot", args...)

	report.Failed = append(report.Failed, ModuleFailure{Module: module, Phase: phase, Err: err})
	r.kernel.loader.RemoveOwner(module)
	r.kernel.metrics.recordModuleFailed(ctx, module, phase)
	r.kernel.health.setModule(module, false)
}

// recordError maps a store error on a single record.
func (r *ModuleResolver) recordError(name string, err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return NewUnknownModuleError(KindPlugin.String(), name)
	}
	return r.storeError(name, err)
}

func (r *ModuleResolver) storeError(name string, err error) error {
	if IsBackendUnavailable(err) {
		return NewBackendUnavailableError(err).WithContext("name", name)
	}
	return NewActivationFailedError(KindPlugin.String(), name, err)
}
