// kernel.go: composition root owning the hook registry, loader and resolvers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
)

// Kernel owns one instance of every extensibility component.
//
// Example usage:
//
//	providers := goextend.NewProviderRegistry()
//	providers.MustRegister("acme/blog", BlogProvider{})
//
//	kernel, err := goextend.New(goextend.DefaultConfig(), goextend.NewMemoryStore(),
//	    goextend.WithLogger(logger),
//	    goextend.WithProviders(providers))
//	if err != nil {
//	    return err
//	}
//	defer kernel.Close()
//
//	report, err := kernel.Boot(ctx)
type Kernel struct {
	config      Config
	logger      Logger
	faultPolicy FaultPolicy

	hooks     *HookRegistry
	loader    *NamespaceLoader
	providers *ProviderRegistry
	views     ViewResolver
	assets    *AssetQueue
	auditor   *ActivationAuditor
	metrics   *KernelMetrics
	health    *HealthReporter
	store     ActivationStore

	plugins *ModuleResolver
	themes  *ThemeResolver
}

// Option configures a Kernel.
type Option func(*kernelOptions)

type kernelOptions struct {
	logger        Logger
	providers     *ProviderRegistry
	initializers  map[string]ThemeInitializer
	meterProvider metric.MeterProvider
	views         ViewResolver
	health        *HealthReporter
	auditor       *ActivationAuditor
}

// WithLogger sets the kernel logger. Components log through loggers derived
// from it.
func WithLogger(logger Logger) Option {
	return func(o *kernelOptions) {
		o.logger = logger
	}
}

// WithProviders sets the provider table consulted at boot.
func WithProviders(providers *ProviderRegistry) Option {
	return func(o *kernelOptions) {
		o.providers = providers
	}
}

// WithThemeInitializer registers the one-time initializer for a theme slug.
func WithThemeInitializer(slug string, initializer ThemeInitializer) Option {
	return func(o *kernelOptions) {
		if o.initializers == nil {
			o.initializers = make(map[string]ThemeInitializer)
		}
		o.initializers[slug] = initializer
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *kernelOptions) {
		o.meterProvider = provider
	}
}

// WithViewResolver replaces the default ViewFinder.
func WithViewResolver(views ViewResolver) Option {
	return func(o *kernelOptions) {
		o.views = views
	}
}

// WithHealthReporter replaces the default health reporter.
func WithHealthReporter(health *HealthReporter) Option {
	return func(o *kernelOptions) {
		o.health = health
	}
}

// WithAuditor sets the activation auditor, overriding cfg.Audit.
func WithAuditor(auditor *ActivationAuditor) Option {
	return func(o *kernelOptions) {
		o.auditor = auditor
	}
}

// New builds a kernel from cfg. A nil store uses a fresh MemoryStore.
func New(cfg Config, store ActivationStore, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := kernelOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	logger := NewLogger(options.logger)
	if store == nil {
		store = NewMemoryStore()
	}

	metrics, err := NewKernelMetrics(options.meterProvider)
	if err != nil {
		return nil, NewConfigValidationError("failed to create kernel metrics", err)
	}

	auditor := options.auditor
	if auditor == nil && cfg.Audit.Enabled {
		if auditor, err = NewActivationAuditor(cfg.Audit.OutputFile, logger); err != nil {
			return nil, err
		}
	}

	providers := options.providers
	if providers == nil {
		providers = NewProviderRegistry()
	}
	views := options.views
	if views == nil {
		views = NewViewFinder(cfg.ViewExtension, cfg.ViewPaths...)
	}
	health := options.health
	if health == nil {
		health = NewHealthReporter()
	}

	policy := cfg.Policy()
	k := &Kernel{
		config:      cfg,
		logger:      logger,
		faultPolicy: policy,
		hooks: NewHookRegistry(
			WithHookLogger(logger),
			WithHookMetrics(metrics),
			WithDefaultFaultPolicy(policy)),
		loader: NewNamespaceLoader(logger,
			WithNamespaceSeparator(cfg.NamespaceSeparator),
			WithSourceExtension(cfg.SourceExtension)),
		providers: providers,
		views:     views,
		assets:    NewAssetQueue(),
		auditor:   auditor,
		metrics:   metrics,
		health:    health,
		store:     store,
	}
	k.plugins = newModuleResolver(k, cfg.PluginRoot, store)
	k.themes = newThemeResolver(k, cfg.ThemeRoot, cfg.FallbackTheme, store, options.initializers)

	logger.Debug("Kernel created",
		"plugin_root", cfg.PluginRoot,
		"theme_root", cfg.ThemeRoot,
		"fault_policy", policy.String())
	return k, nil
}

// KernelBootReport summarizes Boot.
type KernelBootReport struct {
	PluginSync SyncReport
	ThemeSync  SyncReport
	Plugins    BootReport

	// Theme is nil when neither the requested nor the fallback theme exists.
	Theme *LoadedTheme

	Duration time.Duration
}

// Boot runs plugin sync and boot, fires system.init, then syncs and loads
// the active theme.
//
// An unprovisioned store is not fatal: sync is skipped with a warning, no
// plugins boot and the fallback theme loads.
func (k *Kernel) Boot(ctx context.Context) (KernelBootReport, error) {
	started := time.Now()
	var report KernelBootReport

	pluginSync, err := k.plugins.Sync(ctx)
	if err = k.tolerateUnavailable("plugins", err); err != nil {
		return report, err
	}
	report.PluginSync = pluginSync

	if report.Plugins, err = k.plugins.LoadActive(ctx); err != nil {
		return report, err
	}

	if err := k.hooks.DoAction(ctx, HookSystemInit); err != nil {
		return report, err
	}

	themeSync, err := k.themes.Sync(ctx)
	if err = k.tolerateUnavailable("themes", err); err != nil {
		return report, err
	}
	report.ThemeSync = themeSync

	if report.Theme, err = k.themes.LoadActive(ctx, ""); err != nil {
		return report, err
	}

	report.Duration = time.Since(started)
	k.health.setKernel(true)

	theme := ""
	if report.Theme != nil {
		theme = report.Theme.Slug
	}
	k.logger.Info("Kernel booted",
		"plugins", len(report.Plugins.Booted),
		"failed", len(report.Plugins.Failed),
		"theme", theme,
		"duration", report.Duration)
	return report, nil
}

func (k *Kernel) tolerateUnavailable(scope string, err error) error {
	if err == nil {
		return nil
	}
	if IsBackendUnavailable(err) {
		k.logger.Warn("Activation store unavailable, skipping sync", "scope", scope, "error", err)
		return nil
	}
	return err
}

// EnqueueThemeAssets fires theme_enqueue_scripts so modules and the theme
// can queue their assets through Assets, then returns the queue. Hosts call
// it once per page render.
func (k *Kernel) EnqueueThemeAssets(ctx context.Context) (*AssetQueue, error) {
	if err := k.hooks.DoAction(ctx, HookThemeEnqueueScripts); err != nil {
		return k.assets, err
	}
	return k.assets, nil
}

// Close releases the auditor and the store, and marks health NOT_SERVING.
func (k *Kernel) Close() error {
	var err error
	err = multierr.Append(err, k.auditor.Close())
	if k.store != nil {
		err = multierr.Append(err, k.store.Close())
	}
	k.health.Shutdown()
	return err
}

// Hooks returns the hook registry.
func (k *Kernel) Hooks() *HookRegistry { return k.hooks }

// Loader returns the namespace loader.
func (k *Kernel) Loader() *NamespaceLoader { return k.loader }

// Providers returns the provider table.
func (k *Kernel) Providers() *ProviderRegistry { return k.providers }

// Views returns the view resolver themes install into.
func (k *Kernel) Views() ViewResolver { return k.views }

// Assets returns the asset queue.
func (k *Kernel) Assets() *AssetQueue { return k.assets }

// Plugins returns the module resolver.
func (k *Kernel) Plugins() *ModuleResolver { return k.plugins }

// Themes returns the theme resolver.
func (k *Kernel) Themes() *ThemeResolver { return k.themes }

// Health returns the health reporter.
func (k *Kernel) Health() *HealthReporter { return k.health }

// Store returns the activation store.
func (k *Kernel) Store() ActivationStore { return k.store }

// Config returns the configuration the kernel was built with.
func (k *Kernel) Config() Config { return k.config }

// Logger returns the kernel logger.
func (k *Kernel) Logger() Logger { return k.logger }
