// Package goextend is an extensibility kernel for Go hosts: a hook registry,
// a namespace loader and resolvers that discover, activate and boot plugins
// and themes from disk.
//
// Key Features:
//   - Priority-ordered actions and filters with per-callback fault policies
//   - Namespace prefix to directory mapping for module sources
//   - Plugin discovery under {root}/{vendor}/{module} with persisted activation state
//   - Two-phase plugin boot (register, then boot) with per-module failure isolation
//   - Exactly one active theme, with views, assets and an optional functions.lua
//   - Activation stores backed by memory, SQLite or bbolt
//   - Structured logging, OpenTelemetry metrics, gRPC health and an argus audit trail
//
// Basic Usage:
//
//	providers := goextend.NewProviderRegistry()
//	providers.MustRegister(`Acme\Blog\Providers\BlogProvider`, BlogProvider{})
//
//	kernel, err := goextend.New(goextend.DefaultConfig(), goextend.NewMemoryStore(),
//	    goextend.WithLogger(goextend.NewZapLogger("info")),
//	    goextend.WithProviders(providers))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer kernel.Close()
//
//	report, err := kernel.Boot(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	title, _ := kernel.Hooks().ApplyFilters(ctx, "page_title", "Home", " | ")
//
// Hooks:
//
// Actions are notified in ascending priority order, with registration order
// breaking ties. Filters thread a value through their callbacks in the same
// order. A failing callback either stops the dispatch (FaultPropagate) or is
// logged and skipped (FaultIsolate).
//
// Modules:
//
// A plugin is a directory holding plugin.json (or .yaml, .toml). Discovery
// records every plugin as inactive; only plugins explicitly activated are
// booted. A plugin that fails to load is skipped and the rest still boot.
//
// Themes:
//
// A theme is a directory under the theme root. When the stored active theme
// is missing, the fallback theme is loaded instead.
package goextend
