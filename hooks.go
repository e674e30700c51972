// hooks.go: priority-ordered action and filter dispatch tables
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Hook names fired by the kernel. Hook names are opaque strings; modules may
// dispatch and listen on any name they agree upon.
const (
	HookSystemInit          = "system.init"
	HookPluginsLoaded       = "plugins_loaded"
	HookPluginActivated     = "plugin_activated"
	HookPluginDeactivated   = "plugin_deactivated"
	HookThemeLoaded         = "theme_loaded"
	HookThemeSwitched       = "theme_switched"
	HookThemeEnqueueScripts = "theme_enqueue_scripts"
	HookAdminMenu           = "admin_menu"
)

// DefaultPriority is the priority assigned when WithPriority is not given.
// Lower priorities run first.
const DefaultPriority = 10

// ActionFunc is a side-effecting hook callback. Its error stops the chain
// under FaultPropagate.
type ActionFunc func(ctx context.Context, args ...any) error

// FilterFunc transforms value and returns the new value.
type FilterFunc func(ctx context.Context, value any, args ...any) (any, error)

// FaultPolicy decides what happens when a callback errors or panics.
type FaultPolicy int

const (
	// FaultPropagate returns the callback error unmodified and does not
	// recover panics.
	FaultPropagate FaultPolicy = iota

	// FaultIsolate recovers panics, logs errors with their owner, and
	// continues with the next callback.
	FaultIsolate
)

// String returns the configuration name of the policy.
func (p FaultPolicy) String() string {
	switch p {
	case FaultPropagate:
		return "propagate"
	case FaultIsolate:
		return "isolate"
	default:
		return fmt.Sprintf("FaultPolicy(%d)", int(p))
	}
}

// ParseFaultPolicy converts a configuration value into a FaultPolicy.
func ParseFaultPolicy(value string) (FaultPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "propagate":
		return FaultPropagate, nil
	case "isolate":
		return FaultIsolate, nil
	default:
		return FaultPropagate, NewConfigValidationError(fmt.Sprintf("unknown fault policy %q", value), nil)
	}
}

type hookEntry struct {
	action    ActionFunc
	filter    FilterFunc
	priority  int
	policy    FaultPolicy
	policySet bool
	owner     string
}

// HookOption customizes a single hook registration.
type HookOption func(*hookEntry)

// WithPriority sets the callback priority. Lower values run first; equal
// priorities keep registration order.
func WithPriority(priority int) HookOption {
	return func(e *hookEntry) {
		e.priority = priority
	}
}

// WithFaultPolicy overrides the registry default policy for this callback.
func WithFaultPolicy(policy FaultPolicy) HookOption {
	return func(e *hookEntry) {
		e.policy = policy
		e.policySet = true
	}
}

// WithOwner tags the callback with the module that registered it.
func WithOwner(owner string) HookOption {
	return func(e *hookEntry) {
		e.owner = owner
	}
}

// HookRegistry holds the action and filter tables of one kernel.
//
// Registration is serialized by a mutex. Each registration installs a new
// sorted slice, so dispatch takes the current slice under a read lock and
// runs callbacks without holding it. Callbacks may register further hooks;
// those take effect on the next dispatch.
//
// Example usage:
//
//	hooks := goextend.NewHookRegistry()
//	_ = hooks.AddFilter("title", func(ctx context.Context, v any, _ ...any) (any, error) {
//	    return strings.ToUpper(v.(string)), nil
//	}, goextend.WithPriority(5))
//	title, err := hooks.ApplyFilters(ctx, "title", "hello")
type HookRegistry struct {
	mu      sync.RWMutex
	actions map[string][]hookEntry
	filters map[string][]hookEntry

	countMu    sync.Mutex
	dispatched map[string]int64

	defaultPolicy FaultPolicy
	faults        atomic.Int64
	logger        Logger
	metrics       *KernelMetrics
}

// HookRegistryOption configures a HookRegistry.
type HookRegistryOption func(*HookRegistry)

// WithHookLogger sets the logger used for isolated faults.
func WithHookLogger(logger Logger) HookRegistryOption {
	return func(r *HookRegistry) {
		r.logger = NewLogger(logger)
	}
}

// WithHookMetrics sets the metrics recorder.
func WithHookMetrics(metrics *KernelMetrics) HookRegistryOption {
	return func(r *HookRegistry) {
		r.metrics = metrics
	}
}

// WithDefaultFaultPolicy sets the policy of callbacks registered without
// WithFaultPolicy.
func WithDefaultFaultPolicy(policy FaultPolicy) HookRegistryOption {
	return func(r *HookRegistry) {
		r.defaultPolicy = policy
	}
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry(opts ...HookRegistryOption) *HookRegistry {
	r := &HookRegistry{
		actions:       make(map[string][]hookEntry),
		filters:       make(map[string][]hookEntry),
		dispatched:    make(map[string]int64),
		defaultPolicy: FaultPropagate,
		logger:        DefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddAction registers cb on the action hook name.
func (r *HookRegistry) AddAction(name string, cb ActionFunc, opts ...HookOption) error {
	if cb == nil {
		return NewInvalidHookError("nil action callback").WithContext("hook", name)
	}
	return r.add(r.actions, name, hookEntry{action: cb}, opts)
}

// AddFilter registers cb on the filter hook name.
func (r *HookRegistry) AddFilter(name string, cb FilterFunc, opts ...HookOption) error {
	if cb == nil {
		return NewInvalidHookError("nil filter callback").WithContext("hook", name)
	}
	return r.add(r.filters, name, hookEntry{filter: cb}, opts)
}

func (r *HookRegistry) add(table map[string][]hookEntry, name string, entry hookEntry, opts []HookOption) error {
	if name == "" {
		return NewInvalidHookError("empty hook name")
	}

	entry.priority = DefaultPriority
	for _, opt := range opts {
		opt(&entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !entry.policySet {
		entry.policy = r.defaultPolicy
	}

	// Copy on write: slices handed to in-flight dispatches stay untouched.
	next := append(slices.Clone(table[name]), entry)
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].priority < next[j].priority
	})
	table[name] = next
	return nil
}

func (r *HookRegistry) snapshot(table map[string][]hookEntry, name string) []hookEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return table[name]
}

func (r *HookRegistry) countDispatch(name string) {
	r.countMu.Lock()
	r.dispatched[name]++
	r.countMu.Unlock()
}

// DoAction invokes every callback on the action hook name in priority order.
// Dispatching a hook without callbacks is a no-op.
func (r *HookRegistry) DoAction(ctx context.Context, name string, args ...any) error {
	r.countDispatch(name)
	entries := r.snapshot(r.actions, name)
	if len(entries) == 0 {
		return nil
	}
	r.metrics.recordDispatch(ctx, "action", name)

	for _, entry := range entries {
		if entry.policy == FaultPropagate {
			if err := entry.action(ctx, args...); err != nil {
				return err
			}
			continue
		}

		cb := entry.action
		if err := callRecovering(func() error { return cb(ctx, args...) }); err != nil {
			r.isolate(ctx, name, entry.owner, err)
		}
	}
	return nil
}

// ApplyFilters folds value through every callback on the filter hook name in
// priority order. Without callbacks value is returned unchanged.
func (r *HookRegistry) ApplyFilters(ctx context.Context, name string, value any, args ...any) (any, error) {
	r.countDispatch(name)
	entries := r.snapshot(r.filters, name)
	if len(entries) == 0 {
		return value, nil
	}
	r.metrics.recordDispatch(ctx, "filter", name)

	for _, entry := range entries {
		if entry.policy == FaultPropagate {
			next, err := entry.filter(ctx, value, args...)
			if err != nil {
				return value, err
			}
			value = next
			continue
		}

		cb := entry.filter
		current := value
		var next any
		err := callRecovering(func() error {
			var cbErr error
			next, cbErr = cb(ctx, current, args...)
			return cbErr
		})
		if err != nil {
			r.isolate(ctx, name, entry.owner, err)
			continue
		}
		value = next
	}
	return value, nil
}

func (r *HookRegistry) isolate(ctx context.Context, hook, owner string, cause error) {
	r.faults.Add(1)
	r.metrics.recordFault(ctx, hook, owner)

	fault := NewCallbackFaultError(hook, owner, cause)
	args := []any{"hook", hook, "owner", owner, "error", fault}
	var panicErr *PanicError
	if errors.As(cause, &panicErr) {
		args = append(args, "panic", panicErr.Value, "stack", string(panicErr.Stack))
	}
	r.logger.Error("Hook callback fault isolated", args...)
}

// HasAction reports whether any callback is registered on the action hook.
func (r *HookRegistry) HasAction(name string) bool {
	return r.Actions(name) > 0
}

// HasFilter reports whether any callback is registered on the filter hook.
func (r *HookRegistry) HasFilter(name string) bool {
	return r.Filters(name) > 0
}

// Actions returns the number of callbacks registered on the action hook.
func (r *HookRegistry) Actions(name string) int {
	return len(r.snapshot(r.actions, name))
}

// Filters returns the number of callbacks registered on the filter hook.
func (r *HookRegistry) Filters(name string) int {
	return len(r.snapshot(r.filters, name))
}

// DidAction returns how many times name has been dispatched, as an action or
// a filter, including dispatches without callbacks.
func (r *HookRegistry) DidAction(name string) int64 {
	r.countMu.Lock()
	defer r.countMu.Unlock()
	return r.dispatched[name]
}

// Faults returns the number of isolated callback faults so far.
func (r *HookRegistry) Faults() int64 {
	return r.faults.Load()
}
