// metrics.go: OpenTelemetry instruments for hook dispatch and module boot
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/agilira/go-extend"

	hookDispatchCounterName   = "goextend.hooks.dispatched"
	hookFaultCounterName      = "goextend.hooks.faults"
	moduleBootCounterName     = "goextend.modules.booted"
	moduleFailureCounterName  = "goextend.modules.failed"
	bootDurationHistogramName = "goextend.boot.duration"
)

// KernelMetrics holds the instruments recorded by the kernel components.
//
// A nil *KernelMetrics is valid and records nothing.
type KernelMetrics struct {
	hookDispatches metric.Int64Counter
	hookFaults     metric.Int64Counter
	modulesBooted  metric.Int64Counter
	modulesFailed  metric.Int64Counter
	bootDuration   metric.Float64Histogram
}

// NewKernelMetrics creates the instruments on provider. A nil provider uses
// the global otel meter provider.
func NewKernelMetrics(provider metric.MeterProvider) (*KernelMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	metrics := new(KernelMetrics)
	var err error

	if metrics.hookDispatches, err = meter.Int64Counter(
		hookDispatchCounterName,
		metric.WithDescription("The total number of hook dispatches"),
	); err != nil {
		return nil, fmt.Errorf("failed to create hook dispatch instrument, %v", err)
	}

	if metrics.hookFaults, err = meter.Int64Counter(
		hookFaultCounterName,
		metric.WithDescription("The total number of isolated hook callback faults"),
	); err != nil {
		return nil, fmt.Errorf("failed to create hook fault instrument, %v", err)
	}

	if metrics.modulesBooted, err = meter.Int64Counter(
		moduleBootCounterName,
		metric.WithDescription("The total number of modules booted"),
	); err != nil {
		return nil, fmt.Errorf("failed to create module boot instrument, %v", err)
	}

	if metrics.modulesFailed, err = meter.Int64Counter(
		moduleFailureCounterName,
		metric.WithDescription("The total number of modules skipped during boot"),
	); err != nil {
		return nil, fmt.Errorf("failed to create module failure instrument, %v", err)
	}

	if metrics.bootDuration, err = meter.Float64Histogram(
		bootDurationHistogramName,
		metric.WithDescription("The duration of module boot"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create boot duration instrument, %v", err)
	}

	return metrics, nil
}

func (m *KernelMetrics) recordDispatch(ctx context.Context, table, hook string) {
	if m == nil {
		return
	}
	m.hookDispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("hook", hook),
	))
}

func (m *KernelMetrics) recordFault(ctx context.Context, hook, owner string) {
	if m == nil {
		return
	}
	m.hookFaults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("hook", hook),
		attribute.String("owner", owner),
	))
}

func (m *KernelMetrics) recordModuleBooted(ctx context.Context, module string) {
	if m == nil {
		return
	}
	m.modulesBooted.Add(ctx, 1, metric.WithAttributes(attribute.String("module", module)))
}

func (m *KernelMetrics) recordModuleFailed(ctx context.Context, module, phase string) {
	if m == nil {
		return
	}
	m.modulesFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("module", module),
		attribute.String("phase", phase),
	))
}

func (m *KernelMetrics) recordBootDuration(ctx context.Context, kind ModuleKind, started time.Time) {
	if m == nil {
		return
	}
	m.bootDuration.Record(ctx, float64(time.Since(started).Milliseconds()),
		metric.WithAttributes(attribute.String("kind", kind.String())))
}
