// health_test.go: gRPC health status and OpenTelemetry instrument tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func servingStatus(t *testing.T, health *HealthReporter, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := health.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthReporter_Boot(t *testing.T) {
	ctx := context.Background()
	tree := newTestTree(t)
	tree.plugin("acme/good", `{"name": "acme/good"}`)
	tree.plugin("acme/bad", `{"name": "acme/bad"}`)

	providers := NewProviderRegistry()
	providers.MustRegister("acme/bad", ProviderFuncs{BootFunc: func(*Kernel) error { return errors.New("no") }})
	kernel, _ := tree.kernel(WithProviders(providers))
	health := kernel.Health()

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, health, ""))

	_, err := kernel.Plugins().Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, kernel.Plugins().Activate(ctx, "acme/good"))
	require.NoError(t, kernel.Plugins().Activate(ctx, "acme/bad"))

	_, err = kernel.Boot(ctx)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, health, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, health, ModuleServiceName("acme/good")))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, health, ModuleServiceName("acme/bad")))

	_, err = health.Server().Check(ctx, &healthpb.HealthCheckRequest{Service: ModuleServiceName("acme/unknown")})
	assert.Error(t, err)

	require.NoError(t, kernel.Close())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, health, ""))
}

func TestHealthReporter_NilIsSafe(t *testing.T) {
	var health *HealthReporter
	assert.NotPanics(t, func() {
		health.setKernel(true)
		health.setModule("acme/blog", true)
		health.Shutdown()
	})
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, point := range sum.DataPoints {
				total += point.Value
			}
			return total
		}
	}
	return 0
}

func TestKernelMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	tree := newTestTree(t)
	tree.plugin("acme/blog", `{"name": "acme/blog"}`)
	cfg := tree.config()
	cfg.FaultPolicy = "isolate"
	kernel, _ := tree.kernelWith(cfg, nil, WithMeterProvider(provider))

	hooks := kernel.Hooks()
	require.NoError(t, hooks.AddAction("init", func(context.Context, ...any) error { return errors.New("fault") }))
	require.NoError(t, hooks.DoAction(ctx, "init"))
	require.NoError(t, hooks.DoAction(ctx, "init"))
	// Dispatches without callbacks are not recorded.
	require.NoError(t, hooks.DoAction(ctx, "silent"))

	_, err := kernel.Plugins().Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, kernel.Plugins().Activate(ctx, "acme/blog"))
	_, err = kernel.Plugins().LoadActive(ctx)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	// plugin_activated and plugins_loaded have no callbacks.
	assert.Equal(t, int64(2), sumOf(t, rm, hookDispatchCounterName))
	assert.Equal(t, int64(2), sumOf(t, rm, hookFaultCounterName))
	assert.Equal(t, int64(1), sumOf(t, rm, moduleBootCounterName))
	assert.Equal(t, int64(0), sumOf(t, rm, moduleFailureCounterName))
}

func TestKernelMetrics_NilIsSafe(t *testing.T) {
	var metrics *KernelMetrics
	assert.NotPanics(t, func() {
		metrics.recordDispatch(context.Background(), "action", "init")
		metrics.recordModuleFailed(context.Background(), "acme/blog", PhaseBoot)
	})
}
