// health.go: per-module boot status published on a gRPC health server
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ModuleHealthPrefix prefixes module names in health service names.
const ModuleHealthPrefix = "goextend.module/"

// HealthReporter publishes kernel and module boot status through the
// standard gRPC health protocol. The empty service name reports the kernel
// itself; each booted or failed module is reported as
// "goextend.module/<name>".
//
// Example usage:
//
//	server := grpc.NewServer()
//	kernel.Health().Register(server)
type HealthReporter struct {
	server *health.Server
}

// NewHealthReporter creates a reporter whose kernel status is NOT_SERVING
// until boot completes.
func NewHealthReporter() *HealthReporter {
	h := &HealthReporter{server: health.NewServer()}
	h.server.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Server returns the underlying health server.
func (h *HealthReporter) Server() *health.Server {
	return h.server
}

// Register installs the health service on a gRPC server.
func (h *HealthReporter) Register(registrar grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(registrar, h.server)
}

// ModuleServiceName returns the health service name of a module.
func ModuleServiceName(module string) string {
	return ModuleHealthPrefix + module
}

func (h *HealthReporter) setModule(module string, booted bool) {
	if h == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if booted {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus(ModuleServiceName(module), status)
}

func (h *HealthReporter) setKernel(serving bool) {
	if h == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", status)
}

// Shutdown marks every service NOT_SERVING.
func (h *HealthReporter) Shutdown() {
	if h == nil {
		return
	}
	h.server.Shutdown()
}
