// Package metric provides Prometheus-based metrics collection and an HTTP
// server for Portax platform monitoring.
//
// The package offers a centralized metrics registry managing both core
// platform metrics (service status, processing durations, NATS health) and
// custom component-specific metrics. It includes an HTTP server exposing
// metrics in Prometheus format.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Component Registry: Extensible registration for component-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: Metrics endpoint with health check (Server type)
//
// This separates infrastructure concerns (core metrics) from application
// concerns (component-specific metrics) while providing a unified metrics
// endpoint.
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	if err := server.Start(); err != nil {
//	    log.Fatalf("metrics server: %v", err)
//	}
//	defer server.Stop()
//
//	// Record core platform metrics
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("serial-input", true)
//	coreMetrics.RecordProcessingDuration("pipeline", "extract", elapsed)
//
// The server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/health.
//
// # Core Metrics
//
// Core metrics use the namespace "portax":
//
//   - portax_service_status{service="..."} - 1=running, 0=stopped
//   - portax_processing_duration_seconds{service="...",operation="..."}
//   - portax_errors_total{service="...",error_type="..."}
//   - portax_health_check_status{service="...",check="..."}
//   - portax_nats_connected, portax_nats_rtt_seconds, portax_nats_reconnects_total
//
// # Component-Specific Metrics
//
// Components register their own metrics through the registry:
//
//	linesTotal := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: metric.Namespace,
//	    Subsystem: "serial_input",
//	    Name:      "lines_total",
//	    Help:      "Total number of complete lines framed",
//	})
//	err := registry.RegisterCounter("serial-input", "lines_total", linesTotal)
//
// Registration returns an error for duplicate service+metric keys and for
// Prometheus-level name conflicts. Components accept the MetricsRegistrar
// interface rather than the concrete registry, which keeps tests free of a
// shared global registry.
//
// # Thread Safety
//
// All registry operations are safe for concurrent use: registration methods
// are mutex-protected and metric recording relies on the Prometheus client's
// own guarantees.
package metric
