package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the Prometheus namespace prefix for all platform metrics.
const Namespace = "portax"

// Metrics holds the core platform metrics shared by all components.
// Component-specific metrics (lines framed, samples extracted, bytes
// written) are registered separately by each component through the
// MetricsRegistry.
type Metrics struct {
	// Service lifecycle
	ServiceStatus *prometheus.GaugeVec

	// Processing performance
	ProcessingDuration *prometheus.HistogramVec

	// Error tracking
	ErrorsTotal *prometheus.CounterVec

	// Health monitoring
	HealthCheckStatus *prometheus.GaugeVec

	// NATS connection state (used by the NATS client and output mirror)
	NATSConnected  prometheus.Gauge
	NATSRTT        prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates the core platform metrics. The collectors are not
// registered with any registry; NewMetricsRegistry does that.
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "service_status",
				Help:      "Service status (1=running, 0=stopped)",
			},
			[]string{"service"},
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "processing_duration_seconds",
				Help:      "Time spent processing operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by service and type",
			},
			[]string{"service", "error_type"},
		),
		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "health_check_status",
				Help:      "Health check status (1=healthy, 0=unhealthy)",
			},
			[]string{"service", "check"},
		),
		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),
		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "nats_rtt_seconds",
				Help:      "Round-trip time to the NATS server",
			},
		),
		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "nats_reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordServiceStatus sets the status gauge for a service.
func (m *Metrics) RecordServiceStatus(service string, running bool) {
	value := 0.0
	if running {
		value = 1.0
	}
	m.ServiceStatus.WithLabelValues(service).Set(value)
}

// RecordProcessingDuration records how long an operation took.
func (m *Metrics) RecordProcessingDuration(service, operation string, d time.Duration) {
	m.ProcessingDuration.WithLabelValues(service, operation).Observe(d.Seconds())
}

// RecordError increments the error counter for a service.
func (m *Metrics) RecordError(service, errorType string) {
	m.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordHealthStatus sets the health gauge for a named check.
func (m *Metrics) RecordHealthStatus(service, check string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.HealthCheckStatus.WithLabelValues(service, check).Set(value)
}

// RecordNATSConnected sets the NATS connection gauge.
func (m *Metrics) RecordNATSConnected(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}

// RecordNATSRTT records the measured round-trip time to NATS.
func (m *Metrics) RecordNATSRTT(rtt time.Duration) {
	m.NATSRTT.Set(rtt.Seconds())
}

// RecordNATSReconnect increments the reconnect counter.
func (m *Metrics) RecordNATSReconnect() {
	m.NATSReconnects.Inc()
}
