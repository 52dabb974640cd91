package metric

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ MetricsRegistrar = (*MetricsRegistry)(nil)

// gatherNames collects the names of every family the registry would
// expose on a scrape.
func gatherNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())

	// The constructor wires the Go runtime collectors too.
	assert.True(t, gatherNames(t, registry)["go_goroutines"])
}

func TestMetricsRegistry_RegisterKinds(t *testing.T) {
	tests := []struct {
		name   string
		series string
		bind   func(r *MetricsRegistry) error
	}{
		{
			name:   "counter",
			series: "portax_serial_input_chunks_total",
			bind: func(r *MetricsRegistry) error {
				c := prometheus.NewCounter(prometheus.CounterOpts{
					Namespace: Namespace,
					Name:      "serial_input_chunks_total",
					Help:      "Chunks read from the port",
				})
				c.Inc()
				return r.RegisterCounter("serial-input", "chunks_total", c)
			},
		},
		{
			name:   "gauge",
			series: "portax_pipeline_staged_samples",
			bind: func(r *MetricsRegistry) error {
				g := prometheus.NewGauge(prometheus.GaugeOpts{
					Namespace: Namespace,
					Name:      "pipeline_staged_samples",
					Help:      "Samples waiting for the next flush",
				})
				g.Set(12)
				return r.RegisterGauge("pipeline", "staged_samples", g)
			},
		},
		{
			name:   "histogram",
			series: "portax_gateway_request_duration_seconds",
			bind: func(r *MetricsRegistry) error {
				h := prometheus.NewHistogram(prometheus.HistogramOpts{
					Namespace: Namespace,
					Name:      "gateway_request_duration_seconds",
					Help:      "API request latency",
					Buckets:   prometheus.DefBuckets,
				})
				h.Observe(0.042)
				return r.RegisterHistogram("gateway", "request_duration", h)
			},
		},
		{
			name:   "counter vec",
			series: "portax_pipeline_stage_errors_total",
			bind: func(r *MetricsRegistry) error {
				cv := prometheus.NewCounterVec(prometheus.CounterOpts{
					Namespace: Namespace,
					Name:      "pipeline_stage_errors_total",
					Help:      "Errors by pipeline stage",
				}, []string{"stage"})
				cv.WithLabelValues("extract").Inc()
				return r.RegisterCounterVec("pipeline", "stage_errors", cv)
			},
		},
		{
			name:   "gauge vec",
			series: "portax_history_series_points",
			bind: func(r *MetricsRegistry) error {
				gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
					Namespace: Namespace,
					Name:      "history_series_points",
					Help:      "Points retained per series",
				}, []string{"series"})
				gv.WithLabelValues("temp").Set(256)
				return r.RegisterGaugeVec("history", "series_points", gv)
			},
		},
		{
			name:   "histogram vec",
			series: "portax_nats_publish_duration_seconds",
			bind: func(r *MetricsRegistry) error {
				hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
					Namespace: Namespace,
					Name:      "nats_publish_duration_seconds",
					Help:      "Publish latency by subject",
					Buckets:   prometheus.DefBuckets,
				}, []string{"subject"})
				hv.WithLabelValues("telemetry.samples").Observe(0.003)
				return r.RegisterHistogramVec("nats-output", "publish_duration", hv)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewMetricsRegistry()
			require.NoError(t, tt.bind(registry))
			assert.True(t, gatherNames(t, registry)[tt.series],
				"series %s should be scrapeable", tt.series)
		})
	}
}

func TestMetricsRegistry_DuplicateKeyRejected(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reads_total",
		Help: "First collector",
	})
	require.NoError(t, registry.RegisterCounter("serial-input", "reads_total", first))

	// Same service+metric key is rejected by the registry's own
	// bookkeeping, before Prometheus sees the second collector.
	second := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reads_total_other",
		Help: "Second collector",
	})
	err := registry.RegisterCounter("serial-input", "reads_total", second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate metric registration")
}

func TestMetricsRegistry_PrometheusConflictRejected(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frames_total",
		Help: "Frames",
	})
	require.NoError(t, registry.RegisterCounter("framer", "frames_total", first))

	// Different registry key, but the same Prometheus series name.
	second := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frames_total",
		Help: "Frames",
	})
	err := registry.RegisterCounter("splitter", "frames_total", second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bytes_written_total",
		Help: "Bytes written to the log file",
	})
	require.NoError(t, registry.RegisterCounter("file-output", "bytes_written_total", counter))
	require.True(t, gatherNames(t, registry)["bytes_written_total"])

	assert.True(t, registry.Unregister("file-output", "bytes_written_total"))
	assert.False(t, gatherNames(t, registry)["bytes_written_total"])

	// Unknown keys just report false.
	assert.False(t, registry.Unregister("file-output", "bytes_written_total"))
	assert.False(t, registry.Unregister("no-such-service", "bytes_written_total"))
}

func TestMetricsRegistry_ConcurrentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	const workers = 10
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("stage_%d_lines_total", id)
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: name,
				Help: "Lines through one stage",
			})
			errs <- registry.RegisterCounter("pipeline", name, counter)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	registered := 0
	for name := range gatherNames(t, registry) {
		if strings.HasPrefix(name, "stage_") {
			registered++
		}
	}
	assert.Equal(t, workers, registered)
}

func TestMetricsRegistry_CoreSeries(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	// Vector families only appear on a scrape once they have a child.
	core.RecordServiceStatus("serial-input", true)
	core.RecordProcessingDuration("pipeline", "extract", 100*time.Millisecond)
	core.RecordError("serial-input", "framing")
	core.RecordHealthStatus("nats-output", "connection", true)

	names := gatherNames(t, registry)
	for _, series := range []string{
		"portax_service_status",
		"portax_processing_duration_seconds",
		"portax_errors_total",
		"portax_health_check_status",
		"portax_nats_connected",
		"portax_nats_rtt_seconds",
		"portax_nats_reconnects_total",
	} {
		assert.True(t, names[series], "core series %s should be scrapeable", series)
	}
}

func TestMetricsRegistry_ComponentSeriesNotPreRegistered(t *testing.T) {
	registry := NewMetricsRegistry()

	// Component series are bound by the components themselves; a fresh
	// registry must not know them.
	names := gatherNames(t, registry)
	for _, series := range []string{
		"portax_serial_input_lines_total",
		"portax_pipeline_samples_total",
		"portax_file_output_bytes_written_total",
		"portax_gateway_requests_total",
	} {
		assert.False(t, names[series], "series %s belongs to its component", series)
	}
}

func TestCoreMetrics_RecordValues(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordServiceStatus("serial-input", true)
	core.RecordServiceStatus("nats-output", false)
	core.RecordError("pipeline", "decode")
	core.RecordError("pipeline", "decode")
	core.RecordNATSConnected(true)
	core.RecordNATSRTT(50 * time.Millisecond)
	core.RecordNATSReconnect()

	families := gatherFamilies(t, registry)

	status := families["portax_service_status"]
	require.NotNil(t, status)
	assert.Equal(t, 1.0, labelledGauge(status, "service", "serial-input"))
	assert.Equal(t, 0.0, labelledGauge(status, "service", "nats-output"))

	errsFam := families["portax_errors_total"]
	require.NotNil(t, errsFam)
	assert.Equal(t, 2.0, labelledCounter(errsFam, "error_type", "decode"))

	conn := families["portax_nats_connected"]
	require.NotNil(t, conn)
	assert.Equal(t, 1.0, conn.GetMetric()[0].GetGauge().GetValue())

	rtt := families["portax_nats_rtt_seconds"]
	require.NotNil(t, rtt)
	assert.InDelta(t, 0.05, rtt.GetMetric()[0].GetGauge().GetValue(), 1e-9)

	reconnects := families["portax_nats_reconnects_total"]
	require.NotNil(t, reconnects)
	assert.Equal(t, 1.0, reconnects.GetMetric()[0].GetCounter().GetValue())
}
