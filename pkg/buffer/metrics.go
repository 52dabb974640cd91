package buffer

import (
	"github.com/HaxIOX/Portax/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// bufferMetrics mirrors a buffer's statistics into Prometheus. Every
// series lives under portax_buffer and carries the owning component as
// a const label, so one registry can hold the serial chunk buffer, the
// gateway stages and the output queues side by side.
type bufferMetrics struct {
	writes    prometheus.Counter
	reads     prometheus.Counter
	peeks     prometheus.Counter
	overflows prometheus.Counter
	drops     prometheus.Counter

	fill        prometheus.Gauge
	utilization prometheus.Gauge
}

func newBufferMetrics(registry *metric.MetricsRegistry, component string) (*bufferMetrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "portax",
			Subsystem:   "buffer",
			Name:        name,
			ConstLabels: prometheus.Labels{"component": component},
			Help:        help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "portax",
			Subsystem:   "buffer",
			Name:        name,
			ConstLabels: prometheus.Labels{"component": component},
			Help:        help,
		})
	}

	m := &bufferMetrics{
		writes:      counter("writes_total", "Total number of buffer write operations"),
		reads:       counter("reads_total", "Total number of buffer read operations"),
		peeks:       counter("peeks_total", "Total number of buffer peek operations"),
		overflows:   counter("overflows_total", "Writes that found the buffer full"),
		drops:       counter("drops_total", "Items discarded by the overflow policy"),
		fill:        gauge("size", "Current number of items in the buffer"),
		utilization: gauge("utilization", "Fill level relative to capacity (0.0 to 1.0)"),
	}

	counters := map[string]prometheus.Counter{
		"buffer_writes":    m.writes,
		"buffer_reads":     m.reads,
		"buffer_peeks":     m.peeks,
		"buffer_overflows": m.overflows,
		"buffer_drops":     m.drops,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(component, name, c); err != nil {
			return nil, err
		}
	}

	gauges := map[string]prometheus.Gauge{
		"buffer_size":        m.fill,
		"buffer_utilization": m.utilization,
	}
	for name, g := range gauges {
		if err := registry.RegisterGauge(component, name, g); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *bufferMetrics) onWrite(count, capacity int) {
	m.writes.Inc()
	m.setSize(count, capacity)
}

func (m *bufferMetrics) onRead(count, capacity int) {
	m.reads.Inc()
	m.setSize(count, capacity)
}

func (m *bufferMetrics) onPeek() { m.peeks.Inc() }

func (m *bufferMetrics) onOverflow() { m.overflows.Inc() }

func (m *bufferMetrics) onDrop() { m.drops.Inc() }

func (m *bufferMetrics) setSize(count, capacity int) {
	m.fill.Set(float64(count))
	m.utilization.Set(float64(count) / float64(capacity))
}
