package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HaxIOX/Portax/metric"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultWorkers   = 10
	defaultQueueSize = 1000
)

// Pool runs a fixed set of workers over a bounded queue of T. Submit
// never blocks: when the queue is full the work is dropped and
// ErrQueueFull comes back, so slow background jobs cannot stall the
// caller's data path.
type Pool[T any] struct {
	workers   int
	queueSize int
	process   func(context.Context, T) error

	queue chan T
	wg    sync.WaitGroup

	// mu serializes lifecycle transitions. Submit takes it too, which
	// keeps a late Submit from racing the queue close in Stop.
	mu      sync.Mutex
	started bool
	stopped bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
	metrics       *poolMetrics
}

// Option configures a Pool at construction time.
type Option[T any] func(*Pool[T])

// WithMetricsRegistry exports the pool's counters and gauges through
// the given registry, with every series name prefixed.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsReg = registry
		p.metricsPrefix = prefix
	}
}

// NewPool builds a pool of workers draining a queue of queueSize
// items. Non-positive sizes fall back to the defaults. A nil processor
// is a construction bug and panics with ErrNilProcessor.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		process:   processor,
		queue:     make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.metricsReg != nil && p.metricsPrefix != "" {
		p.metrics = newPoolMetrics(p.metricsReg, p.metricsPrefix)
	}
	return p
}

// Submit queues work without blocking. A full queue drops the work and
// returns ErrQueueFull; the sentinels come back unwrapped so callers
// can compare directly.
func (p *Pool[T]) Submit(work T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.queue <- work:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.onSubmit(len(p.queue))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.onDrop()
		}
		return ErrQueueFull
	}
}

// Start launches the workers. The pool stops draining when ctx ends or
// Stop closes the queue, whichever comes first.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	if p.metrics != nil {
		p.wg.Add(1)
		go p.gaugeLoop(ctx)
	}

	p.started = true
	return nil
}

// Stop refuses further work and waits up to timeout for the workers to
// drain what was already queued. On timeout it returns ErrStopTimeout;
// the pool is closed to submitters either way.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	// Mark stopped before closing so a Submit that grabs the mutex
	// next sees a stopped pool, not a closed channel.
	p.stopped = true
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.queue),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// PoolStats is a point-in-time view of pool activity.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// run is one worker's loop. It exits when the context ends or the
// queue closes.
func (p *Pool[T]) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.queue:
			if !ok {
				return
			}
			p.runOne(ctx, work)
		}
	}
}

// runOne processes a single item. A processor error counts as failed;
// the item still counts as processed.
func (p *Pool[T]) runOne(ctx context.Context, work T) {
	start := time.Now()
	err := p.process(ctx, work)

	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
	}
	if p.metrics != nil {
		p.metrics.observe(err, time.Since(start))
	}
}

// gaugeLoop refreshes the depth and utilization gauges once a second.
func (p *Pool[T]) gaugeLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.metrics.sample(len(p.queue), p.queueSize)
		}
	}
}

// poolMetrics exports pool activity through Prometheus.
type poolMetrics struct {
	queueDepth  prometheus.Gauge
	utilization prometheus.Gauge

	submitted prometheus.Counter
	processed prometheus.Counter
	failed    prometheus.Counter
	dropped   prometheus.Counter

	duration *prometheus.HistogramVec
}

func newPoolMetrics(registry *metric.MetricsRegistry, prefix string) *poolMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: prefix + name, Help: help})
	}

	m := &poolMetrics{
		queueDepth:  gauge("_queue_depth", "Current worker pool queue depth"),
		utilization: gauge("_utilization", "Queue depth relative to capacity (0.0 to 1.0)"),
		submitted:   counter("_submitted_total", "Work items accepted by Submit"),
		processed:   counter("_processed_total", "Work items a worker finished"),
		failed:      counter("_failed_total", "Work items whose processor returned an error"),
		dropped:     counter("_dropped_total", "Work items dropped because the queue was full"),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_processing_duration_seconds",
			Help:    "Time spent processing work items",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"status"}),
	}

	// Registration collisions are tolerated: the pool keeps counting
	// on its local series, it just is not scraped twice.
	const service = "worker_pool"
	_ = registry.RegisterGauge(service, prefix+"_queue_depth", m.queueDepth)
	_ = registry.RegisterGauge(service, prefix+"_utilization", m.utilization)
	_ = registry.RegisterCounter(service, prefix+"_submitted_total", m.submitted)
	_ = registry.RegisterCounter(service, prefix+"_processed_total", m.processed)
	_ = registry.RegisterCounter(service, prefix+"_failed_total", m.failed)
	_ = registry.RegisterCounter(service, prefix+"_dropped_total", m.dropped)
	_ = registry.RegisterHistogramVec(service, prefix+"_processing_duration_seconds", m.duration)

	return m
}

func (m *poolMetrics) onSubmit(depth int) {
	m.submitted.Inc()
	m.queueDepth.Set(float64(depth))
}

func (m *poolMetrics) onDrop() {
	m.dropped.Inc()
}

func (m *poolMetrics) observe(err error, d time.Duration) {
	m.processed.Inc()
	status := "success"
	if err != nil {
		m.failed.Inc()
		status = "error"
	}
	m.duration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *poolMetrics) sample(depth, capacity int) {
	m.queueDepth.Set(float64(depth))
	m.utilization.Set(float64(depth) / float64(capacity))
}
