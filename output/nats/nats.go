// Package nats provides the NATS mirror output: framed lines and extracted
// sample batches are republished on a subject prefix so other processes can
// consume the live feed without touching the serial port.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HaxIOX/Portax/component"
	"github.com/HaxIOX/Portax/config"
	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/metric"
	"github.com/HaxIOX/Portax/natsclient"
	"github.com/HaxIOX/Portax/pkg/buffer"
	"github.com/HaxIOX/Portax/pkg/retry"
	"github.com/HaxIOX/Portax/telemetry"
)

const (
	// publishInterval is the mirror cadence; staged items wait at most this
	// long before the next publish attempt.
	publishInterval = 50 * time.Millisecond

	lineBufferCapacity  = 4096
	batchBufferCapacity = 256
	lineBatchSize       = 64
	sampleBatchSize     = 16

	defaultSubjectPrefix = "portax"
)

// Metrics holds Prometheus metrics for the NATS mirror output.
type Metrics struct {
	linesPublished   prometheus.Counter
	batchesPublished prometheus.Counter
	publishErrors    prometheus.Counter
	dropped          prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		linesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats_output",
			Name:      "lines_published_total",
			Help:      "Framed lines published to the mirror subject",
		}),
		batchesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats_output",
			Name:      "batches_published_total",
			Help:      "Sample batches published to the mirror subject",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats_output",
			Name:      "publish_errors_total",
			Help:      "Publishes abandoned after retries",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats_output",
			Name:      "dropped_total",
			Help:      "Staged items evicted under overload or outage",
		}),
	}

	registry.RegisterCounter("nats_output", "lines_published", metrics.linesPublished)
	registry.RegisterCounter("nats_output", "batches_published", metrics.batchesPublished)
	registry.RegisterCounter("nats_output", "publish_errors", metrics.publishErrors)
	registry.RegisterCounter("nats_output", "dropped", metrics.dropped)

	return metrics
}

// OutputDeps holds runtime dependencies for the NATS mirror output.
type OutputDeps struct {
	Name            string
	Config          config.NATSOutputConfig
	Client          *natsclient.Client
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Output mirrors the telemetry feed onto NATS subjects. Lines go to
// "<prefix>.lines" one message per line; sample batches go to
// "<prefix>.samples" as JSON arrays. Delivery is at-most-once: when the
// broker is unreachable the staging buffers drop oldest first and the
// in-memory history remains the authoritative record.
type Output struct {
	name   string
	cfg    config.NATSOutputConfig
	client *natsclient.Client
	logger *slog.Logger

	lineSubject   string
	sampleSubject string

	lines       buffer.Buffer[string]
	batches     buffer.Buffer[[]telemetry.Sample]
	retryConfig retry.Config

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup

	// Flow counters
	linesPublished   atomic.Int64
	batchesPublished atomic.Int64
	errorCount       atomic.Int64
	lastError        atomic.Value // string
	lastActivity     atomic.Value // time.Time

	metrics *Metrics
}

var _ component.LifecycleComponent = (*Output)(nil)

// NewOutput creates a NATS mirror output component.
func NewOutput(deps OutputDeps) (*Output, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats-output")
	}

	prefix := deps.Config.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	metrics := newMetrics(deps.MetricsRegistry)

	lineOpts := []buffer.Option[string]{
		buffer.WithOverflowPolicy[string](buffer.DropOldest),
	}
	batchOpts := []buffer.Option[[]telemetry.Sample]{
		buffer.WithOverflowPolicy[[]telemetry.Sample](buffer.DropOldest),
	}
	if metrics != nil {
		lineOpts = append(lineOpts, buffer.WithDropCallback[string](func(string) {
			metrics.dropped.Inc()
		}))
		batchOpts = append(batchOpts, buffer.WithDropCallback[[]telemetry.Sample](func([]telemetry.Sample) {
			metrics.dropped.Inc()
		}))
	}

	lines, err := buffer.NewCircularBuffer(lineBufferCapacity, lineOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "nats-output", "NewOutput", "create line buffer")
	}
	batches, err := buffer.NewCircularBuffer(batchBufferCapacity, batchOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "nats-output", "NewOutput", "create batch buffer")
	}

	return &Output{
		name:          deps.Name,
		cfg:           deps.Config,
		client:        deps.Client,
		logger:        logger,
		lineSubject:   prefix + ".lines",
		sampleSubject: prefix + ".samples",
		lines:         lines,
		batches:       batches,
		retryConfig:   retry.Quick(),
		startTime:     time.Now(),
		metrics:       metrics,
	}, nil
}

// Meta returns the component metadata.
func (o *Output) Meta() component.Metadata {
	name := o.name
	if name == "" {
		name = "nats-output"
	}
	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: fmt.Sprintf("NATS mirror on %s and %s", o.lineSubject, o.sampleSubject),
		Version:     "1.0.0",
	}
}

// Health reports whether the mirror is running with a live connection.
func (o *Output) Health() component.HealthStatus {
	o.mu.RLock()
	startTime := o.startTime
	o.mu.RUnlock()

	lastError, _ := o.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    o.running.Load() && o.client != nil && o.client.IsHealthy(),
		LastCheck:  time.Now(),
		ErrorCount: int(o.errorCount.Load()),
		LastError:  lastError,
		Uptime:     time.Since(startTime),
	}
}

// DataFlow returns publish throughput since start.
func (o *Output) DataFlow() component.FlowMetrics {
	published := o.linesPublished.Load() + o.batchesPublished.Load()
	errorCount := o.errorCount.Load()
	lastActivity, _ := o.lastActivity.Load().(time.Time)

	o.mu.RLock()
	startTime := o.startTime
	o.mu.RUnlock()

	var perSecond, errorRate float64
	if uptime := time.Since(startTime).Seconds(); uptime > 0 {
		perSecond = float64(published) / uptime
	}
	if published > 0 {
		errorRate = float64(errorCount) / float64(published)
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates the component's wiring.
func (o *Output) Initialize() error {
	if o.client == nil {
		return pkgerrors.WrapInvalid(pkgerrors.ErrMissingConfig,
			"nats-output", "Initialize", "client validation")
	}
	return nil
}

// Start launches the publish loop. The loop tolerates a disconnected
// client; publishing resumes once the connection is healthy.
func (o *Output) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running.Load() {
		return nil // Already running, idempotent
	}
	if o.client == nil {
		return pkgerrors.WrapFatal(pkgerrors.ErrMissingConfig,
			"nats-output", "Start", "client required")
	}

	o.shutdown = make(chan struct{})
	o.done = make(chan struct{})
	o.running.Store(true)
	o.startTime = time.Now()

	o.wg.Add(1)
	go func(shutdown, done chan struct{}) {
		defer o.wg.Done()
		defer close(done)
		o.publishLoop(ctx, shutdown)
	}(o.shutdown, o.done)

	o.logger.Info("nats mirror started",
		"line_subject", o.lineSubject, "sample_subject", o.sampleSubject)
	return nil
}

// Stop signals the publish loop, which drains staged items once before
// exiting, and waits up to timeout.
func (o *Output) Stop(timeout time.Duration) error {
	if !o.running.CompareAndSwap(true, false) {
		return nil
	}

	o.mu.Lock()
	if o.shutdown != nil {
		select {
		case <-o.shutdown:
		default:
			close(o.shutdown)
		}
	}
	done := o.done
	o.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			return pkgerrors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
				"nats-output", "Stop", "graceful shutdown")
		}
	}

	o.mu.Lock()
	o.shutdown = nil
	o.done = nil
	o.mu.Unlock()

	o.lines.Clear()
	o.batches.Clear()
	return nil
}

// Lines stages framed lines for the mirror. Registered as a pipeline line
// tap; never blocks.
func (o *Output) Lines(lines []string) {
	if !o.running.Load() {
		return
	}
	for _, line := range lines {
		_ = o.lines.Write(line)
	}
}

// Samples stages one extracted batch for the mirror. Registered as a
// pipeline sample tap; never blocks.
func (o *Output) Samples(batch []telemetry.Sample) {
	if !o.running.Load() || len(batch) == 0 {
		return
	}
	_ = o.batches.Write(batch)
}

// publishLoop drains the staging buffers on a fixed cadence and once more
// on shutdown.
func (o *Output) publishLoop(ctx context.Context, shutdown chan struct{}) {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown:
			o.drain(ctx)
			return
		case <-ticker.C:
			o.drain(ctx)
		}
	}
}

// drain publishes everything currently staged. Skipped entirely while the
// connection is down: items wait in the drop-oldest buffers instead of
// burning retry cycles.
func (o *Output) drain(ctx context.Context) {
	if !o.client.IsHealthy() {
		return
	}

	for {
		lines := o.lines.ReadBatch(lineBatchSize)
		if len(lines) == 0 {
			break
		}
		for _, line := range lines {
			o.publish(ctx, o.lineSubject, []byte(line), &o.linesPublished, o.metricLines)
		}
	}

	for {
		staged := o.batches.ReadBatch(sampleBatchSize)
		if len(staged) == 0 {
			break
		}
		for _, batch := range staged {
			data, err := json.Marshal(batch)
			if err != nil {
				o.recordError(err)
				o.logger.Warn("failed to encode sample batch", "error", err)
				continue
			}
			o.publish(ctx, o.sampleSubject, data, &o.batchesPublished, o.metricBatches)
		}
	}
}

// publish sends one message with quick retries. On final failure the
// message is dropped; the mirror is at-most-once by design.
func (o *Output) publish(ctx context.Context, subject string, data []byte, counter *atomic.Int64, onSuccess func()) {
	err := retry.Do(ctx, o.retryConfig, func() error {
		return o.client.Publish(ctx, subject, data)
	})
	if err != nil {
		o.recordError(err)
		if o.metrics != nil {
			o.metrics.publishErrors.Inc()
		}
		o.logger.Warn("mirror publish failed",
			"subject", subject,
			"error", pkgerrors.Wrap(err, "nats-output", "publish", "publish with retry"))
		return
	}

	counter.Add(1)
	o.lastActivity.Store(time.Now())
	if onSuccess != nil {
		onSuccess()
	}
}

func (o *Output) metricLines() {
	if o.metrics != nil {
		o.metrics.linesPublished.Inc()
	}
}

func (o *Output) metricBatches() {
	if o.metrics != nil {
		o.metrics.batchesPublished.Inc()
	}
}

func (o *Output) recordError(err error) {
	o.errorCount.Add(1)
	o.lastError.Store(err.Error())
}
