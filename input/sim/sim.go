// Package sim provides the simulated input component: a synthetic line
// source that exercises the full ingest path without a serial device.
// Each tick it emits one line with a value per configured series, cycling
// sine, ramp, and noise waveforms so a default setup shows all three.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HaxIOX/Portax/component"
	"github.com/HaxIOX/Portax/config"
	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/metric"
	"github.com/HaxIOX/Portax/telemetry"
)

const (
	sineHz     = 0.2             // full sine period every 5s
	rampPeriod = 8 * time.Second // sawtooth sweep length
)

// Metrics holds Prometheus metrics for the simulated input component.
type Metrics struct {
	linesEmitted    prometheus.Counter
	bytesEmitted    prometheus.Counter
	framesDiscarded prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		linesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "sim",
			Name:      "lines_emitted_total",
			Help:      "Total synthetic lines fed into the pipeline",
		}),
		bytesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "sim",
			Name:      "bytes_emitted_total",
			Help:      "Total synthetic bytes fed into the pipeline",
		}),
		framesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "sim",
			Name:      "frames_discarded_total",
			Help:      "Outbound frames accepted and dropped (no device behind the simulator)",
		}),
	}

	registry.RegisterCounter("sim_input", "lines_emitted", metrics.linesEmitted)
	registry.RegisterCounter("sim_input", "bytes_emitted", metrics.bytesEmitted)
	registry.RegisterCounter("sim_input", "frames_discarded", metrics.framesDiscarded)

	return metrics
}

// Sink receives generated lines; satisfied by pipeline.Pipeline.
type Sink interface {
	Feed(chunk string)
	Reset()
}

// SeriesProvider supplies the current series configuration each tick, so
// edits made while the simulator runs take effect immediately. Satisfied
// by config.Store.
type SeriesProvider interface {
	Series() []telemetry.SeriesConfig
}

// InputDeps holds runtime dependencies for the simulated input component.
type InputDeps struct {
	Name            string
	Config          config.SimConfig
	Series          SeriesProvider
	Sink            Sink
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Input generates synthetic telemetry lines at a fixed cadence.
type Input struct {
	name   string
	cfg    config.SimConfig
	series SeriesProvider
	sink   Sink
	logger *slog.Logger

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup

	// Flow counters
	linesEmitted    atomic.Int64
	bytesEmitted    atomic.Int64
	framesDiscarded atomic.Int64
	lastActivity    atomic.Value // time.Time

	metrics *Metrics
}

var _ component.LifecycleComponent = (*Input)(nil)

// NewInput creates a simulated input component.
func NewInput(deps InputDeps) *Input {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "sim-input")
	}

	s := &Input{
		name:      deps.Name,
		cfg:       deps.Config,
		series:    deps.Series,
		sink:      deps.Sink,
		logger:    logger,
		startTime: time.Now(),
		metrics:   newMetrics(deps.MetricsRegistry),
	}
	s.lastActivity.Store(time.Time{})
	return s
}

// Meta returns the component metadata.
func (s *Input) Meta() component.Metadata {
	name := s.name
	if name == "" {
		name = "sim-input"
	}
	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("Synthetic line source emitting every %s", time.Duration(s.cfg.Interval)),
		Version:     "1.0.0",
	}
}

// Health reports whether the generator loop is running.
func (s *Input) Health() component.HealthStatus {
	s.mu.RLock()
	startTime := s.startTime
	s.mu.RUnlock()

	return component.HealthStatus{
		Healthy:   s.running.Load(),
		LastCheck: time.Now(),
		Uptime:    time.Since(startTime),
	}
}

// DataFlow returns line and byte throughput since start.
func (s *Input) DataFlow() component.FlowMetrics {
	lines := s.linesEmitted.Load()
	bytes := s.bytesEmitted.Load()
	lastActivity, _ := s.lastActivity.Load().(time.Time)

	s.mu.RLock()
	startTime := s.startTime
	s.mu.RUnlock()

	var linesPerSecond, bytesPerSecond float64
	if uptime := time.Since(startTime).Seconds(); uptime > 0 {
		linesPerSecond = float64(lines) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	return component.FlowMetrics{
		MessagesPerSecond: linesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		LastActivity:      lastActivity,
	}
}

// Initialize validates the component's configuration and wiring.
func (s *Input) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Interval <= 0 {
		return pkgerrors.WrapInvalid(fmt.Errorf("invalid interval %v", time.Duration(s.cfg.Interval)),
			"sim-input", "Initialize", "interval validation")
	}
	if s.series == nil {
		return pkgerrors.WrapInvalid(fmt.Errorf("nil series provider"),
			"sim-input", "Initialize", "series validation")
	}
	if s.sink == nil {
		return pkgerrors.WrapInvalid(fmt.Errorf("nil sink"),
			"sim-input", "Initialize", "sink validation")
	}
	return nil
}

// Start launches the generator loop.
func (s *Input) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil // Already running, idempotent
	}

	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	s.running.Store(true)
	s.startTime = time.Now()

	s.wg.Add(1)
	go func(shutdown, done chan struct{}) {
		defer s.wg.Done()
		defer close(done)
		s.run(ctx, shutdown)
	}(s.shutdown, s.done)

	s.logger.Info("sim input started",
		"interval", time.Duration(s.cfg.Interval), "seed", s.cfg.Seed)
	return nil
}

// Stop signals the generator loop and waits up to timeout.
func (s *Input) Stop(timeout time.Duration) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
	}
	done := s.done
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			return pkgerrors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
				"sim-input", "Stop", "graceful shutdown")
		}
	}

	s.cleanup()
	return nil
}

// Write accepts an outbound frame and discards it: there is no device
// behind the simulator. Keeps the send path exercisable hardware-free.
func (s *Input) Write(data []byte) error {
	if !s.running.Load() {
		return pkgerrors.WrapTransient(pkgerrors.ErrPortClosed,
			"sim-input", "Write", "source availability")
	}

	s.framesDiscarded.Add(1)
	if s.metrics != nil {
		s.metrics.framesDiscarded.Inc()
	}
	s.logger.Debug("discarded outbound frame", "bytes", len(data))
	return nil
}

func (s *Input) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
		s.shutdown = nil
	}
	s.done = nil
	if s.sink != nil {
		s.sink.Reset()
	}
}

// run emits one line per tick until shutdown.
func (s *Input) run(ctx context.Context, shutdown chan struct{}) {
	seed := uint64(s.cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	ticker := time.NewTicker(time.Duration(s.cfg.Interval))
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown:
			return
		case <-ticker.C:
			s.emit(time.Since(start).Seconds(), rng)
		}
	}
}

func (s *Input) emit(elapsed float64, rng *rand.Rand) {
	if !s.running.Load() {
		return
	}
	series := s.series.Series()
	if len(series) == 0 {
		return
	}

	line := buildLine(series, elapsed, rng)
	s.sink.Feed(line)

	s.linesEmitted.Add(1)
	s.bytesEmitted.Add(int64(len(line)))
	s.lastActivity.Store(time.Now())

	if s.metrics != nil {
		s.metrics.linesEmitted.Inc()
		s.metrics.bytesEmitted.Add(float64(len(line)))
	}
}

// buildLine renders one telemetry line with a value per series. Keyword
// series emit "keyword: value" pairs; positional series emit the bare
// number. Hidden series still get a token so positional indices stay
// aligned with the configuration.
func buildLine(series []telemetry.SeriesConfig, elapsed float64, rng *rand.Rand) string {
	var b strings.Builder
	for i, sc := range series {
		if i > 0 {
			b.WriteByte(' ')
		}
		if sc.Keyword != "" {
			b.WriteString(sc.Keyword)
			b.WriteString(": ")
		}
		b.WriteString(strconv.FormatFloat(valueFor(i, elapsed, rng), 'f', 3, 64))
	}
	b.WriteByte('\n')
	return b.String()
}

// valueFor synthesizes the sample for one series. Series cycle through
// sine, ramp, and noise shapes; amplitude grows with the index so traces
// do not overlap.
func valueFor(index int, elapsed float64, rng *rand.Rand) float64 {
	amplitude := 40.0 + 15.0*float64(index)
	switch index % 3 {
	case 0:
		phase := float64(index) * math.Pi / 4
		return amplitude * math.Sin(2*math.Pi*sineHz*elapsed+phase)
	case 1:
		frac := math.Mod(elapsed, rampPeriod.Seconds()) / rampPeriod.Seconds()
		return amplitude * (2*frac - 1)
	default:
		return amplitude * (2*rng.Float64() - 1)
	}
}
