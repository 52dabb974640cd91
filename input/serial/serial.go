// Package serial provides the serial-port input component: it owns the
// device, reads decoded text chunks, and feeds them through a drop-oldest
// buffer into the ingest pipeline.
package serial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goserial "go.bug.st/serial"

	"github.com/HaxIOX/Portax/component"
	"github.com/HaxIOX/Portax/config"
	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/metric"
	"github.com/HaxIOX/Portax/pkg/buffer"
	"github.com/HaxIOX/Portax/pkg/retry"
)

const (
	// readTimeout bounds each port read so the loop can notice shutdown.
	readTimeout = 100 * time.Millisecond
	// chunkBufferCapacity bounds the staging buffer between the port and
	// the pipeline. Overflow drops the oldest chunks.
	chunkBufferCapacity = 1024
	// chunkBatchSize limits how many chunks drain per read iteration.
	chunkBatchSize = 32
)

// Metrics holds Prometheus metrics for the serial input component.
type Metrics struct {
	chunksReceived prometheus.Counter
	bytesReceived  prometheus.Counter
	chunksDropped  prometheus.Counter
	readErrors     prometheus.Counter
	writesTotal    prometheus.Counter
	writeErrors    prometheus.Counter
	lastActivity   prometheus.Gauge
}

// newMetrics creates and registers serial input metrics. Returns nil when
// no registry is provided; callers nil-check before recording.
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		chunksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "serial",
			Name:      "chunks_received_total",
			Help:      "Total chunks read from the serial port",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "serial",
			Name:      "bytes_received_total",
			Help:      "Total bytes read from the serial port",
		}),
		chunksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "serial",
			Name:      "chunks_dropped_total",
			Help:      "Chunks evicted from the staging buffer under overload",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "serial",
			Name:      "read_errors_total",
			Help:      "Port read errors encountered",
		}),
		writesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "serial",
			Name:      "writes_total",
			Help:      "Outbound frames written to the port",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "serial",
			Name:      "write_errors_total",
			Help:      "Outbound frame write failures",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "serial",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received chunk",
		}),
	}

	registry.RegisterCounter("serial_input", "chunks_received", metrics.chunksReceived)
	registry.RegisterCounter("serial_input", "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter("serial_input", "chunks_dropped", metrics.chunksDropped)
	registry.RegisterCounter("serial_input", "read_errors", metrics.readErrors)
	registry.RegisterCounter("serial_input", "writes_total", metrics.writesTotal)
	registry.RegisterCounter("serial_input", "write_errors", metrics.writeErrors)
	registry.RegisterGauge("serial_input", "last_activity", metrics.lastActivity)

	return metrics
}

// Sink receives decoded chunks from the port and a Reset on disconnect so
// partial state never leaks across sessions. Satisfied by
// pipeline.Pipeline.
type Sink interface {
	Feed(chunk string)
	Reset()
}

// InputDeps holds runtime dependencies for the serial input component.
type InputDeps struct {
	Name            string
	Config          config.SerialConfig
	Sink            Sink
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Input reads text from a serial device and feeds it into the pipeline.
type Input struct {
	name   string
	cfg    config.SerialConfig
	sink   Sink
	logger *slog.Logger

	chunks      buffer.Buffer[string]
	retryConfig retry.Config

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	port      goserial.Port

	// Flow counters
	chunksReceived atomic.Int64
	bytesReceived  atomic.Int64
	errorCount     atomic.Int64
	lastError      atomic.Value // string
	lastActivity   atomic.Value // time.Time

	metrics *Metrics
}

var _ component.LifecycleComponent = (*Input)(nil)

// NewInput creates a serial input component.
func NewInput(deps InputDeps) (*Input, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "serial-input", "device", deps.Config.Device)
	}

	metrics := newMetrics(deps.MetricsRegistry)

	bufferOpts := []buffer.Option[string]{
		buffer.WithOverflowPolicy[string](buffer.DropOldest),
	}
	if metrics != nil {
		bufferOpts = append(bufferOpts, buffer.WithDropCallback[string](func(string) {
			metrics.chunksDropped.Inc()
		}))
	}
	if deps.MetricsRegistry != nil {
		bufferOpts = append(bufferOpts, buffer.WithMetrics[string](deps.MetricsRegistry, "serial_input"))
	}

	chunks, err := buffer.NewCircularBuffer(chunkBufferCapacity, bufferOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "serial-input", "NewInput", "create chunk buffer")
	}

	s := &Input{
		name:        deps.Name,
		cfg:         deps.Config,
		sink:        deps.Sink,
		logger:      logger,
		chunks:      chunks,
		retryConfig: retry.Persistent(),
		startTime:   time.Now(),
		metrics:     metrics,
	}
	s.lastActivity.Store(time.Time{})
	return s, nil
}

// Meta returns the component metadata.
func (s *Input) Meta() component.Metadata {
	name := s.name
	if name == "" {
		name = "serial-input"
	}
	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("Serial line input on %s at %d baud", s.cfg.Device, s.cfg.BaudRate),
		Version:     "1.0.0",
	}
}

// Health reports whether the read loop is running with an open port.
func (s *Input) Health() component.HealthStatus {
	s.mu.RLock()
	connected := s.port != nil
	startTime := s.startTime
	s.mu.RUnlock()

	lastError, _ := s.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    s.running.Load() && connected,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errorCount.Load()),
		LastError:  lastError,
		Uptime:     time.Since(startTime),
	}
}

// DataFlow returns chunk and byte throughput since start.
func (s *Input) DataFlow() component.FlowMetrics {
	chunks := s.chunksReceived.Load()
	bytes := s.bytesReceived.Load()
	errorCount := s.errorCount.Load()
	lastActivity, _ := s.lastActivity.Load().(time.Time)

	s.mu.RLock()
	startTime := s.startTime
	s.mu.RUnlock()

	var chunksPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(startTime).Seconds(); uptime > 0 {
		chunksPerSecond = float64(chunks) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if chunks > 0 {
		errorRate = float64(errorCount) / float64(chunks)
	}

	return component.FlowMetrics{
		MessagesPerSecond: chunksPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates the component's configuration and wiring.
func (s *Input) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Device == "" {
		return pkgerrors.WrapInvalid(pkgerrors.ErrMissingConfig,
			"serial-input", "Initialize", "device validation")
	}
	if s.cfg.BaudRate <= 0 {
		return pkgerrors.WrapInvalid(fmt.Errorf("invalid baud rate %d", s.cfg.BaudRate),
			"serial-input", "Initialize", "baud rate validation")
	}
	if s.sink == nil {
		return pkgerrors.WrapInvalid(fmt.Errorf("nil sink"),
			"serial-input", "Initialize", "sink validation")
	}
	return nil
}

// Start opens the port, retrying while the device may still be attaching,
// and launches the read loop.
func (s *Input) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil // Already running, idempotent
	}

	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})

	if err := retry.Do(ctx, s.retryConfig, s.openPort); err != nil {
		s.cleanupUnlocked()
		return pkgerrors.WrapTransient(err, "serial-input", "Start", "open port")
	}

	s.running.Store(true)
	s.startTime = time.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.done != nil {
				select {
				case <-s.done:
				default:
					close(s.done)
				}
			}
		}()
		s.readLoop(ctx)
	}()

	s.logger.Info("serial input started", "device", s.cfg.Device, "baud", s.cfg.BaudRate)
	return nil
}

// openPort opens and configures the device. Called with s.mu held.
func (s *Input) openPort() error {
	mode := &goserial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: s.cfg.DataBits,
		Parity:   parityFromConfig(s.cfg.Parity),
		StopBits: stopBitsFromConfig(s.cfg.StopBits),
	}

	port, err := goserial.Open(s.cfg.Device, mode)
	if err != nil {
		err = fmt.Errorf("open %s: %w", s.cfg.Device, err)
		if isSettingsError(err) {
			// A bad mode or missing privilege fails the same way on
			// every attempt; stop the retry loop early.
			return retry.NonRetryable(err)
		}
		return err
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("set read timeout on %s: %w", s.cfg.Device, err)
	}

	s.port = port
	return nil
}

// isSettingsError reports whether the open failed because of the port
// settings or privileges rather than the device's presence. A missing
// device is worth waiting for; these are not.
func isSettingsError(err error) bool {
	var portErr *goserial.PortError
	if !errors.As(err, &portErr) {
		return false
	}
	switch portErr.Code() {
	case goserial.InvalidSpeed, goserial.InvalidDataBits, goserial.InvalidParity,
		goserial.InvalidStopBits, goserial.PermissionDenied:
		return true
	default:
		return false
	}
}

// parityFromConfig maps the validated config string to the port setting.
func parityFromConfig(parity string) goserial.Parity {
	switch parity {
	case "odd":
		return goserial.OddParity
	case "even":
		return goserial.EvenParity
	case "mark":
		return goserial.MarkParity
	case "space":
		return goserial.SpaceParity
	default:
		return goserial.NoParity
	}
}

// stopBitsFromConfig maps the validated config string to the port setting.
func stopBitsFromConfig(stopBits string) goserial.StopBits {
	switch stopBits {
	case "1.5":
		return goserial.OnePointFiveStopBits
	case "2":
		return goserial.TwoStopBits
	default:
		return goserial.OneStopBit
	}
}

// Stop signals the read loop, closes the port, and waits up to timeout.
func (s *Input) Stop(timeout time.Duration) error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	s.mu.Lock()
	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
	}
	// Close the port to unblock a pending read.
	if s.port != nil {
		_ = s.port.Close()
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(timeout):
		return pkgerrors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"serial-input", "Stop", "graceful shutdown")
	}

	s.cleanup()
	return nil
}

// Write sends one outbound frame to the device.
func (s *Input) Write(data []byte) error {
	s.mu.RLock()
	port := s.port
	s.mu.RUnlock()

	if !s.running.Load() || port == nil {
		return pkgerrors.WrapTransient(pkgerrors.ErrPortClosed,
			"serial-input", "Write", "port availability")
	}

	if _, err := port.Write(data); err != nil {
		s.recordError(err)
		if s.metrics != nil {
			s.metrics.writeErrors.Inc()
		}
		return pkgerrors.WrapTransient(err, "serial-input", "Write", "port write")
	}

	if s.metrics != nil {
		s.metrics.writesTotal.Inc()
	}
	return nil
}

func (s *Input) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupUnlocked()
}

// cleanupUnlocked releases resources with s.mu already held. The chunk
// buffer is cleared, not closed: the component can be restarted.
func (s *Input) cleanupUnlocked() {
	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
		s.shutdown = nil
	}
	s.done = nil
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	s.chunks.Clear()
	if s.sink != nil {
		s.sink.Reset()
	}
}

// readLoop reads chunks until shutdown or a non-recoverable port error.
func (s *Input) readLoop(ctx context.Context) {
	readBuf := make([]byte, 4096)

	for s.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		default:
		}

		s.mu.RLock()
		if !s.running.Load() || s.port == nil {
			s.mu.RUnlock()
			return
		}
		port := s.port
		s.mu.RUnlock()

		n, err := port.Read(readBuf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-s.shutdown:
				// Orderly stop closed the port under us.
				s.logger.Debug("read ended during stop", "error", err)
				return
			default:
			}

			s.recordError(err)
			if s.metrics != nil {
				s.metrics.readErrors.Inc()
			}
			s.logger.Error("serial read failed",
				"device", s.cfg.Device,
				"error", pkgerrors.Wrap(err, "serial-input", "readLoop", "port read"))
			s.failLoop()
			return
		}
		if n == 0 {
			// Read timeout tick; loop back to check shutdown.
			continue
		}

		chunk := string(readBuf[:n])
		s.chunksReceived.Add(1)
		s.bytesReceived.Add(int64(n))
		now := time.Now()
		s.lastActivity.Store(now)

		if s.metrics != nil {
			s.metrics.chunksReceived.Inc()
			s.metrics.bytesReceived.Add(float64(n))
			s.metrics.lastActivity.Set(float64(now.Unix()))
		}

		if err := s.chunks.Write(chunk); err != nil {
			continue
		}
		s.drainChunks()
	}
}

// drainChunks moves staged chunks into the sink on the read goroutine,
// preserving arrival order.
func (s *Input) drainChunks() {
	for _, chunk := range s.chunks.ReadBatch(chunkBatchSize) {
		if !s.running.Load() {
			return
		}
		s.sink.Feed(chunk)
	}
}

// failLoop tears the component down after a non-recoverable read error:
// buffered state is discarded, the sink resets, and health turns
// unhealthy until a restart.
func (s *Input) failLoop() {
	s.running.Store(false)
	s.chunks.Clear()
	s.sink.Reset()

	s.mu.Lock()
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	s.mu.Unlock()
}

func (s *Input) recordError(err error) {
	s.errorCount.Add(1)
	s.lastError.Store(err.Error())
}
