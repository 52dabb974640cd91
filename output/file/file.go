package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/HaxIOX/Portax/component"
	"github.com/HaxIOX/Portax/config"
	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/metric"
	"github.com/HaxIOX/Portax/pkg/worker"
)

const (
	// maxBufferedLines forces a flush before the ticker when a burst fills
	// the buffer.
	maxBufferedLines = 256
	// rotatedSuffixFormat stamps rotated files; millisecond precision keeps
	// rapid rotations from colliding.
	rotatedSuffixFormat = "20060102-150405.000"

	compressWorkers   = 1
	compressQueueSize = 8
)

// Metrics holds Prometheus metrics for the file output component.
type Metrics struct {
	linesWritten prometheus.Counter
	bytesWritten prometheus.Counter
	writeErrors  prometheus.Counter
	rotations    prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		linesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "file_output",
			Name:      "lines_written_total",
			Help:      "Total lines appended to the log file",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "file_output",
			Name:      "bytes_written_total",
			Help:      "Total bytes appended to the log file",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "file_output",
			Name:      "write_errors_total",
			Help:      "Failed log file writes",
		}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "file_output",
			Name:      "rotations_total",
			Help:      "Completed log file rotations",
		}),
	}

	registry.RegisterCounter("file_output", "lines_written", metrics.linesWritten)
	registry.RegisterCounter("file_output", "bytes_written", metrics.bytesWritten)
	registry.RegisterCounter("file_output", "write_errors", metrics.writeErrors)
	registry.RegisterCounter("file_output", "rotations", metrics.rotations)

	return metrics
}

// OutputDeps holds runtime dependencies for the file output component.
type OutputDeps struct {
	Name            string
	Config          config.FileOutputConfig
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Output appends framed telemetry lines to a rotating log file.
type Output struct {
	name            string
	cfg             config.FileOutputConfig
	logger          *slog.Logger
	metricsRegistry *metric.MetricsRegistry

	// Current log file; size tracks bytes written since open.
	file   *os.File
	size   int64
	fileMu sync.Mutex

	// Lines staged between flushes.
	buf   []string
	bufMu sync.Mutex

	// Created per Start: a stopped pool cannot be restarted. Guarded by
	// fileMu alongside the rotation path that submits to it.
	compressor *worker.Pool[string]

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup

	// Flow counters
	linesWritten atomic.Int64
	bytesWritten atomic.Int64
	errorCount   atomic.Int64
	rotations    atomic.Int64
	lastError    atomic.Value // string
	lastActivity atomic.Value // time.Time

	metrics *Metrics
}

var _ component.LifecycleComponent = (*Output)(nil)

// NewOutput creates a file output component.
func NewOutput(deps OutputDeps) *Output {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "file-output", "path", deps.Config.Path)
	}

	o := &Output{
		name:            deps.Name,
		cfg:             deps.Config,
		logger:          logger,
		metricsRegistry: deps.MetricsRegistry,
		buf:             make([]string, 0, maxBufferedLines),
		startTime:       time.Now(),
		metrics:         newMetrics(deps.MetricsRegistry),
	}
	o.lastActivity.Store(time.Time{})
	return o
}

// Meta returns the component metadata.
func (o *Output) Meta() component.Metadata {
	name := o.name
	if name == "" {
		name = "file-output"
	}
	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: fmt.Sprintf("Rotating line log at %s", o.cfg.Path),
		Version:     "1.0.0",
	}
}

// Health reports whether the flush loop is running with an open file.
func (o *Output) Health() component.HealthStatus {
	o.fileMu.Lock()
	open := o.file != nil
	o.fileMu.Unlock()

	o.mu.RLock()
	startTime := o.startTime
	o.mu.RUnlock()

	lastError, _ := o.lastError.Load().(string)

	return component.HealthStatus{
		Healthy:    o.running.Load() && open,
		LastCheck:  time.Now(),
		ErrorCount: int(o.errorCount.Load()),
		LastError:  lastError,
		Uptime:     time.Since(startTime),
	}
}

// DataFlow returns line and byte throughput since start.
func (o *Output) DataFlow() component.FlowMetrics {
	lines := o.linesWritten.Load()
	bytes := o.bytesWritten.Load()
	errorCount := o.errorCount.Load()
	lastActivity, _ := o.lastActivity.Load().(time.Time)

	o.mu.RLock()
	startTime := o.startTime
	o.mu.RUnlock()

	var linesPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(startTime).Seconds(); uptime > 0 {
		linesPerSecond = float64(lines) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if lines > 0 {
		errorRate = float64(errorCount) / float64(lines)
	}

	return component.FlowMetrics{
		MessagesPerSecond: linesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates the configuration and creates the log directory.
func (o *Output) Initialize() error {
	if o.cfg.Path == "" {
		return pkgerrors.WrapInvalid(pkgerrors.ErrMissingConfig,
			"file-output", "Initialize", "path validation")
	}
	if o.cfg.FlushInterval <= 0 {
		return pkgerrors.WrapInvalid(fmt.Errorf("invalid flush interval %v", time.Duration(o.cfg.FlushInterval)),
			"file-output", "Initialize", "flush interval validation")
	}

	if err := os.MkdirAll(filepath.Dir(o.cfg.Path), 0o755); err != nil {
		return pkgerrors.WrapFatal(err, "file-output", "Initialize", "create log directory")
	}
	return nil
}

// Start opens the log file and launches the flush loop.
func (o *Output) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running.Load() {
		return nil // Already running, idempotent
	}

	if err := o.openFile(); err != nil {
		return pkgerrors.WrapTransient(err, "file-output", "Start", "open log file")
	}

	if o.cfg.Compress {
		var opts []worker.Option[string]
		if o.metricsRegistry != nil {
			opts = append(opts, worker.WithMetricsRegistry[string](o.metricsRegistry, "file_output_compress"))
		}
		pool := worker.NewPool(compressWorkers, compressQueueSize, o.compressFile, opts...)
		if err := pool.Start(ctx); err != nil {
			o.closeFile()
			return pkgerrors.Wrap(err, "file-output", "Start", "start compressor pool")
		}
		o.fileMu.Lock()
		o.compressor = pool
		o.fileMu.Unlock()
	}

	o.shutdown = make(chan struct{})
	o.done = make(chan struct{})
	o.running.Store(true)
	o.startTime = time.Now()

	o.wg.Add(1)
	go func(shutdown, done chan struct{}) {
		defer o.wg.Done()
		defer close(done)
		o.flushLoop(ctx, shutdown)
	}(o.shutdown, o.done)

	o.logger.Info("file output started",
		"path", o.cfg.Path,
		"flush_interval", time.Duration(o.cfg.FlushInterval),
		"max_size_bytes", o.cfg.MaxSizeBytes,
		"compress", o.cfg.Compress)
	return nil
}

// openFile opens the log in append mode and seeds the rotation size from
// what is already on disk.
func (o *Output) openFile() error {
	file, err := os.OpenFile(o.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	o.fileMu.Lock()
	o.file = file
	o.size = size
	o.fileMu.Unlock()
	return nil
}

func (o *Output) closeFile() {
	o.fileMu.Lock()
	defer o.fileMu.Unlock()
	if o.file != nil {
		if err := o.file.Close(); err != nil {
			o.logger.Warn("failed to close log file", "path", o.cfg.Path, "error", err)
		}
		o.file = nil
	}
}

// Stop flushes remaining lines, stops the compressor, and closes the file.
func (o *Output) Stop(timeout time.Duration) error {
	if !o.running.CompareAndSwap(true, false) {
		return nil
	}
	deadline := time.Now().Add(timeout)

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
				"file-output", "Stop", "graceful shutdown")
		}
	}

	o.flush()

	o.fileMu.Lock()
	pool := o.compressor
	o.compressor = nil
	o.fileMu.Unlock()
	if pool != nil {
		if err := pool.Stop(time.Until(deadline)); err != nil {
			o.logger.Warn("compressor pool stop", "error", err)
		}
	}

	o.closeFile()

	o.mu.Lock()
	o.shutdown = nil
	o.done = nil
	o.mu.Unlock()
	return nil
}

// Lines stages framed lines for the next flush. Registered as a pipeline
// line tap; it must not block the caller, so file I/O happens on this
// component's own loop unless a burst forces an inline flush.
func (o *Output) Lines(lines []string) {
	if !o.running.Load() || len(lines) == 0 {
		return
	}

	o.bufMu.Lock()
	o.buf = append(o.buf, lines...)
	shouldFlush := len(o.buf) >= maxBufferedLines
	o.bufMu.Unlock()

	if shouldFlush {
		o.flush()
	}
}

// flushLoop drains the staging buffer on the configured cadence.
func (o *Output) flushLoop(ctx context.Context, shutdown chan struct{}) {
	ticker := time.NewTicker(time.Duration(o.cfg.FlushInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown:
			return
		case <-ticker.C:
			o.flush()
		}
	}
}

// flush writes all staged lines in one append and rotates if the file has
// grown past the limit.
func (o *Output) flush() {
	o.bufMu.Lock()
	if len(o.buf) == 0 {
		o.bufMu.Unlock()
		return
	}
	lines := o.buf
	o.buf = make([]string, 0, maxBufferedLines)
	o.bufMu.Unlock()

	var block bytes.Buffer
	for _, line := range lines {
		block.WriteString(line)
		block.WriteByte('\n')
	}

	o.fileMu.Lock()
	defer o.fileMu.Unlock()

	if o.file == nil {
		o.recordError(fmt.Errorf("log file not open, %d lines dropped", len(lines)))
		return
	}

	n, err := o.file.Write(block.Bytes())
	if err != nil {
		o.recordError(err)
		if o.metrics != nil {
			o.metrics.writeErrors.Inc()
		}
		o.logger.Error("log file write failed",
			"path", o.cfg.Path,
			"error", pkgerrors.Wrap(err, "file-output", "flush", "append lines"))
		return
	}

	o.size += int64(n)
	o.linesWritten.Add(int64(len(lines)))
	o.bytesWritten.Add(int64(n))
	o.lastActivity.Store(time.Now())

	if o.metrics != nil {
		o.metrics.linesWritten.Add(float64(len(lines)))
		o.metrics.bytesWritten.Add(float64(n))
	}

	if o.cfg.MaxSizeBytes > 0 && o.size >= o.cfg.MaxSizeBytes {
		o.rotateLocked()
	}
}

// rotateLocked renames the full log aside and reopens a fresh one. Called
// with fileMu held.
func (o *Output) rotateLocked() {
	if err := o.file.Close(); err != nil {
		o.logger.Warn("failed to close log file for rotation", "error", err)
	}
	o.file = nil

	rotated := fmt.Sprintf("%s.%s", o.cfg.Path, time.Now().Format(rotatedSuffixFormat))
	if err := os.Rename(o.cfg.Path, rotated); err != nil {
		o.recordError(err)
		o.logger.Error("log rotation rename failed", "path", o.cfg.Path, "error", err)
	} else if o.compressor != nil {
		if err := o.compressor.Submit(rotated); err != nil {
			// The rotated file stays on disk uncompressed.
			o.logger.Warn("compression queue rejected rotated log",
				"path", rotated, "error", err)
		}
	}

	file, err := os.OpenFile(o.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		o.recordError(err)
		o.logger.Error("failed to reopen log after rotation", "path", o.cfg.Path, "error", err)
		return
	}
	o.file = file
	o.size = 0
	o.rotations.Add(1)
	if o.metrics != nil {
		o.metrics.rotations.Inc()
	}
	o.logger.Info("rotated line log", "rotated", rotated)
}

// compressFile gzips one rotated log and removes the original. Runs on the
// compressor pool, off the write path.
func (o *Output) compressFile(_ context.Context, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return pkgerrors.Wrap(err, "file-output", "compressFile", "open rotated log")
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return pkgerrors.Wrap(err, "file-output", "compressFile", "create gzip target")
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		_ = gz.Close()
		_ = dst.Close()
		_ = os.Remove(path + ".gz")
		return pkgerrors.Wrap(err, "file-output", "compressFile", "compress rotated log")
	}
	if err := gz.Close(); err != nil {
		_ = dst.Close()
		_ = os.Remove(path + ".gz")
		return pkgerrors.Wrap(err, "file-output", "compressFile", "finalize gzip stream")
	}
	if err := dst.Close(); err != nil {
		return pkgerrors.Wrap(err, "file-output", "compressFile", "close gzip target")
	}

	if err := os.Remove(path); err != nil {
		o.logger.Warn("failed to remove rotated log after compression", "path", path, "error", err)
	}
	o.logger.Debug("compressed rotated log", "path", path+".gz")
	return nil
}

func (o *Output) recordError(err error) {
	o.errorCount.Add(1)
	o.lastError.Store(err.Error())
}
