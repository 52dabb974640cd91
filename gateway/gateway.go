package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/HaxIOX/Portax/codec"
	"github.com/HaxIOX/Portax/component"
	"github.com/HaxIOX/Portax/config"
	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/export"
	"github.com/HaxIOX/Portax/health"
	"github.com/HaxIOX/Portax/history"
	"github.com/HaxIOX/Portax/metric"
	"github.com/HaxIOX/Portax/pipeline"
	"github.com/HaxIOX/Portax/pkg/buffer"
	"github.com/HaxIOX/Portax/scale"
	"github.com/HaxIOX/Portax/telemetry"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 8455

	readHeaderTimeout = 10 * time.Second

	// maxRequestBody caps JSON request bodies. The largest legitimate
	// payload is a series reconfiguration, which is tiny.
	maxRequestBody = 64 << 10
)

// Transport is where /api/send frames go: the write side of whichever
// input feeds the pipeline.
type Transport interface {
	Write(data []byte) error
}

// Metrics holds Prometheus metrics for the gateway
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestErrors     prometheus.Counter
	clientsConnected  prometheus.Gauge
	framesSent        *prometheus.CounterVec
	framesDropped     prometheus.Counter
	broadcastDuration prometheus.Histogram
	exportsServed     *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "HTTP requests received, by route",
		}, []string{"route"}),
		requestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "request_errors_total",
			Help:      "HTTP error responses sent",
		}),
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "ws_clients_connected",
			Help:      "Currently connected WebSocket clients",
		}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "ws_frames_sent_total",
			Help:      "WebSocket frames delivered to clients, by frame type",
		}, []string{"type"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "ws_stage_dropped_total",
			Help:      "Staged items evicted before they could be broadcast",
		}),
		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "ws_broadcast_duration_seconds",
			Help:      "Time to fan one frame out to all clients",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		exportsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "gateway",
			Name:      "exports_served_total",
			Help:      "Completed exports, by format",
		}, []string{"format"}),
	}

	registry.RegisterCounterVec("gateway", "requests", metrics.requestsTotal)
	registry.RegisterCounter("gateway", "request_errors", metrics.requestErrors)
	registry.RegisterGauge("gateway", "ws_clients", metrics.clientsConnected)
	registry.RegisterCounterVec("gateway", "ws_frames", metrics.framesSent)
	registry.RegisterCounter("gateway", "ws_stage_dropped", metrics.framesDropped)
	registry.RegisterHistogram("gateway", "broadcast_duration", metrics.broadcastDuration)
	registry.RegisterCounterVec("gateway", "exports", metrics.exportsServed)

	return metrics
}

// ServerDeps contains the dependencies for the gateway
type ServerDeps struct {
	Name            string
	Config          config.GatewayConfig
	History         *history.Store
	Settings        *config.Store
	Pipeline        *pipeline.Pipeline
	Transport       Transport
	Components      []component.Discoverable
	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// Server is the control surface: a REST API for inspecting and steering
// the pipeline, exports of the history window, and a WebSocket stream of
// live lines, samples and ranges. It implements component.LifecycleComponent
// and runs alongside the input and outputs under the same manager.
type Server struct {
	name         string
	cfg          config.GatewayConfig
	historyStore *history.Store
	settings     *config.Store
	pipe         *pipeline.Pipeline
	transport    Transport
	components   []component.Discoverable
	logger       *slog.Logger
	metrics      *Metrics

	upgrader  websocket.Upgrader
	clients   map[*client]struct{}
	clientsMu sync.RWMutex

	lineStage   buffer.Buffer[string]
	sampleStage buffer.Buffer[telemetry.Sample]

	server      *http.Server
	running     atomic.Bool
	serveFailed atomic.Bool
	mu          sync.RWMutex
	shutdown    chan struct{}
	done        chan struct{}

	startTime    time.Time
	lastActivity time.Time
	lastError    string

	requestCount atomic.Uint64
	errorCount   atomic.Uint64
	framesSent   atomic.Uint64
	bytesSent    atomic.Uint64
}

var _ component.LifecycleComponent = (*Server)(nil)

// NewServer creates a gateway server from its dependencies. Missing config
// fields fall back to loopback defaults; validation happens in Initialize.
func NewServer(deps ServerDeps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "gateway")
	}

	cfg := deps.Config
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	metrics := newMetrics(deps.MetricsRegistry)

	lineOpts := []buffer.Option[string]{buffer.WithOverflowPolicy[string](buffer.DropOldest)}
	sampleOpts := []buffer.Option[telemetry.Sample]{buffer.WithOverflowPolicy[telemetry.Sample](buffer.DropOldest)}
	if metrics != nil {
		lineOpts = append(lineOpts, buffer.WithDropCallback[string](func(string) {
			metrics.framesDropped.Inc()
		}))
		sampleOpts = append(sampleOpts, buffer.WithDropCallback[telemetry.Sample](func(telemetry.Sample) {
			metrics.framesDropped.Inc()
		}))
	}

	lineStage, err := buffer.NewCircularBuffer(lineStageCapacity, lineOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Gateway", "NewServer", "create line stage")
	}
	sampleStage, err := buffer.NewCircularBuffer(sampleStageCapacity, sampleOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "Gateway", "NewServer", "create sample stage")
	}

	return &Server{
		name:         deps.Name,
		cfg:          cfg,
		historyStore: deps.History,
		settings:     deps.Settings,
		pipe:         deps.Pipeline,
		transport:    deps.Transport,
		components:   deps.Components,
		logger:       logger,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards load from file:// and dev servers; the bind
			// address is the access control, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:     make(map[*client]struct{}),
		lineStage:   lineStage,
		sampleStage: sampleStage,
		startTime:   time.Now(),
	}, nil
}

// Meta returns component metadata
func (s *Server) Meta() component.Metadata {
	name := s.name
	if name == "" {
		name = "gateway"
	}
	return component.Metadata{
		Name:        name,
		Type:        "surface",
		Description: fmt.Sprintf("HTTP API and WebSocket stream on %s:%d", s.cfg.Host, s.cfg.Port),
		Version:     "1.0.0",
	}
}

// Health returns the current health status
func (s *Server) Health() component.HealthStatus {
	s.mu.RLock()
	startTime := s.startTime
	lastError := s.lastError
	s.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    s.running.Load() && !s.serveFailed.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(s.errorCount.Load()),
		LastError:  lastError,
		Uptime:     time.Since(startTime),
	}
}

// DataFlow returns data flow statistics
func (s *Server) DataFlow() component.FlowMetrics {
	s.mu.RLock()
	startTime := s.startTime
	lastActivity := s.lastActivity
	s.mu.RUnlock()

	uptime := time.Since(startTime).Seconds()
	var msgRate, byteRate float64
	if uptime > 0 {
		msgRate = float64(s.requestCount.Load()+s.framesSent.Load()) / uptime
		byteRate = float64(s.bytesSent.Load()) / uptime
	}

	var errorRate float64
	if requests := s.requestCount.Load(); requests > 0 {
		errorRate = float64(s.errorCount.Load()) / float64(requests)
	}

	return component.FlowMetrics{
		MessagesPerSecond: msgRate,
		BytesPerSecond:    byteRate,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates configuration and dependencies
func (s *Server) Initialize() error {
	if s.historyStore == nil || s.settings == nil || s.pipe == nil {
		return pkgerrors.WrapInvalid(pkgerrors.ErrMissingConfig,
			"Gateway", "Initialize", "history store, settings and pipeline are required")
	}
	if s.transport == nil {
		return pkgerrors.WrapInvalid(pkgerrors.ErrMissingConfig,
			"Gateway", "Initialize", "transport is required for /api/send")
	}
	if s.cfg.Port < 1 || s.cfg.Port > 65535 {
		return pkgerrors.WrapInvalid(pkgerrors.ErrInvalidConfig,
			"Gateway", "Initialize", fmt.Sprintf("port %d out of range 1-65535", s.cfg.Port))
	}
	return nil
}

// Start binds the listen address and begins serving. The bind happens
// synchronously so a taken port fails Start instead of surfacing later
// from a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil // Already running, idempotent
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return pkgerrors.WrapTransient(err, "Gateway", "Start", "bind "+addr)
	}

	server := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.server = server
	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	s.serveFailed.Store(false)
	s.running.Store(true)
	s.startTime = time.Now()

	go s.serve(server, listener)
	go func(shutdown, done chan struct{}) {
		defer close(done)
		s.run(ctx, shutdown)
	}(s.shutdown, s.done)

	s.logger.Info("gateway started", "addr", addr)
	return nil
}

func (s *Server) serve(server *http.Server, listener net.Listener) {
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		s.serveFailed.Store(true)
		s.errorCount.Add(1)
		s.recordError("serve failed: " + err.Error())
		s.logger.Error("gateway serve failed", "error", err)
	}
}

// Stop shuts the gateway down, disconnecting WebSocket clients and
// draining in-flight HTTP requests within the timeout.
func (s *Server) Stop(timeout time.Duration) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	deadline := time.Now().Add(timeout)
	s.logger.Info("stopping gateway")

	s.mu.Lock()
	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
	}
	done := s.done
	server := s.server
	s.mu.Unlock()

	// WebSocket connections are hijacked, so server.Shutdown does not
	// wait for them. Closing them here unblocks their readers.
	s.closeAllClients()

	if server != nil {
		shutdownCtx, cancel := context.WithDeadline(context.Background(), deadline)
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("gateway shutdown incomplete", "error", err)
		}
		cancel()
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(time.Until(deadline)):
			s.logger.Warn("gateway stream pump did not stop in time", "timeout", timeout)
			return pkgerrors.WrapTransient(
				fmt.Errorf("stop timeout after %v", timeout), "Gateway", "Stop", "wait for stream pump")
		}
	}

	s.mu.Lock()
	s.server = nil
	s.shutdown = nil
	s.done = nil
	s.mu.Unlock()

	s.lineStage.Clear()
	s.sampleStage.Clear()

	s.logger.Info("gateway stopped")
	return nil
}

func (s *Server) recordError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

func (s *Server) touchActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// handler builds the route table. Method dispatch happens inside the
// handlers so unmatched methods answer 405 rather than 404.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.instrument("index", s.handleIndex))
	mux.HandleFunc("/healthz", s.instrument("healthz", s.handleHealthz))
	mux.HandleFunc("/api/window", s.instrument("window", s.handleWindow))
	mux.HandleFunc("/api/ranges", s.instrument("ranges", s.handleRanges))
	mux.HandleFunc("/api/series", s.instrument("series", s.handleSeries))
	mux.HandleFunc("/api/scale", s.instrument("scale", s.handleScale))
	mux.HandleFunc("/api/send", s.instrument("send", s.handleSend))
	mux.HandleFunc("/api/pause", s.instrument("pause", s.handlePause))
	mux.HandleFunc("/api/resume", s.instrument("resume", s.handleResume))
	mux.HandleFunc("/api/clear", s.instrument("clear", s.handleClear))
	mux.HandleFunc("/export/csv", s.instrument("export_csv", s.handleExportCSV))
	mux.HandleFunc("/export/ranges", s.instrument("export_ranges", s.handleExportRanges))
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// instrument wraps a handler with request counting, activity tracking,
// CORS headers and OPTIONS preflight handling.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requestCount.Add(1)
		if s.metrics != nil {
			s.metrics.requestsTotal.WithLabelValues(route).Inc()
		}
		s.touchActivity()

		s.applyCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

func (s *Server) applyCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html>
<head><title>Portax Gateway</title></head>
<body>
<h1>Portax Gateway</h1>
<ul>
<li><a href="/healthz">/healthz</a> - system health</li>
<li><a href="/api/window">/api/window</a> - history window snapshot</li>
<li><a href="/api/ranges">/api/ranges</a> - current axis ranges</li>
<li><a href="/api/series">/api/series</a> - series configuration</li>
<li><a href="/export/csv">/export/csv</a> - window as CSV (?gzip=1 to compress)</li>
<li><a href="/export/ranges">/export/ranges</a> - range report</li>
<li>/ws - live WebSocket stream</li>
</ul>
</body>
</html>`)
}

// handleHealthz aggregates per-component health into a system verdict.
// Unhealthy systems answer 503 so load balancers and probes can act on
// the status code alone.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	statuses := make([]health.Status, 0, len(s.components))
	for _, c := range s.components {
		statuses = append(statuses, health.FromComponent(c.Meta().Name, c.Health()))
	}
	system := health.Aggregate("portax", statuses)

	code := http.StatusOK
	if !system.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, system)
}

type windowResponse struct {
	Version uint64                   `json:"version"`
	Mode    scale.Mode               `json:"mode"`
	Series  []telemetry.SeriesConfig `json:"series"`
	Samples []telemetry.Sample       `json:"samples"`
}

// handleWindow serves the history window with the version tag that
// matches it, plus the settings a consumer needs to interpret the
// samples.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	window, version := s.historyStore.Snapshot()
	series, mode := s.settings.Snapshot()
	s.writeJSON(w, http.StatusOK, windowResponse{
		Version: version,
		Mode:    mode,
		Series:  series,
		Samples: window,
	})
}

func (s *Server) handleRanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	s.writeJSON(w, http.StatusOK, s.pipe.Ranges())
}

// handleSeries reads or replaces the series configuration. A successful
// replace pushes fresh ranges to stream clients so axes follow the new
// layout immediately.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.settings.Series())
	case http.MethodPut:
		var series []telemetry.SeriesConfig
		if !s.decodeBody(w, r, &series) {
			return
		}
		if err := s.settings.SetSeries(series); err != nil {
			s.writeError(w, s.statusFor(err), s.publicMessage(err))
			return
		}
		s.logger.Info("series configuration replaced", "count", len(series))
		s.broadcastRanges()
		s.writeJSON(w, http.StatusOK, s.settings.Series())
	default:
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	}
}

type scaleRequest struct {
	Mode scale.Mode `json:"mode"`
}

func (s *Server) handleScale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	var req scaleRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.settings.SetMode(req.Mode); err != nil {
		s.writeError(w, s.statusFor(err), s.publicMessage(err))
		return
	}
	s.logger.Info("scale mode changed", "mode", req.Mode)
	s.broadcastRanges()
	s.writeJSON(w, http.StatusOK, scaleRequest{Mode: s.settings.Mode()})
}

type sendRequest struct {
	Text           string `json:"text"`
	Hex            bool   `json:"hex"`
	LineEnding     string `json:"line_ending"`
	AppendChecksum bool   `json:"append_checksum"`
}

type sendResponse struct {
	Display string `json:"display"`
	Bytes   int    `json:"bytes"`
}

// handleSend encodes a frame and writes it to the transport. Encoding
// problems are the caller's to fix and come back as 400 with the reason;
// transport problems are 503.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	var req sendRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	switch req.LineEnding {
	case codec.LineEndingNone, codec.LineEndingLF, codec.LineEndingCRLF:
	default:
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("line_ending %q must be empty, \"\\n\" or \"\\r\\n\"", req.LineEnding))
		return
	}

	frame, err := codec.EncodeFrame(req.Text, codec.FrameOptions{
		Hex:            req.Hex,
		LineEnding:     req.LineEnding,
		AppendChecksum: req.AppendChecksum,
	})
	if err != nil {
		s.writeError(w, s.statusFor(err), s.publicMessage(err))
		return
	}

	if err := s.transport.Write(frame.Bytes); err != nil {
		s.recordError("transport write failed: " + err.Error())
		s.writeError(w, s.statusFor(err), s.publicMessage(err))
		return
	}

	s.logger.Info("frame sent to transport", "display", frame.Display, "bytes", len(frame.Bytes))
	s.writeJSON(w, http.StatusOK, sendResponse{Display: frame.Display, Bytes: len(frame.Bytes)})
}

type pauseResponse struct {
	Paused bool `json:"paused"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	s.pipe.Pause()
	s.logger.Info("pipeline paused")
	s.writeJSON(w, http.StatusOK, pauseResponse{Paused: true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	s.pipe.Resume()
	s.logger.Info("pipeline resumed")
	s.writeJSON(w, http.StatusOK, pauseResponse{Paused: false})
}

// handleClear wipes the history window and tells stream clients so their
// plots reset with it.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}
	s.pipe.Clear()
	s.logger.Info("history cleared")
	s.broadcastWindow()
	s.broadcastRanges()
	w.WriteHeader(http.StatusNoContent)
}

// handleExportCSV renders the current window as a CSV download. Every
// export carries an X-Export-ID so downloads can be correlated with the
// log line that produced them. ?gzip=1 compresses the file itself, not
// the transfer encoding, so what lands on disk is a .csv.gz.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	window, version := s.historyStore.Snapshot()
	series := s.settings.Series()

	exportID := uuid.New().String()
	stamp := time.Now().UTC().Format("20060102-150405")
	w.Header().Set("X-Export-ID", exportID)

	useGzip := r.URL.Query().Get("gzip") == "1"
	if useGzip {
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=portax-%s.csv.gz", stamp))
		gz := gzip.NewWriter(w)
		if err := export.CSV(gz, window, series); err != nil {
			// Headers are gone; all we can do is cut the body short and log.
			s.errorCount.Add(1)
			s.logger.Warn("csv export failed", "export_id", exportID, "error", err)
			return
		}
		if err := gz.Close(); err != nil {
			s.errorCount.Add(1)
			s.logger.Warn("csv export flush failed", "export_id", exportID, "error", err)
			return
		}
	} else {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=portax-%s.csv", stamp))
		if err := export.CSV(w, window, series); err != nil {
			s.errorCount.Add(1)
			s.logger.Warn("csv export failed", "export_id", exportID, "error", err)
			return
		}
	}

	if s.metrics != nil {
		s.metrics.exportsServed.WithLabelValues("csv").Inc()
	}
	s.logger.Info("csv export served",
		"export_id", exportID, "samples", len(window), "version", version, "gzip", useGzip)
}

// handleExportRanges serves the plain-text range report. It reads the
// same RangeSet the live API serves, so the report always agrees with
// /api/ranges for the same window.
func (s *Server) handleExportRanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	set := s.pipe.Ranges()
	series := s.settings.Series()

	exportID := uuid.New().String()
	w.Header().Set("X-Export-ID", exportID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := export.RangeReport(w, set, series); err != nil {
		s.errorCount.Add(1)
		s.logger.Warn("range report failed", "export_id", exportID, "error", err)
		return
	}

	if s.metrics != nil {
		s.metrics.exportsServed.WithLabelValues("ranges").Inc()
	}
	s.logger.Info("range report served", "export_id", exportID, "mode", set.Mode)
}

// decodeBody reads a size-limited JSON body into v. It answers the
// request itself on failure and reports whether decoding succeeded.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) > maxRequestBody {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxRequestBody))
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// statusFor maps classified errors onto HTTP status codes.
func (s *Server) statusFor(err error) int {
	switch {
	case pkgerrors.IsInvalid(err):
		return http.StatusBadRequest
	case pkgerrors.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage decides what error text leaves the process. Validation
// failures carry the detail the caller needs to fix their request;
// everything else collapses to a fixed message.
func (s *Server) publicMessage(err error) string {
	switch {
	case pkgerrors.IsInvalid(err):
		return err.Error()
	case pkgerrors.IsTransient(err):
		return "service temporarily unavailable"
	default:
		return "internal server error"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "response encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		return
	}
	s.bytesSent.Add(uint64(len(data)))
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.errorCount.Add(1)
	if s.metrics != nil {
		s.metrics.requestErrors.Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]any{
		"error":  message,
		"status": statusCode,
	}
	data, _ := json.Marshal(response)
	_, _ = w.Write(data)
}
