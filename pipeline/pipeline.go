// Package pipeline is the ingest scheduler: it frames incoming chunks,
// batches the resulting lines on a fixed flush cadence, extracts samples,
// and fans the results out to the retention store and registered taps.
package pipeline

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/HaxIOX/Portax/extract"
	"github.com/HaxIOX/Portax/framer"
	"github.com/HaxIOX/Portax/history"
	"github.com/HaxIOX/Portax/metric"
	"github.com/HaxIOX/Portax/scale"
	"github.com/HaxIOX/Portax/telemetry"
)

// flushInterval is the batching cadence. Sources that emit faster than
// this are coalesced into one history update per window.
const flushInterval = 16 * time.Millisecond

// Settings supplies the current series configuration and scale mode.
// Satisfied by config.Store; the pipeline reads it per call so changes
// take effect on the next extraction or range computation.
type Settings interface {
	Series() []telemetry.SeriesConfig
	Mode() scale.Mode
	Snapshot() ([]telemetry.SeriesConfig, scale.Mode)
}

// LineTap receives every framed line of a flush, parseable or not.
// Called synchronously on the flush goroutine; taps must not block and
// must treat the slice as read-only.
type LineTap func(lines []string)

// SampleTap receives the extracted samples of a flush, in order, after
// they were appended to history. Same calling rules as LineTap.
type SampleTap func(batch []telemetry.Sample)

// RangeSet is the outcome of one range computation. Exactly one of
// Shared or PerSeries is populated, matching Mode; Shared stays nil when
// the window holds no defined value for any visible series.
type RangeSet struct {
	Mode      scale.Mode          `json:"mode"`
	Shared    *scale.AxisRange    `json:"shared,omitempty"`
	PerSeries []scale.SeriesRange `json:"per_series,omitempty"`
}

// Pipeline owns the framer, the pending line queue, the pause buffer,
// and the shared-axis smoother. Feed runs on the source goroutine and
// the flush on a timer goroutine; both touch shared state only under mu.
type Pipeline struct {
	store    *history.Store
	settings Settings
	logger   *slog.Logger
	metrics  *metric.Metrics

	mu             sync.Mutex
	framer         *framer.Framer
	pending        []string
	flushScheduled bool
	flushTimer     *time.Timer
	paused         bool
	pauseBuf       strings.Builder
	smoother       scale.Smoother
	lastMode       scale.Mode
	lineTaps       []LineTap
	sampleTaps     []SampleTap
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics wires flush duration observations into the core metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Pipeline) {
		if registry != nil {
			p.metrics = registry.CoreMetrics()
		}
	}
}

// New returns a pipeline appending to store and reading settings per
// call.
func New(store *history.Store, settings Settings, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		settings: settings,
		logger:   slog.Default(),
		framer:   framer.New(),
		lastMode: settings.Mode(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddLineTap registers a tap for framed lines. Registration is expected
// at wiring time, before data flows.
func (p *Pipeline) AddLineTap(tap LineTap) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lineTaps = append(p.lineTaps, tap)
}

// AddSampleTap registers a tap for extracted sample batches.
func (p *Pipeline) AddSampleTap(tap SampleTap) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sampleTaps = append(p.sampleTaps, tap)
}

// Feed accepts one decoded chunk from the source. While paused the raw
// text accumulates unframed; otherwise the chunk is framed and any
// complete lines are queued for the next flush.
func (p *Pipeline) Feed(chunk string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		p.pauseBuf.WriteString(chunk)
		return
	}
	p.enqueueLocked(p.framer.Feed(chunk))
}

// enqueueLocked queues lines and arms the flush timer. At most one
// timer is outstanding: enqueues during a pending window ride the
// already-scheduled flush.
func (p *Pipeline) enqueueLocked(lines []string) {
	if len(lines) == 0 {
		return
	}
	p.pending = append(p.pending, lines...)

	if p.flushScheduled {
		return
	}
	p.flushScheduled = true
	p.flushTimer = time.AfterFunc(flushInterval, p.flush)
}

// flush swaps out the pending queue, extracts each line against the
// current series configuration, appends the resulting samples to history
// as one update, and invokes the taps.
func (p *Pipeline) flush() {
	start := time.Now()

	p.mu.Lock()
	lines := p.pending
	p.pending = nil
	p.flushScheduled = false
	p.flushTimer = nil
	lineTaps := p.lineTaps
	sampleTaps := p.sampleTaps
	p.mu.Unlock()

	if len(lines) == 0 {
		return
	}

	series := p.settings.Series()
	now := time.Now()

	batch := make([]telemetry.Sample, 0, len(lines))
	for _, line := range lines {
		values, ok := extract.Extract(line, series)
		if !ok {
			continue
		}
		batch = append(batch, telemetry.NewSample(values, now))
	}

	p.store.AppendBatch(batch)

	for _, tap := range lineTaps {
		tap(lines)
	}
	if len(batch) > 0 {
		for _, tap := range sampleTaps {
			tap(batch)
		}
	}

	p.logger.Debug("flushed pipeline window", "lines", len(lines), "samples", len(batch))
	if p.metrics != nil {
		p.metrics.RecordProcessingDuration("pipeline", "flush", time.Since(start))
	}
}

// Pause diverts incoming chunks into the accumulation buffer before
// framing. Idempotent; lines already queued still flush.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

// Resume replays the accumulated text as a single chunk through the
// framer and clears the buffer. Chunk boundaries inside the paused span
// are irrelevant: reframing yields the same lines the live stream would
// have produced.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.paused {
		return
	}
	p.paused = false

	buffered := p.pauseBuf.String()
	p.pauseBuf.Reset()
	if buffered != "" {
		p.enqueueLocked(p.framer.Feed(buffered))
	}
}

// Paused reports whether the pipeline is currently paused.
func (p *Pipeline) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Reset discards in-flight state on source disconnect: framer tail,
// pending queue, pause buffer, and any armed flush timer. Nothing is
// emitted. History is kept; the pause toggle is a user setting and
// survives. Idempotent.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.framer.Reset()
	p.pending = nil
	p.pauseBuf.Reset()

	if p.flushTimer != nil {
		p.flushTimer.Stop()
		p.flushTimer = nil
	}
	p.flushScheduled = false
}

// Clear empties the retention store and resets the smoother, so the next
// observation seeds fresh instead of shrinking away from stale bounds.
func (p *Pipeline) Clear() {
	p.store.Clear()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.smoother.Reset()
}

// Ranges computes the axis ranges for the current window and mode. Each
// call in shared mode advances the smoother by one observation; a mode
// change since the previous call resets it first.
func (p *Pipeline) Ranges() RangeSet {
	series, mode := p.settings.Snapshot()
	window := p.store.Window()

	p.mu.Lock()
	defer p.mu.Unlock()

	if mode != p.lastMode {
		p.smoother.Reset()
		p.lastMode = mode
	}

	if mode == scale.ModeShared {
		set := RangeSet{Mode: mode}
		if r, ok := p.smoother.Observe(window, series); ok {
			set.Shared = &r
		}
		return set
	}
	return RangeSet{Mode: mode, PerSeries: scale.PerSeries(window, series)}
}
