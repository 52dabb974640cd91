package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaxIOX/Portax/component"
	"github.com/HaxIOX/Portax/config"
	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/extract"
	"github.com/HaxIOX/Portax/telemetry"
)

type staticSeries []telemetry.SeriesConfig

func (s staticSeries) Series() []telemetry.SeriesConfig { return s }

type fakeSink struct {
	mu     sync.Mutex
	chunks []string
	resets int
}

func (f *fakeSink) Feed(chunk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunk)
}

func (f *fakeSink) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeSink) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chunks...)
}

func (f *fakeSink) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func testDeps() InputDeps {
	return InputDeps{
		Config: config.SimConfig{Interval: config.Duration(time.Millisecond), Seed: 42},
		Series: staticSeries(telemetry.DefaultSeries()),
		Sink:   &fakeSink{},
	}
}

func TestLifecycle(t *testing.T) {
	component.StandardLifecycleTests(t, func() component.LifecycleComponent {
		return NewInput(testDeps())
	})
}

func TestInput_EmitsParsableLines(t *testing.T) {
	sink := &fakeSink{}
	deps := testDeps()
	deps.Sink = sink
	input := NewInput(deps)

	require.NoError(t, input.Initialize())
	require.NoError(t, input.Start(context.Background()))
	defer func() { _ = input.Stop(time.Second) }()

	require.Eventually(t, func() bool { return len(sink.received()) >= 3 },
		time.Second, 5*time.Millisecond)
	require.NoError(t, input.Stop(time.Second))

	series := telemetry.DefaultSeries()
	for _, line := range sink.received() {
		assert.True(t, strings.HasSuffix(line, "\n"), "line %q must be newline-terminated", line)

		values, ok := extract.Extract(strings.TrimSuffix(line, "\n"), series)
		require.True(t, ok, "line %q must extract", line)
		require.Len(t, values, len(series))
		for i, v := range values {
			assert.True(t, v.Defined, "series %d undefined in %q", i, line)
		}
	}

	flow := input.DataFlow()
	assert.Greater(t, flow.MessagesPerSecond, 0.0)
	assert.Greater(t, flow.BytesPerSecond, 0.0)
	assert.False(t, flow.LastActivity.IsZero())
}

func TestInput_HealthTracksRunning(t *testing.T) {
	input := NewInput(testDeps())

	assert.False(t, input.Health().Healthy, "not healthy before start")

	require.NoError(t, input.Start(context.Background()))
	assert.True(t, input.Health().Healthy)

	require.NoError(t, input.Stop(time.Second))
	assert.False(t, input.Health().Healthy)
}

func TestInput_Meta(t *testing.T) {
	input := NewInput(testDeps())
	meta := input.Meta()
	assert.Equal(t, "sim-input", meta.Name)
	assert.Equal(t, "input", meta.Type)
	assert.Contains(t, meta.Description, "1ms")

	deps := testDeps()
	deps.Name = "demo-source"
	assert.Equal(t, "demo-source", NewInput(deps).Meta().Name)
}

func TestInput_InitializeValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*InputDeps)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(*InputDeps) {},
		},
		{
			name:    "zero interval",
			mutate:  func(d *InputDeps) { d.Config.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "nil series provider",
			mutate:  func(d *InputDeps) { d.Series = nil },
			wantErr: true,
		},
		{
			name:    "nil sink",
			mutate:  func(d *InputDeps) { d.Sink = nil },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			tt.mutate(&deps)

			err := NewInput(deps).Initialize()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsInvalid(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInput_WriteDiscardsFrames(t *testing.T) {
	input := NewInput(testDeps())

	err := input.Write([]byte{0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrPortClosed)

	require.NoError(t, input.Start(context.Background()))
	defer func() { _ = input.Stop(time.Second) }()

	require.NoError(t, input.Write([]byte{0x01, 0x02}))
	assert.Equal(t, int64(1), input.framesDiscarded.Load())
}

func TestInput_StopResetsSink(t *testing.T) {
	sink := &fakeSink{}
	deps := testDeps()
	deps.Sink = sink
	input := NewInput(deps)

	require.NoError(t, input.Start(context.Background()))
	require.NoError(t, input.Stop(time.Second))
	assert.GreaterOrEqual(t, sink.resetCount(), 1, "stop discards partial downstream state")
}

func TestBuildLine(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	t.Run("positional", func(t *testing.T) {
		line := buildLine(telemetry.DefaultSeries(), 0, rng)
		assert.True(t, strings.HasSuffix(line, "\n"))
		assert.Len(t, strings.Fields(line), telemetry.DefaultSeriesCount)
	})

	t.Run("keyword", func(t *testing.T) {
		series := []telemetry.SeriesConfig{
			{Index: 0, Name: "Temperature", Keyword: "temp", Visible: true},
			{Index: 1, Name: "Humidity", Keyword: "hum", Visible: true},
		}
		line := buildLine(series, 2.5, rng)
		assert.Contains(t, line, "temp: ")
		assert.Contains(t, line, "hum: ")

		values, ok := extract.Extract(line, series)
		require.True(t, ok)
		assert.True(t, values[0].Defined)
		assert.True(t, values[1].Defined)
	})

	t.Run("hidden series keep their slot", func(t *testing.T) {
		series := telemetry.DefaultSeries()
		series[1].Visible = false
		line := buildLine(series, 0, rng)
		assert.Len(t, strings.Fields(line), len(series))
	})
}

func TestValueFor(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))

	// Index 0 is a sine with zero phase: starts at zero, stays within
	// its amplitude.
	assert.InDelta(t, 0.0, valueFor(0, 0, rng), 1e-9)
	for _, elapsed := range []float64{0.1, 1.3, 2.7, 4.9} {
		v := valueFor(0, elapsed, rng)
		assert.LessOrEqual(t, math.Abs(v), 40.0)
	}

	// Index 1 is a sawtooth sweeping its full span each period.
	assert.InDelta(t, -55.0, valueFor(1, 0, rng), 1e-9)
	assert.InDelta(t, 0.0, valueFor(1, rampPeriod.Seconds()/2, rng), 1e-9)
	assert.InDelta(t, -55.0, valueFor(1, rampPeriod.Seconds(), rng), 1e-9)

	// Index 2 is noise bounded by its amplitude.
	for i := 0; i < 100; i++ {
		v := valueFor(2, float64(i), rng)
		assert.Less(t, math.Abs(v), 70.0)
	}
}
