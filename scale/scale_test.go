package scale_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaxIOX/Portax/scale"
	"github.com/HaxIOX/Portax/telemetry"
)

// window builds samples from rows of optional values; nil means undefined.
func window(rows ...[]*float64) []telemetry.Sample {
	samples := make([]telemetry.Sample, len(rows))
	for i, row := range rows {
		values := make([]telemetry.Value, len(row))
		for j, p := range row {
			if p != nil {
				values[j] = telemetry.NewValue(*p)
			}
		}
		samples[i] = telemetry.NewSample(values, time.Now())
	}
	return samples
}

func f(v float64) *float64 { return &v }

func visibleSeries(n int) []telemetry.SeriesConfig {
	series := make([]telemetry.SeriesConfig, n)
	for i := range series {
		series[i] = telemetry.SeriesConfig{Index: i, Visible: true}
	}
	return series
}

func TestPerSeries(t *testing.T) {
	w := window(
		[]*float64{f(1), f(10)},
		[]*float64{f(5), f(-2)},
		[]*float64{f(3), nil},
	)

	ranges := scale.PerSeries(w, visibleSeries(2))

	require.Len(t, ranges, 2)
	require.True(t, ranges[0].Defined)
	assert.Equal(t, 1.0, ranges[0].Min)
	assert.Equal(t, 5.0, ranges[0].Max)
	assert.Equal(t, 4.0, ranges[0].Span)

	require.True(t, ranges[1].Defined)
	assert.Equal(t, -2.0, ranges[1].Min)
	assert.Equal(t, 10.0, ranges[1].Max)
	assert.Equal(t, 12.0, ranges[1].Span)
}

func TestPerSeriesFlatSignal(t *testing.T) {
	w := window([]*float64{f(7)}, []*float64{f(7)})

	ranges := scale.PerSeries(w, visibleSeries(1))

	require.True(t, ranges[0].Defined)
	assert.Equal(t, 7.0, ranges[0].Min)
	assert.Equal(t, 7.0, ranges[0].Max)
	assert.Equal(t, 1.0, ranges[0].Span, "flat signal gets unit span")
}

func TestPerSeriesUndefined(t *testing.T) {
	w := window([]*float64{f(1), nil})

	series := visibleSeries(3)
	series[0].Visible = false

	ranges := scale.PerSeries(w, series)

	assert.False(t, ranges[0].Defined, "hidden series has no range")
	assert.False(t, ranges[1].Defined, "series with no defined values has no range")
	assert.False(t, ranges[2].Defined, "series beyond sample width has no range")
}

func TestSmootherSeedsFromFirstTarget(t *testing.T) {
	var sm scale.Smoother

	// min 0, max 10 → 5% margin → target [-0.5, 10.5]
	r, ok := sm.Observe(window([]*float64{f(0)}, []*float64{f(10)}), visibleSeries(1))

	require.True(t, ok)
	assert.InDelta(t, -0.5, r.Min, 1e-12)
	assert.InDelta(t, 10.5, r.Max, 1e-12)
	assert.InDelta(t, 11.0, r.Span, 1e-12)
}

func TestSmootherZeroSpanMargin(t *testing.T) {
	var sm scale.Smoother

	r, ok := sm.Observe(window([]*float64{f(5)}, []*float64{f(5)}), visibleSeries(1))

	require.True(t, ok)
	assert.InDelta(t, 4.5, r.Min, 1e-12)
	assert.InDelta(t, 5.5, r.Max, 1e-12)
}

func TestSmootherFastExpandSlowShrink(t *testing.T) {
	var sm scale.Smoother
	series := visibleSeries(1)

	low := window([]*float64{f(0)}, []*float64{f(10)})
	high := window([]*float64{f(0)}, []*float64{f(20)})

	// Seed at the low extent
	_, ok := sm.Observe(low, series)
	require.True(t, ok)

	// Rise to 20: the max snaps outward immediately
	r, ok := sm.Observe(high, series)
	require.True(t, ok)
	assert.InDelta(t, 21.0, r.Max, 1e-12, "fast expand snaps to the new target")

	// Fall back to 10: the max shrinks 5% of the distance per observation
	r, ok = sm.Observe(low, series)
	require.True(t, ok)
	assert.InDelta(t, 21.0+(10.5-21.0)*0.05, r.Max, 1e-12)
	assert.Less(t, r.Max, 21.0)
	assert.Greater(t, r.Max, 10.5)

	// Further observations keep decaying toward the target without
	// overshooting it
	prev := r.Max
	for i := 0; i < 50; i++ {
		r, ok = sm.Observe(low, series)
		require.True(t, ok)
		assert.LessOrEqual(t, r.Max, prev)
		assert.GreaterOrEqual(t, r.Max, 10.5)
		prev = r.Max
	}
	assert.InDelta(t, 10.5, r.Max, 1.0, "decay approaches the target")
}

func TestSmootherMinShrinksSlowly(t *testing.T) {
	var sm scale.Smoother
	series := visibleSeries(1)

	wide := window([]*float64{f(-20)}, []*float64{f(0)})
	narrow := window([]*float64{f(-10)}, []*float64{f(0)})

	_, ok := sm.Observe(wide, series)
	require.True(t, ok)

	r, ok := sm.Observe(narrow, series)
	require.True(t, ok)
	// target min is -10.5; smoothed min moves only 5% of the way up from -21
	assert.InDelta(t, -21.0+(-10.5+21.0)*0.05, r.Min, 1e-12)
}

func TestSmootherNoDataLeavesStateUntouched(t *testing.T) {
	var sm scale.Smoother
	series := visibleSeries(1)

	_, ok := sm.Observe(window([]*float64{f(1)}, []*float64{f(2)}), series)
	require.True(t, ok)

	_, ok = sm.Observe(window([]*float64{nil}), series)
	assert.False(t, ok)

	// Next real observation continues from the previous bounds: the max
	// decays from the old value instead of reseeding
	r, ok := sm.Observe(window([]*float64{f(1)}, []*float64{f(1.5)}), series)
	require.True(t, ok)
	assert.Less(t, r.Max, 2.05+1e-12)
	assert.Greater(t, r.Max, 1.525, "still above the new target, so state survived")
}

func TestSmootherReset(t *testing.T) {
	var sm scale.Smoother
	series := visibleSeries(1)

	_, ok := sm.Observe(window([]*float64{f(0)}, []*float64{f(100)}), series)
	require.True(t, ok)

	sm.Reset()

	// After reset the next observation seeds directly from its target,
	// with no decay from the old wide range
	r, ok := sm.Observe(window([]*float64{f(0)}, []*float64{f(10)}), series)
	require.True(t, ok)
	assert.InDelta(t, -0.5, r.Min, 1e-12)
	assert.InDelta(t, 10.5, r.Max, 1e-12)
}

func TestSmootherMinimumSpan(t *testing.T) {
	var sm scale.Smoother

	// Raw span is tiny but non-zero, so the 5% margin is tinier still
	w := window([]*float64{f(1.0)}, []*float64{f(1.0 + 1e-12)})
	r, ok := sm.Observe(w, visibleSeries(1))

	require.True(t, ok)
	assert.GreaterOrEqual(t, r.Span, 1e-9)
}

func TestSmootherIgnoresHiddenSeries(t *testing.T) {
	var sm scale.Smoother
	series := visibleSeries(2)
	series[1].Visible = false

	// Series 1 has the extreme values but is hidden
	w := window([]*float64{f(1), f(1000)}, []*float64{f(2), f(-1000)})
	r, ok := sm.Observe(w, series)

	require.True(t, ok)
	assert.Less(t, r.Max, 3.0)
	assert.Greater(t, r.Min, 0.0)
}

func TestValueAtForwardFill(t *testing.T) {
	w := window([]*float64{f(1)}, []*float64{nil}, []*float64{f(3)})
	r := scale.AxisRange{Min: 0, Max: 4, Span: 4}

	assert.Equal(t, 1.0, scale.ValueAt(w, 0, 0, r))
	assert.Equal(t, 1.0, scale.ValueAt(w, 0, 1, r), "gap fills from the last defined value")
	assert.Equal(t, 3.0, scale.ValueAt(w, 0, 2, r))
}

func TestValueAtNoPriorDefined(t *testing.T) {
	w := window([]*float64{nil}, []*float64{f(2)})
	r := scale.AxisRange{Min: -1, Max: 3, Span: 4}

	assert.Equal(t, -1.0, scale.ValueAt(w, 0, 0, r), "falls back to the range minimum")
}

func TestNormalize(t *testing.T) {
	r := scale.AxisRange{Min: 10, Max: 20, Span: 10}

	assert.Equal(t, 0.0, scale.Normalize(10, r))
	assert.Equal(t, 0.5, scale.Normalize(15, r))
	assert.Equal(t, 1.0, scale.Normalize(20, r))
}

func TestModeValid(t *testing.T) {
	assert.True(t, scale.ModePerSeries.Valid())
	assert.True(t, scale.ModeShared.Valid())
	assert.False(t, scale.Mode("both").Valid())
	assert.False(t, scale.Mode("").Valid())
}
