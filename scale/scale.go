// Package scale computes Y-axis ranges for rendering and export: either
// one independent range per series, or one shared range with asymmetric
// temporal smoothing that expands fast and shrinks slowly.
package scale

import (
	"github.com/HaxIOX/Portax/telemetry"
)

const (
	// marginFraction pads the shared-axis target by 5% of the raw span
	// on each side.
	marginFraction = 0.05
	// zeroSpanMargin pads a flat shared signal by a fixed half unit.
	zeroSpanMargin = 0.5
	// shrinkAlpha moves a smoothed bound 5% of the remaining distance
	// inward per observation.
	shrinkAlpha = 0.05
	// minSpan keeps the shared range from degenerating to zero height.
	minSpan = 1e-9
	// flatSpan is the per-series span for a flat signal.
	flatSpan = 1.0
)

// Mode selects how axis ranges are computed.
type Mode string

const (
	// ModePerSeries scales every visible series independently.
	ModePerSeries Mode = "per-series"
	// ModeShared scales all visible series against one smoothed range.
	ModeShared Mode = "shared"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePerSeries || m == ModeShared
}

// AxisRange maps values to a normalized plot coordinate.
// Span = max(Max-Min, epsilon) so division is always safe.
type AxisRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Span float64 `json:"span"`
}

// SeriesRange is the per-series result: Defined is false when the series
// is hidden or the window holds no defined values for it, in which case
// nothing is plotted for that series.
type SeriesRange struct {
	AxisRange
	Defined bool `json:"defined"`
}

// PerSeries computes one range per series over the window. A flat signal
// gets a span of 1 so it renders mid-scale instead of dividing by zero.
func PerSeries(window []telemetry.Sample, series []telemetry.SeriesConfig) []SeriesRange {
	ranges := make([]SeriesRange, len(series))
	for i, s := range series {
		if !s.Visible {
			continue
		}

		min, max, found := scan(window, s.Index)
		if !found {
			continue
		}

		span := max - min
		if span == 0 {
			span = flatSpan
		}
		ranges[i] = SeriesRange{
			AxisRange: AxisRange{Min: min, Max: max, Span: span},
			Defined:   true,
		}
	}
	return ranges
}

// scan finds the min and max defined value for one series in the window.
func scan(window []telemetry.Sample, seriesIndex int) (min, max float64, found bool) {
	for _, sample := range window {
		if seriesIndex >= len(sample.Values) {
			continue
		}
		v := sample.Values[seriesIndex]
		if !v.Defined {
			continue
		}
		if !found || v.Float64 < min {
			min = v.Float64
		}
		if !found || v.Float64 > max {
			max = v.Float64
		}
		found = true
	}
	return min, max, found
}

// Smoother holds the shared-axis smoothed bounds across observations.
// The zero value is unseeded: the first observation adopts its target
// directly, so there is no expand-from-zero transient after a reset.
type Smoother struct {
	min    float64
	max    float64
	seeded bool
}

// Observe folds the window's joint extent over all visible series into
// the smoothed bounds and returns the resulting range. Outward movement
// snaps immediately so a new extreme is never clipped; inward movement
// advances 5% of the remaining distance per observation, damping jitter
// from transient small-signal regions. ok is false when no visible series
// has a defined value, in which case the state is left untouched.
func (sm *Smoother) Observe(window []telemetry.Sample, series []telemetry.SeriesConfig) (AxisRange, bool) {
	min, max, found := jointExtent(window, series)
	if !found {
		return AxisRange{}, false
	}

	margin := (max - min) * marginFraction
	if margin == 0 {
		margin = zeroSpanMargin
	}
	targetMin := min - margin
	targetMax := max + margin

	if !sm.seeded {
		sm.min = targetMin
		sm.max = targetMax
		sm.seeded = true
	} else {
		if targetMin < sm.min {
			sm.min = targetMin
		} else {
			sm.min += (targetMin - sm.min) * shrinkAlpha
		}
		if targetMax > sm.max {
			sm.max = targetMax
		} else {
			sm.max += (targetMax - sm.max) * shrinkAlpha
		}
	}

	span := sm.max - sm.min
	if span < minSpan {
		span = minSpan
	}
	return AxisRange{Min: sm.min, Max: sm.max, Span: span}, true
}

// Reset clears the smoothed bounds. Called on scale-mode change and on
// data-source reset; the next observation seeds from its target.
func (sm *Smoother) Reset() {
	*sm = Smoother{}
}

// jointExtent finds the min and max defined value across all visible
// series in the window.
func jointExtent(window []telemetry.Sample, series []telemetry.SeriesConfig) (min, max float64, found bool) {
	for _, s := range series {
		if !s.Visible {
			continue
		}
		sMin, sMax, ok := scan(window, s.Index)
		if !ok {
			continue
		}
		if !found || sMin < min {
			min = sMin
		}
		if !found || sMax > max {
			max = sMax
		}
		found = true
	}
	return min, max, found
}

// ValueAt returns the plottable value for one series at window index i:
// the raw value when defined, otherwise the last defined value at or
// before i (forward-fill), otherwise the range minimum. Forward-filling
// keeps a single dropped sample from snapping the trace to the axis
// bottom.
func ValueAt(window []telemetry.Sample, seriesIndex, i int, r AxisRange) float64 {
	for j := i; j >= 0; j-- {
		if j >= len(window) || seriesIndex >= len(window[j].Values) {
			continue
		}
		if v := window[j].Values[seriesIndex]; v.Defined {
			return v.Float64
		}
	}
	return r.Min
}

// Normalize maps a value into [0,1] relative to r.
func Normalize(v float64, r AxisRange) float64 {
	return (v - r.Min) / r.Span
}
