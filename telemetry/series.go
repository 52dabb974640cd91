// Package telemetry contains the shared data model for the Portax pipeline:
// series configuration, extracted values, and timestamped samples.
package telemetry

import (
	"fmt"

	"github.com/HaxIOX/Portax/errors"
)

// DefaultSeriesCount is the reference channel width used when no series
// configuration is supplied.
const DefaultSeriesCount = 4

// SeriesConfig describes one numeric channel extracted from each line.
// The list of configs is ordered and fixed-width; Index is the positional
// identity used everywhere downstream and never changes for a config's
// lifetime. Configs are plain records passed by value into pure functions,
// so extraction and scaling always see the caller's current settings.
type SeriesConfig struct {
	Index   int    `json:"index"`             // Position in the sample vector (0..N-1)
	Name    string `json:"name"`              // Display name, e.g. "Temperature"
	Keyword string `json:"keyword,omitempty"` // Extraction keyword; empty means positional
	Visible bool   `json:"visible"`           // Hidden series are never extracted or scaled
}

// Validate ensures the series configuration is well formed.
func (s SeriesConfig) Validate() error {
	if s.Index < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "SeriesConfig", "Validate",
			fmt.Sprintf("series index must be non-negative, got %d", s.Index))
	}
	return nil
}

// ValidateSeries checks an ordered series list: it must be non-empty and
// each entry's Index must match its position.
func ValidateSeries(series []SeriesConfig) error {
	if len(series) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SeriesConfig", "ValidateSeries",
			"series list cannot be empty")
	}
	for i, s := range series {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.Index != i {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "SeriesConfig", "ValidateSeries",
				fmt.Sprintf("series at position %d has index %d", i, s.Index))
		}
	}
	return nil
}

// DefaultSeries returns the reference configuration: DefaultSeriesCount
// visible positional series named "Series 1".."Series N".
func DefaultSeries() []SeriesConfig {
	series := make([]SeriesConfig, DefaultSeriesCount)
	for i := range series {
		series[i] = SeriesConfig{
			Index:   i,
			Name:    fmt.Sprintf("Series %d", i+1),
			Visible: true,
		}
	}
	return series
}
