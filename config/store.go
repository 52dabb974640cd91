package config

import (
	"fmt"
	"sync"

	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/scale"
	"github.com/HaxIOX/Portax/telemetry"
)

// Store guards the runtime-mutable settings: the ordered series list and
// the scale mode. The gateway writes them, the pipeline reads them per
// call, so a change takes effect on the next extraction or range
// computation without any coordination beyond the lock. Reads return
// copies; callers can hold results across lock boundaries safely.
type Store struct {
	mu     sync.RWMutex
	series []telemetry.SeriesConfig
	mode   scale.Mode
}

// NewStore validates the seed settings and returns a Store holding copies.
func NewStore(series []telemetry.SeriesConfig, mode scale.Mode) (*Store, error) {
	if err := telemetry.ValidateSeries(series); err != nil {
		return nil, err
	}
	if !mode.Valid() {
		return nil, pkgerrors.WrapInvalid(pkgerrors.ErrInvalidConfig, "Store", "NewStore",
			fmt.Sprintf("unknown scale mode %q", mode))
	}
	return &Store{
		series: cloneSeries(series),
		mode:   mode,
	}, nil
}

// Series returns a copy of the current series configuration.
func (s *Store) Series() []telemetry.SeriesConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSeries(s.series)
}

// SetSeries validates and replaces the series configuration.
func (s *Store) SetSeries(series []telemetry.SeriesConfig) error {
	if err := telemetry.ValidateSeries(series); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = cloneSeries(series)
	return nil
}

// Mode returns the current scale mode.
func (s *Store) Mode() scale.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode validates and replaces the scale mode.
func (s *Store) SetMode(mode scale.Mode) error {
	if !mode.Valid() {
		return pkgerrors.WrapInvalid(pkgerrors.ErrInvalidConfig, "Store", "SetMode",
			fmt.Sprintf("unknown scale mode %q", mode))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

// Snapshot returns the series list and mode under a single lock so the
// two are mutually consistent.
func (s *Store) Snapshot() ([]telemetry.SeriesConfig, scale.Mode) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSeries(s.series), s.mode
}

// SeriesConfig values contain no reference fields, so a shallow copy of
// the slice is a full copy.
func cloneSeries(series []telemetry.SeriesConfig) []telemetry.SeriesConfig {
	return append([]telemetry.SeriesConfig(nil), series...)
}
