// Package history provides the bounded retention store for extracted
// samples, the sole mutable state shared between the ingest pipeline and
// its read-only consumers.
package history

import (
	"sync"

	"github.com/HaxIOX/Portax/telemetry"
)

// DefaultCapacity is the number of samples retained when no capacity is
// configured.
const DefaultCapacity = 150

// Store is a fixed-capacity, insertion-ordered sample history with strict
// FIFO eviction. Readers always receive a snapshot copy, never a live
// view, so a window stays consistent while appends continue. Samples are
// immutable after creation, which lets snapshots share the underlying
// value slices.
type Store struct {
	mu      sync.Mutex
	samples []telemetry.Sample
	head    int
	size    int
	version uint64
}

// New returns a store with DefaultCapacity.
func New() *Store {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity returns a store retaining up to capacity samples. A
// non-positive capacity falls back to DefaultCapacity.
func NewWithCapacity(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{samples: make([]telemetry.Sample, capacity)}
}

// Append adds one sample, evicting the oldest when full.
func (s *Store) Append(sample telemetry.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.push(sample)
	s.version++
}

// AppendBatch adds samples in order as one change: the version advances
// once however many samples the flush carried. An empty batch is a no-op.
func (s *Store) AppendBatch(samples []telemetry.Sample) {
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sample := range samples {
		s.push(sample)
	}
	s.version++
}

func (s *Store) push(sample telemetry.Sample) {
	if s.size < len(s.samples) {
		s.samples[(s.head+s.size)%len(s.samples)] = sample
		s.size++
		return
	}
	s.samples[s.head] = sample
	s.head = (s.head + 1) % len(s.samples)
}

// Window returns a snapshot of the retained samples, oldest first.
func (s *Store) Window() []telemetry.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowLocked()
}

// Snapshot returns the window together with the version it reflects,
// taken under one lock so the tag always matches the contents.
func (s *Store) Snapshot() ([]telemetry.Sample, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowLocked(), s.version
}

func (s *Store) windowLocked() []telemetry.Sample {
	window := make([]telemetry.Sample, s.size)
	for i := range window {
		window[i] = s.samples[(s.head+i)%len(s.samples)]
	}
	return window
}

// Clear discards all samples. Clearing an already-empty store does not
// advance the version, so pollers are not woken for a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == 0 {
		return
	}
	s.head = 0
	s.size = 0
	s.version++
}

// Len returns the current number of retained samples.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Capacity returns the maximum number of retained samples.
func (s *Store) Capacity() int {
	return len(s.samples)
}

// Version returns the monotonically increasing change counter. Readers
// tag snapshots with it to detect staleness without comparing contents.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}
