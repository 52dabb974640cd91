package buffer

import "sync/atomic"

// Statistics counts buffer operations. Every buffer carries one; the
// counters are plain atomics so recording stays off the buffer's lock
// and readers never see a torn value.
type Statistics struct {
	writes    atomic.Int64
	reads     atomic.Int64
	peeks     atomic.Int64
	overflows atomic.Int64
	drops     atomic.Int64

	size      atomic.Int64
	highWater atomic.Int64
}

// NewStatistics creates an empty statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Write records a write operation.
func (s *Statistics) Write() {
	s.writes.Add(1)
}

// Read records a read operation.
func (s *Statistics) Read() {
	s.reads.Add(1)
}

// Peek records a peek operation.
func (s *Statistics) Peek() {
	s.peeks.Add(1)
}

// Overflow records a write that found the buffer full.
func (s *Statistics) Overflow() {
	s.overflows.Add(1)
}

// Drop records an item discarded by the overflow policy.
func (s *Statistics) Drop() {
	s.drops.Add(1)
}

// UpdateSize records the buffer's current fill level and advances the
// high-water mark when the level is a new maximum.
func (s *Statistics) UpdateSize(size int64) {
	s.size.Store(size)
	for {
		high := s.highWater.Load()
		if size <= high || s.highWater.CompareAndSwap(high, size) {
			return
		}
	}
}

// Writes returns the total number of write operations.
func (s *Statistics) Writes() int64 { return s.writes.Load() }

// Reads returns the total number of read operations.
func (s *Statistics) Reads() int64 { return s.reads.Load() }

// Peeks returns the total number of peek operations.
func (s *Statistics) Peeks() int64 { return s.peeks.Load() }

// Overflows returns the number of writes that found the buffer full.
func (s *Statistics) Overflows() int64 { return s.overflows.Load() }

// Drops returns the number of items discarded by the overflow policy.
func (s *Statistics) Drops() int64 { return s.drops.Load() }

// CurrentSize returns the fill level as of the last recorded update.
func (s *Statistics) CurrentSize() int64 { return s.size.Load() }

// HighWater returns the largest fill level the buffer has reached.
func (s *Statistics) HighWater() int64 { return s.highWater.Load() }
