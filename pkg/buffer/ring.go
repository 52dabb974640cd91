package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/HaxIOX/Portax/errors"
)

// ring is the circular buffer behind NewCircularBuffer. One mutex
// guards the slot array; statistics are recorded on every operation
// and mirrored into Prometheus when the buffer was built with
// WithMetrics.
type ring[T any] struct {
	mu     sync.RWMutex
	slots  []T
	count  int
	next   int // slot the next write lands in
	oldest int // slot the next read comes from
	closed bool

	policy OverflowPolicy
	onDrop DropCallback[T]

	stats   *Statistics
	metrics *bufferMetrics

	// Block-policy writers wait here until a read or Clear frees a slot.
	spaceFreed *sync.Cond
}

func newRing[T any](capacity int, opts *bufferOptions[T]) (*ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	r := &ring[T]{
		slots:  make([]T, capacity),
		policy: opts.overflowPolicy,
		onDrop: opts.dropCallback,
		stats:  NewStatistics(),
	}
	r.spaceFreed = sync.NewCond(&r.mu)

	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		m, err := newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "Buffer", "New", "metrics registration")
		}
		r.metrics = m
	}

	return r, nil
}

// Write adds an item, applying the overflow policy when the buffer is
// full. The drop callback, when one fires, runs after the lock is
// released so it may touch the buffer again.
func (r *ring[T]) Write(item T) error {
	evicted, notify, err := r.stage(item)
	if notify {
		r.onDrop(evicted)
	}
	return err
}

// stage inserts item under the lock and reports the item, if any, that
// the overflow policy discarded to make that possible.
func (r *ring[T]) stage(item T) (evicted T, notify bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return evicted, false, errors.WrapInvalid(errors.ErrAlreadyStopped, "Buffer", "Write", "buffer closed")
	}

	if r.count == len(r.slots) {
		switch r.policy {
		case DropOldest:
			evicted = r.take()
			r.markDrop()
			notify = r.onDrop != nil

		case DropNewest:
			// The incoming item is the casualty; the write still
			// counts as handled.
			r.markDrop()
			return item, r.onDrop != nil, nil

		case Block:
			for r.count == len(r.slots) && !r.closed {
				r.spaceFreed.Wait()
			}
			if r.closed {
				return evicted, false, errors.WrapInvalid(errors.ErrAlreadyStopped, "Buffer", "Write",
					"closed while waiting for space")
			}
		}
	}

	r.push(item)
	return evicted, notify, nil
}

// push stores item and records the write. Callers hold the lock and
// have already made room.
func (r *ring[T]) push(item T) {
	r.slots[r.next] = item
	r.next = (r.next + 1) % len(r.slots)
	r.count++

	r.stats.Write()
	r.stats.UpdateSize(int64(r.count))
	if r.metrics != nil {
		r.metrics.onWrite(r.count, len(r.slots))
	}
}

// take removes and returns the oldest item. Callers hold the lock and
// have checked that the buffer is not empty.
func (r *ring[T]) take() T {
	var zero T
	item := r.slots[r.oldest]
	r.slots[r.oldest] = zero // release the reference
	r.oldest = (r.oldest + 1) % len(r.slots)
	r.count--
	return item
}

// markDrop records an overflow plus the item it cost.
func (r *ring[T]) markDrop() {
	r.stats.Overflow()
	r.stats.Drop()
	if r.metrics != nil {
		r.metrics.onOverflow()
		r.metrics.onDrop()
	}
}

// Read removes and returns the oldest item. ok is false when the
// buffer is empty.
func (r *ring[T]) Read() (item T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return item, false
	}

	item = r.take()
	r.stats.Read()
	r.stats.UpdateSize(int64(r.count))
	if r.metrics != nil {
		r.metrics.onRead(r.count, len(r.slots))
	}
	r.spaceFreed.Signal()
	return item, true
}

// ReadBatch removes and returns up to max items in arrival order.
func (r *ring[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}

	n := min(max, r.count)
	out := make([]T, 0, n)
	for len(out) < n {
		out = append(out, r.take())
		r.stats.Read()
	}

	r.stats.UpdateSize(int64(r.count))
	if r.metrics != nil {
		r.metrics.setSize(r.count, len(r.slots))
	}

	// One wakeup per freed slot so every blocked writer gets a chance.
	for i := 0; i < n; i++ {
		r.spaceFreed.Signal()
	}
	return out
}

// Peek returns the oldest item without removing it.
func (r *ring[T]) Peek() (item T, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return item, false
	}

	r.stats.Peek()
	if r.metrics != nil {
		r.metrics.onPeek()
	}
	return r.slots[r.oldest], true
}

func (r *ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Capacity needs no lock: the slot array never resizes.
func (r *ring[T]) Capacity() int {
	return len(r.slots)
}

func (r *ring[T]) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count == len(r.slots)
}

func (r *ring[T]) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count == 0
}

// Clear discards everything in the buffer. Discarded items are handed
// to the drop callback after the lock is released.
func (r *ring[T]) Clear() {
	var dropped []T

	r.mu.Lock()
	if r.onDrop != nil && r.count > 0 {
		dropped = make([]T, 0, r.count)
		for i := 0; i < r.count; i++ {
			dropped = append(dropped, r.slots[(r.oldest+i)%len(r.slots)])
		}
	}

	clear(r.slots)
	r.next, r.oldest, r.count = 0, 0, 0

	r.stats.UpdateSize(0)
	if r.metrics != nil {
		r.metrics.setSize(0, len(r.slots))
	}
	r.spaceFreed.Broadcast()
	r.mu.Unlock()

	for _, item := range dropped {
		r.onDrop(item)
	}
}

func (r *ring[T]) Stats() *Statistics {
	return r.stats
}

// Close marks the buffer closed and wakes every blocked writer.
// Closing twice is harmless.
func (r *ring[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.spaceFreed.Broadcast()
	return nil
}

// WriteWithTimeout is WriteWithContext with a deadline. Under any
// policy other than Block it is a plain Write.
func (r *ring[T]) WriteWithTimeout(item T, timeout time.Duration) error {
	if r.policy != Block {
		return r.Write(item)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return r.WriteWithContext(ctx, item)
}

// WriteWithContext writes under the Block policy but gives up when ctx
// ends, returning ctx.Err(). Under any other policy it is a plain
// Write.
func (r *ring[T]) WriteWithContext(ctx context.Context, item T) error {
	if r.policy != Block {
		return r.Write(item)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Buffer", "WriteWithContext", "buffer closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// A done context cannot interrupt Cond.Wait, so a watcher wakes
	// every waiter and the loop below re-checks the context itself.
	settled := make(chan struct{})
	defer close(settled)
	go func() {
		select {
		case <-ctx.Done():
			r.spaceFreed.Broadcast()
		case <-settled:
		}
	}()

	for r.count == len(r.slots) && !r.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.spaceFreed.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if r.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Buffer", "WriteWithContext",
			"closed while waiting for space")
	}

	r.push(item)
	return nil
}
