package buffer

// Buffer is a bounded, thread-safe FIFO staging area. Implementations
// never grow past their capacity; what happens to the excess is the
// overflow policy's call.
type Buffer[T any] interface {
	// Write adds an item. When the buffer is full the overflow policy
	// decides whether something is discarded, the new item is refused,
	// or the caller waits.
	Write(item T) error

	// Read removes and returns the oldest item. ok is false when the
	// buffer is empty.
	Read() (item T, ok bool)

	// ReadBatch removes and returns up to max items in arrival order.
	// The result may be shorter than max, or nil when nothing is
	// buffered.
	ReadBatch(max int) []T

	// Peek returns the oldest item without removing it.
	Peek() (item T, ok bool)

	// Size returns the number of items currently buffered.
	Size() int

	// Capacity returns the fixed slot count.
	Capacity() int

	// IsFull reports whether a write would trigger the overflow policy.
	IsFull() bool

	// IsEmpty reports whether the buffer holds nothing.
	IsEmpty() bool

	// Clear discards everything in the buffer.
	Clear()

	// Stats returns the buffer's operation counters. Never nil.
	Stats() *Statistics

	// Close wakes blocked writers and refuses further writes.
	Close() error
}

// OverflowPolicy decides what a full buffer does with the next write.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room. This is the
	// default, and what every staging buffer in the data path runs:
	// when an output stalls, the freshest telemetry wins.
	DropOldest OverflowPolicy = iota

	// DropNewest refuses the incoming item and keeps what is already
	// buffered.
	DropNewest

	// Block makes Write wait until a read frees a slot.
	Block
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// DropCallback receives every item the overflow policy discards. It is
// invoked outside the buffer lock.
type DropCallback[T any] func(item T)

// NewCircularBuffer builds a fixed-capacity ring buffer. Capacities
// below one are raised to one. Statistics are always collected; the
// only error case is a failed Prometheus registration when WithMetrics
// was given.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := defaultOptions[T]()
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return newRing(capacity, opts)
}
