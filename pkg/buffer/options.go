package buffer

import "github.com/HaxIOX/Portax/metric"

// Option configures a buffer at construction time.
type Option[T any] func(*bufferOptions[T])

type bufferOptions[T any] struct {
	overflowPolicy OverflowPolicy
	dropCallback   DropCallback[T]

	// Set together by WithMetrics; the prefix becomes the component
	// label on every exported series.
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
}

func defaultOptions[T any]() *bufferOptions[T] {
	return &bufferOptions[T]{overflowPolicy: DropOldest}
}

// WithOverflowPolicy picks what Write does when the buffer is full.
// The default is DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.overflowPolicy = policy
	}
}

// WithMetrics mirrors the buffer's statistics into Prometheus under
// the given component label. A nil registry or empty prefix leaves the
// mirror off.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithDropCallback registers a function that receives every item the
// overflow policy discards.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.dropCallback = callback
	}
}
