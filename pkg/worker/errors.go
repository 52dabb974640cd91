package worker

import "errors"

// Pool sentinel errors. Returned unwrapped so callers can compare with
// errors.Is and decide between dropping work and surfacing a fault.
var (
	ErrPoolNotStarted     = errors.New("worker pool not started")
	ErrPoolStopped        = errors.New("worker pool stopped")
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrQueueFull is the expected overload signal: Submit never blocks,
	// it reports a full queue and leaves the caller's data path alone.
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrNilProcessor is a construction bug, so NewPool panics with it
	// rather than returning it.
	ErrNilProcessor = errors.New("processor function cannot be nil")

	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)
