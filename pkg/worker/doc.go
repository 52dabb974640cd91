// Package worker provides a generic, thread-safe worker pool for concurrent task processing.
//
// # Overview
//
// The worker package implements a worker pool pattern with:
//   - Generic type support for type-safe work processing
//   - Bounded queues with backpressure (non-blocking submit)
//   - Context-aware cancellation and graceful shutdown
//   - Dual-tracking observability (always-on statistics + optional Prometheus metrics)
//
// Portax uses it for background jobs that must never block the serial data
// path, such as gzip-compressing rotated line logs.
//
// # Usage
//
// Basic worker pool:
//
//	type compressJob struct {
//	    Path string
//	}
//
//	pool := worker.NewPool[compressJob](
//	    2,   // workers
//	    32,  // queue size
//	    func(ctx context.Context, job compressJob) error {
//	        return compressFile(ctx, job.Path)
//	    },
//	)
//
//	ctx := context.Background()
//	if err := pool.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(compressJob{Path: rotated}); err != nil {
//	    if errors.Is(err, worker.ErrQueueFull) {
//	        // Backpressure: drop or defer the job
//	    }
//	}
//
// With Prometheus metrics:
//
//	registry := metric.NewMetricsRegistry()
//	pool := worker.NewPool[compressJob](
//	    2, 32, processJob,
//	    worker.WithMetricsRegistry[compressJob](registry, "log_compressor"),
//	)
//
// Metrics exposed: queue depth, utilization, submitted/processed/failed/dropped
// totals, and a processing-duration histogram labeled by status.
//
// # Architecture Decisions
//
// Non-blocking submit with backpressure: Submit() uses a non-blocking send
// rather than blocking on a full queue. Callers never stall the data path;
// ErrQueueFull is the overload signal.
//
// Graceful shutdown with timeout: Stop(timeout) closes the work channel,
// drains remaining items, and returns ErrStopTimeout if workers don't finish
// in time.
//
// # Thread Safety
//
// All public methods are safe for concurrent use. Lifecycle guarantees:
//
//   - Start() can only be called once
//   - Submit() fails if not started or already stopped
//   - Stop() is idempotent
//   - Workers complete in-flight work before exiting
//
// # Known Limitations
//
//  1. No per-work-item timeout: implement in the processor function
//  2. No priority queues: all work processed FIFO
//  3. No dynamic worker scaling: worker count is fixed at creation
//
// These are design decisions, not bugs. The package prioritizes simplicity,
// predictability, and correctness over feature richness.
package worker
