// Package buffer provides generic fixed-capacity ring buffers for the
// staging points in the data path: serial chunks between the port
// reader and the pipeline, tap output waiting for a WebSocket flush,
// and line and sample batches queued for publication.
//
// Every buffer is thread-safe and bounded. When a consumer stalls the
// buffer does not grow; the overflow policy decides what gives:
//
//   - DropOldest evicts the oldest item (the default, and what the
//     data path runs everywhere: fresh telemetry beats stale)
//   - DropNewest refuses the incoming item
//   - Block makes the writer wait for a free slot
//
// A typical staging buffer:
//
//	chunks, err := buffer.NewCircularBuffer(1024,
//		buffer.WithOverflowPolicy[string](buffer.DropOldest),
//		buffer.WithMetrics[string](registry, "serial_input"),
//		buffer.WithDropCallback[string](func(string) { dropCount.Inc() }),
//	)
//
// # Observability
//
// Statistics are always on: atomic counters for writes, reads, peeks,
// overflows and drops, plus the current fill level and its high-water
// mark, reachable through Stats(). WithMetrics additionally mirrors
// the same counters into a Prometheus registry under the portax_buffer
// namespace with the owning component as a label. The mirror is
// optional so the buffer works the same in tests and in deployments
// without a scrape target.
//
// # Blocking writes
//
// Under the Block policy, Write waits indefinitely for space. The
// concrete type also offers WriteWithContext and WriteWithTimeout,
// which give up when the context ends and return its error. Close
// wakes every blocked writer; a write that was waiting when the buffer
// closed reports a classified invalid-state error.
package buffer
