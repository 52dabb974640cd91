// Package file provides the rotating line log output component.
//
// # Overview
//
// The file output appends every framed telemetry line to a log file on
// disk. Writes are buffered and flushed on a fixed cadence, the file is
// rotated once it grows past a size limit, and rotated files can be
// gzip-compressed in the background so compression never blocks the data
// path. It implements the component lifecycle interfaces for management
// and observability.
//
// # Quick Start
//
// Log lines to a rotating file with compression:
//
//	out := file.NewOutput(file.OutputDeps{
//	    Config: config.FileOutputConfig{
//	        Path:          "/var/log/portax/lines.log",
//	        MaxSizeBytes:  64 << 20,
//	        Compress:      true,
//	        FlushInterval: config.Duration(time.Second),
//	    },
//	})
//
//	_ = out.Initialize()
//	_ = out.Start(ctx)
//	pipe.AddLineTap(out.Lines)
//
// # Buffering
//
// Lines handed to the tap are staged in memory and written in one append
// per flush. A flush happens on every FlushInterval tick, when a burst
// fills the staging buffer, and once more during Stop so nothing staged
// is lost on shutdown.
//
// # Rotation
//
// When the log reaches MaxSizeBytes after a flush it is renamed aside
// with a timestamp suffix:
//
//	lines.log -> lines.log.20260823-143501.117
//
// and a fresh file is opened at the configured path. A MaxSizeBytes of
// zero disables rotation.
//
// # Compression
//
// With Compress enabled, each rotated file is handed to a single-worker
// pool that gzips it and removes the original:
//
//	lines.log.20260823-143501.117 -> lines.log.20260823-143501.117.gz
//
// If the compression queue is full the rotated file simply stays on disk
// uncompressed.
package file
