// Package gateway is the control surface of a Portax process: an HTTP
// API for inspecting and steering the pipeline, exports of the history
// window, and a WebSocket stream of live data for dashboards.
//
// The gateway never owns data. History belongs to the history store,
// settings to the config store, ranges to the pipeline; the gateway
// reads them on request and pushes deltas to stream clients. Writing
// goes the other way: /api/send encodes a frame and hands it to the
// transport (the serial port, or the simulator's discard sink).
//
// # Architecture
//
//	            ┌──────────────────────────────────────────┐
//	            │                 gateway                  │
//	            │                                          │
//	 HTTP ──────┤  /healthz  /api/*  /export/*             │
//	            │     │         │        │                 │
//	            │     ▼         ▼        ▼                 │
//	            │  health    config   history / export     │
//	            │            store    store                │
//	            │                                          │
//	 WS ────────┤  /ws ◄── stream pump ◄── stage buffers   │
//	            │                              ▲           │
//	            └──────────────────────────────┼───────────┘
//	                                           │ taps
//	                                       pipeline
//
// The pipeline flushes on its own goroutine and calls the gateway's
// Lines and Samples taps synchronously. The taps only stage into
// drop-oldest ring buffers; a pump goroutine turns the stages into
// WebSocket frames every 50ms. A stalled or slow client therefore
// cannot back-pressure the pipeline, it just loses frames.
//
// # Routes
//
//	GET  /healthz        aggregated component health (503 when unhealthy)
//	GET  /api/window     history window + version, series, scale mode
//	GET  /api/ranges     current axis ranges
//	GET  /api/series     series configuration
//	PUT  /api/series     replace series configuration
//	PUT  /api/scale      switch scale mode (per-series | shared)
//	POST /api/send       encode a frame and write it to the transport
//	POST /api/pause      freeze the history window
//	POST /api/resume     resume appends
//	POST /api/clear      wipe the window
//	GET  /export/csv     window as CSV download (?gzip=1 compresses)
//	GET  /export/ranges  plain-text range report
//	GET  /ws             live stream (window, samples, lines, ranges frames)
//
// # Usage
//
//	srv, err := gateway.NewServer(gateway.ServerDeps{
//		Config:    cfg.Gateway,
//		History:   store,
//		Settings:  settings,
//		Pipeline:  pipe,
//		Transport: input,
//		Logger:    logger,
//	})
//	if err != nil {
//		return err
//	}
//	pipe.AddLineTap(srv.Lines)
//	pipe.AddSampleTap(srv.Samples)
//
// Then, against a running process:
//
//	curl localhost:8455/api/window
//	curl -X PUT localhost:8455/api/scale -d '{"mode":"shared"}'
//	curl -X POST localhost:8455/api/send -d '{"text":"AT+RST","line_ending":"\r\n"}'
//	curl -o window.csv.gz 'localhost:8455/export/csv?gzip=1'
//
// # Stream protocol
//
// Every WebSocket message is a Frame envelope: a type, a unix-millisecond
// timestamp, and a JSON payload. New clients receive a "window" frame and
// a "ranges" frame immediately on connect, then "lines", "samples" and
// "ranges" frames as data arrives. The stream is best-effort with no acks
// or sequence numbers; a client that detects a gap re-reads /api/window.
//
// CORS is permissive because the gateway binds loopback by default; the
// bind address is the access control.
package gateway
