// Package portax is a headless serial-link telemetry core: it reads
// line-oriented text from a serial device (or a built-in simulator),
// extracts keyword-tagged numeric samples into a bounded in-memory
// window, and serves the live feed to local clients over HTTP and
// WebSocket, with optional file and NATS mirrors.
//
// # Architecture
//
// Data flows one way through a fixed pipeline; every consumer hangs off
// a tap and can never block the source:
//
//	┌──────────────┐     ┌────────┐     ┌───────────────────────────┐
//	│ input/serial │     │ framer │     │         pipeline          │
//	│  input/sim   ├────→│ (line  ├────→│  extract → history ring   │
//	└──────────────┘     │ split) │     └──────┬────────────┬───────┘
//	                     └────────┘            │ line taps  │ sample taps
//	                                 ┌─────────┼──────┬─────┴─────┐
//	                                 ↓         ↓      ↓           ↓
//	                            ┌─────────┐ ┌──────┐ ┌──────┐ ┌───────┐
//	                            │ gateway │ │ file │ │ NATS │ │gateway│
//	                            │ (lines) │ │output│ │mirror│ │(samples)
//	                            └─────────┘ └──────┘ └──────┘ └───────┘
//
// The gateway also carries the reverse path: its send endpoint encodes
// an outbound frame (text or hex, optional checksum) and writes it to
// the active input, so a serial device can be driven from the same
// surface that displays it.
//
// # Data model
//
// The wire format is plain text lines. A line becomes a sample when it
// contains one or more configured series keywords each followed by a
// numeric value ("temp:23.4 hum:61"). Series without a match in a given
// line stay undefined for that sample; undefined values survive export
// and streaming as explicit gaps, never as zeros.
//
// The history ring holds the most recent samples up to a configured
// capacity. Readers get a consistent window plus a version tag that
// advances on every append and clear, so a client can detect missed
// updates after a reconnect.
//
// # Packages
//
// Core pipeline:
//   - framer: splits an arbitrary chunk stream into lines
//   - extract: keyword/value extraction from lines
//   - telemetry: series configuration, samples, undefined values
//   - history: bounded sample ring with versioned snapshots
//   - pipeline: wires framer, extract and history; owns the taps
//   - scale: per-series and shared axis range computation
//   - codec: outbound frame encoding (text/hex, line endings, CRC16)
//   - export: CSV and range-report rendering
//
// Sources and sinks:
//   - input/serial: real device via go.bug.st/serial
//   - input/sim: synthetic waveform generator for development
//   - output/file: append-only line log with rotation
//   - output/nats: line and sample mirror over NATS
//   - gateway: HTTP API, WebSocket stream, CSV export, health
//
// Infrastructure:
//   - component: lifecycle contract and start/stop manager
//   - config: file loading, env overrides, live settings store
//   - natsclient: NATS connection management
//   - metric: Prometheus metrics registry and server
//   - health: component and system health aggregation
//   - errors: structured error handling
//   - pkg/buffer, pkg/retry, pkg/timestamp, pkg/worker: utilities
//
// # Usage
//
// The cmd/portax binary wires everything from configuration. Embedding
// the core in another program takes a few lines:
//
//	store := history.NewWithCapacity(300)
//	settings, _ := config.NewStore(telemetry.DefaultSeries(), scale.ModePerSeries)
//	pipe := pipeline.New(store, settings)
//
//	source := sim.NewInput(sim.InputDeps{Series: settings, Sink: pipe})
//
//	manager := component.NewManager(logger)
//	manager.Register("sim-input", source)
//	manager.Initialize()
//	manager.Start(ctx)
//	defer manager.Stop(10 * time.Second)
//
//	window, version := store.Snapshot()
//
// # Configuration
//
// Configuration loads from a JSON or YAML file over built-in defaults,
// then PORTAX_* environment variables override individual fields:
//
//	PORTAX_INPUT_SOURCE=serial PORTAX_SERIAL_DEVICE=/dev/ttyUSB0 portax
//
// The defaults run the simulator against three demo series with the
// gateway on 127.0.0.1:8455, which makes a bare "portax" invocation a
// working demo.
//
// # Design principles
//
// Bounded memory:
//   - History is a fixed-capacity ring; the process footprint does not
//     grow with uptime
//   - Gateway staging buffers drop oldest on overflow and count drops
//
// Non-blocking taps:
//   - Taps run synchronously on the pipeline flush path and hand off to
//     their own buffers; a slow WebSocket client or NATS outage cannot
//     stall serial reads
//
// Explicit lifecycle:
//   - Every long-running piece implements Initialize/Start/Stop and
//     reports health; the manager starts them in dependency order and
//     stops them in reverse
package portax
