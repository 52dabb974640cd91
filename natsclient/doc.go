// Package natsclient provides a managed NATS client with circuit breaker
// protection, automatic reconnection, health monitoring, and connection
// metrics. It is the single NATS connection shared by the Portax mirror
// output and anything else that publishes to the bus.
//
// # Core Features
//
// Circuit Breaker: after a threshold of consecutive connection failures
// (default 5) the circuit opens and Connect fails fast with ErrCircuitOpen.
// The breaker re-arms after an exponentially growing backoff (capped at one
// minute by default).
//
// Connection Lifecycle: Disconnected → Connecting → Connected ↔
// Reconnecting, with optional callbacks on disconnect, reconnect, and health
// change. Reconnection itself is delegated to the underlying nats.go client
// (MaxReconnects / ReconnectWait).
//
// Health Monitoring: an optional ticker verifies the connection with an RTT
// probe and feeds the portax_nats_connected and portax_nats_rtt_seconds
// gauges when a metrics registry is wired via WithMetrics.
//
// # Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithName("portax"),
//		natsclient.WithMaxReconnects(-1),
//		natsclient.WithReconnectWait(2*time.Second),
//		natsclient.WithLogger(logger),
//		natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//		return err
//	}
//
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "portax.lines", []byte("t=21.5"))
//
// The url accepts a comma-separated server list, matching the form the
// PORTAX_NATS_URLS environment override carries.
//
// # Testing
//
// NewTestClient starts a disposable NATS server in a container
// (testcontainers) and returns a connected client; integration tests guard
// it behind testing.Short.
package natsclient
