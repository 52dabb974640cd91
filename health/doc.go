// Package health provides health status tracking and aggregation for Portax
// components.
//
// Components expose component.HealthStatus through the Discoverable
// interface; this package converts those into display-ready Status values,
// aggregates them into a system verdict, and keeps the last known snapshot
// in a thread-safe Monitor.
//
// # Status and Aggregation
//
// A Status is either healthy or unhealthy. Aggregation is conservative: one
// unhealthy component marks the whole system unhealthy, so problems are
// never masked by a majority of healthy neighbors.
//
//	subs := []health.Status{
//		health.FromComponent("serial-input", input.Health()),
//		health.FromComponent("nats-output", mirror.Health()),
//	}
//	system := health.Aggregate("portax", subs)
//	if system.IsUnhealthy() {
//		// serve 503 from /healthz
//	}
//
// # Monitor
//
// The process health loop polls components on a ticker and records results
// in a Monitor. Update compares against the previous snapshot and reports
// transitions, so the loop only has to decide what to log:
//
//	if monitor.Update(name, status) {
//		logger.Warn("component health changed",
//			"component", name, "healthy", status.Healthy)
//	}
//
// # Sanitization
//
// Error messages pass through sanitization before they reach a health
// response. Portax errors routinely embed serial device paths
// (/dev/ttyUSB0), NATS URLs, and addresses; FromComponent replaces those
// with [PATH], [URL], [IP], [PORT], and credential-shaped fragments with
// [REDACTED]. There is no opt-out.
package health
