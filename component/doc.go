// Package component provides the component infrastructure for Portax:
// discovery, lifecycle management, and ordered startup/shutdown.
//
// # Overview
//
// Every long-running part of Portax (serial input, simulator, file output,
// NATS output, gateway, metrics server) is a component. A component is
// self-describing through the Discoverable interface and managed through the
// LifecycleComponent interface:
//
//   - Initialize() error                 // Setup/create only, NO context
//   - Start(ctx context.Context) error  // Start with context passed through
//   - Stop(timeout time.Duration) error // Graceful shutdown with a deadline
//
// Components never store the context they receive in Start. The Manager owns
// a named child context per component and cancels it during shutdown, so a
// component's read loop unblocks on ctx.Done() while Stop waits for its
// goroutines to drain.
//
// # Manager
//
// The Manager holds a fixed, explicitly registered set of components.
// Registration order defines start order; shutdown runs in reverse with a
// shared timeout budget:
//
//	mgr := component.NewManager(logger)
//	if err := mgr.Register("serial-input", input); err != nil {
//		return err
//	}
//	if err := mgr.Register("gateway", gw); err != nil {
//		return err
//	}
//	if err := mgr.Initialize(); err != nil {
//		return err
//	}
//	if err := mgr.Start(ctx); err != nil {
//		return err
//	}
//	defer mgr.Stop(30 * time.Second)
//
// If a component fails to Start, the components already started are stopped
// in reverse order before Start returns the error, so a half-started process
// never lingers.
//
// # Health and Status
//
// Manager.Health and Manager.Status aggregate the Discoverable data of all
// registered components; the gateway serves these from its health endpoint.
//
// # Testing
//
// StandardLifecycleTests runs the shared lifecycle contract suite against
// any LifecycleComponent factory:
//
//	func TestLifecycle(t *testing.T) {
//		component.StandardLifecycleTests(t, func() component.LifecycleComponent {
//			return newTestComponent(t)
//		})
//	}
//
// Every component package runs this suite so idempotent Stop, double Start,
// and goroutine cleanup behave uniformly across the system.
package component
