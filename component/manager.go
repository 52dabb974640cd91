package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pkgerrors "github.com/HaxIOX/Portax/errors"
)

// rollbackTimeout bounds the Stop calls issued when a later component fails
// to start and the already-started ones must be unwound.
const rollbackTimeout = 5 * time.Second

// managed tracks one registered component and its lifecycle bookkeeping.
// The component never stores the context it receives in Start; the Manager
// holds the cancel func so shutdown can signal each component individually.
type managed struct {
	name    string
	comp    LifecycleComponent
	state   State
	cancel  context.CancelFunc
	lastErr error
}

// Status is a point-in-time snapshot of one managed component, shaped for
// the gateway status endpoint.
type Status struct {
	Name      string       `json:"name"`
	Type      string       `json:"type"`
	State     State        `json:"state"`
	Health    HealthStatus `json:"health"`
	Flow      FlowMetrics  `json:"flow"`
	LastError string       `json:"last_error,omitempty"`
}

// Manager owns the lifecycle of a fixed set of components. Components start
// in registration order and stop in reverse, each under its own child
// context derived from the context passed to Start.
type Manager struct {
	mu          sync.Mutex
	logger      *slog.Logger
	entries     []*managed
	initialized bool
	started     bool
}

// NewManager creates an empty manager. A nil logger falls back to
// slog.Default.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds a component under a unique name. Registration order defines
// start order. Registration is rejected once the manager has started.
func (m *Manager) Register(name string, comp LifecycleComponent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return pkgerrors.WrapInvalid(pkgerrors.ErrAlreadyStarted,
			"Manager", "Register", "registration after start")
	}
	if name == "" {
		return pkgerrors.WrapInvalid(fmt.Errorf("empty component name"),
			"Manager", "Register", "name validation")
	}
	if comp == nil {
		return pkgerrors.WrapInvalid(fmt.Errorf("nil component %q", name),
			"Manager", "Register", "component validation")
	}
	for _, e := range m.entries {
		if e.name == name {
			return pkgerrors.WrapInvalid(fmt.Errorf("component %q already registered", name),
				"Manager", "Register", "duplicate name check")
		}
	}

	m.entries = append(m.entries, &managed{name: name, comp: comp, state: StateCreated})
	return nil
}

// Initialize initializes all components in registration order, failing fast
// on the first error.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if err := e.comp.Initialize(); err != nil {
			e.state = StateFailed
			e.lastErr = err
			return pkgerrors.Wrap(err, "Manager", "Initialize",
				fmt.Sprintf("initialize component %q", e.name))
		}
		e.state = StateInitialized
	}

	m.initialized = true
	return nil
}

// Start starts all components in registration order. Each component gets a
// named child context cancelled during Stop. If a component fails to start,
// the already-started components are stopped in reverse and the error is
// returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return pkgerrors.WrapInvalid(fmt.Errorf("manager not initialized"),
			"Manager", "Start", "state check")
	}
	if m.started {
		return nil
	}

	for i, e := range m.entries {
		childCtx, cancel := context.WithCancel(ctx)
		e.cancel = cancel

		m.logger.Info("starting component", "name", e.name, "type", e.comp.Meta().Type)

		if err := e.comp.Start(childCtx); err != nil {
			e.state = StateFailed
			e.lastErr = err
			cancel()
			e.cancel = nil

			m.logger.Error("component failed to start", "name", e.name, "error", err)
			m.rollbackLocked(i)

			return pkgerrors.Wrap(err, "Manager", "Start",
				fmt.Sprintf("start component %q", e.name))
		}

		e.state = StateStarted
		e.lastErr = nil
	}

	m.started = true
	return nil
}

// rollbackLocked stops entries[0:failed] in reverse order after a start
// failure. Requires m.mu held.
func (m *Manager) rollbackLocked(failed int) {
	for i := failed - 1; i >= 0; i-- {
		e := m.entries[i]
		m.cancelLocked(e)
		if err := e.comp.Stop(rollbackTimeout); err != nil {
			e.state = StateFailed
			e.lastErr = err
			m.logger.Error("rollback stop failed", "name", e.name, "error", err)
			continue
		}
		e.state = StateStopped
	}
}

// Stop stops all started components in reverse registration order. The
// timeout is a shared budget: each component receives the time remaining
// when its turn comes, with a one second floor so late components are not
// zero-budgeted. All stop errors are collected and returned together.
func (m *Manager) Stop(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	deadline := time.Now().Add(timeout)
	var errs []error

	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.state != StateStarted {
			continue
		}

		// Cancel the child context first so read loops observe shutdown,
		// then give Stop the remaining budget to drain.
		m.cancelLocked(e)

		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Second
		}

		m.logger.Info("stopping component", "name", e.name, "timeout", remaining)

		if err := e.comp.Stop(remaining); err != nil {
			e.state = StateFailed
			e.lastErr = err
			errs = append(errs, fmt.Errorf("component %q: %w", e.name, err))
			continue
		}
		e.state = StateStopped
	}

	m.started = false

	if len(errs) > 0 {
		return pkgerrors.Wrap(errors.Join(errs...), "Manager", "Stop",
			fmt.Sprintf("stop %d components", len(errs)))
	}
	return nil
}

// cancelLocked cancels a component's child context if present. Requires
// m.mu held.
func (m *Manager) cancelLocked(e *managed) {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Component returns a registered component by name, or nil if unknown.
func (m *Manager) Component(name string) LifecycleComponent {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.name == name {
			return e.comp
		}
	}
	return nil
}

// Health returns the current health of every registered component keyed by
// name.
func (m *Manager) Health() map[string]HealthStatus {
	m.mu.Lock()
	entries := make([]*managed, len(m.entries))
	copy(entries, m.entries)
	m.mu.Unlock()

	// Health calls run outside the lock: components take their own locks
	// and may be mid-Start or mid-Stop.
	health := make(map[string]HealthStatus, len(entries))
	for _, e := range entries {
		health[e.name] = e.comp.Health()
	}
	return health
}

// Healthy reports whether every registered component currently reports
// healthy. An empty manager is healthy.
func (m *Manager) Healthy() bool {
	for _, h := range m.Health() {
		if !h.Healthy {
			return false
		}
	}
	return true
}

// Status returns a snapshot of every registered component in registration
// order.
func (m *Manager) Status() []Status {
	m.mu.Lock()
	type row struct {
		name    string
		comp    LifecycleComponent
		state   State
		lastErr error
	}
	rows := make([]row, 0, len(m.entries))
	for _, e := range m.entries {
		rows = append(rows, row{e.name, e.comp, e.state, e.lastErr})
	}
	m.mu.Unlock()

	statuses := make([]Status, 0, len(rows))
	for _, r := range rows {
		s := Status{
			Name:   r.name,
			Type:   r.comp.Meta().Type,
			State:  r.state,
			Health: r.comp.Health(),
			Flow:   r.comp.DataFlow(),
		}
		if r.lastErr != nil {
			s.LastError = r.lastErr.Error()
		}
		statuses = append(statuses, s)
	}
	return statuses
}
