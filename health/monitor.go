package health

import (
	"sync"
	"time"
)

// Monitor tracks the last known health of multiple components. The process
// health loop feeds it from periodic component polls; readers see the most
// recent snapshot without touching the components themselves.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty health monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records the status for a named component and reports whether its
// healthy state flipped since the previous observation. The first
// observation of a component is not a transition.
func (m *Monitor) Update(name string, status Status) bool {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, seen := m.statuses[name]
	m.statuses[name] = status
	return seen && prev.Healthy != status.Healthy
}

// UpdateHealthy records a component as healthy.
func (m *Monitor) UpdateHealthy(name, message string) bool {
	return m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy records a component as unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) bool {
	return m.Update(name, NewUnhealthy(name, message))
}

// Get retrieves the last recorded status for a named component.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[name]
	return status, exists
}

// GetAll returns a copy of all current health statuses.
func (m *Monitor) GetAll() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]Status, len(m.statuses))
	for name, status := range m.statuses {
		all[name] = status
	}
	return all
}

// AggregateHealth folds all recorded statuses into one system status.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subs = append(subs, status)
	}
	m.mu.RUnlock()

	return Aggregate(systemName, subs)
}

// Count returns the number of components being tracked.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.statuses)
}
