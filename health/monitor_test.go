package health

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateAndGet(t *testing.T) {
	monitor := NewMonitor()
	assert.Equal(t, 0, monitor.Count())

	monitor.UpdateHealthy("serial-input", "reading")

	status, exists := monitor.Get("serial-input")
	require.True(t, exists)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "serial-input", status.Component)
	assert.Equal(t, 1, monitor.Count())

	_, exists = monitor.Get("ghost")
	assert.False(t, exists)
}

func TestMonitor_UpdateOverridesComponentName(t *testing.T) {
	monitor := NewMonitor()

	// The monitor key wins over whatever name the status carried.
	monitor.Update("canonical", Status{Component: "stale", Status: StatusHealthy, Healthy: true})

	status, exists := monitor.Get("canonical")
	require.True(t, exists)
	assert.Equal(t, "canonical", status.Component)
	assert.NotZero(t, status.Timestamp, "zero timestamp should be filled in")
}

func TestMonitor_UpdateReportsTransitions(t *testing.T) {
	monitor := NewMonitor()

	// First observation is not a transition.
	assert.False(t, monitor.UpdateHealthy("nats-output", "connected"))

	// Same state again is not one either.
	assert.False(t, monitor.UpdateHealthy("nats-output", "connected"))

	// A flip in either direction is.
	assert.True(t, monitor.UpdateUnhealthy("nats-output", "connection lost"))
	assert.True(t, monitor.UpdateHealthy("nats-output", "reconnected"))

	status, _ := monitor.Get("nats-output")
	assert.True(t, status.Healthy)
	assert.Equal(t, "reconnected", status.Message)
}

func TestMonitor_GetAllIsACopy(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("a", "ok")

	all := monitor.GetAll()
	require.Len(t, all, 1)

	all["b"] = NewHealthy("b", "injected")
	assert.Equal(t, 1, monitor.Count(), "mutating the returned map must not affect the monitor")
}

func TestMonitor_AggregateHealth(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("a", "ok")
	monitor.UpdateHealthy("b", "ok")

	system := monitor.AggregateHealth("portax")
	assert.True(t, system.IsHealthy())
	assert.Len(t, system.SubStatuses, 2)

	monitor.UpdateUnhealthy("b", "port gone")
	system = monitor.AggregateHealth("portax")
	assert.True(t, system.IsUnhealthy())
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	monitor := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			name := fmt.Sprintf("component-%d", worker%4)
			for j := 0; j < 100; j++ {
				if j%2 == 0 {
					monitor.UpdateHealthy(name, "ok")
				} else {
					monitor.UpdateUnhealthy(name, "wobbly")
				}
				_, _ = monitor.Get(name)
				_ = monitor.GetAll()
				_ = monitor.AggregateHealth("portax")
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent access deadlocked")
	}

	assert.Equal(t, 4, monitor.Count())
}
