package component

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LifecycleFactory creates a new instance of a LifecycleComponent for testing
type LifecycleFactory func() LifecycleComponent

// StandardLifecycleTests runs the shared lifecycle contract tests for any
// component that implements LifecycleComponent. Every component package runs
// this suite against its own factory so the contract stays uniform.
func StandardLifecycleTests(t *testing.T, factory LifecycleFactory) {
	t.Run("Compliance", func(t *testing.T) {
		testLifecycleCompliance(t, factory)
	})
	t.Run("Concurrent", func(t *testing.T) {
		testConcurrentLifecycle(t, factory)
	})
	t.Run("NoLeaks", func(t *testing.T) {
		testNoResourceLeaks(t, factory)
	})
}

func testLifecycleCompliance(t *testing.T, factory LifecycleFactory) {
	tests := []struct {
		name string
		test func(t *testing.T, comp LifecycleComponent)
	}{
		{"Initialize", testInitialize},
		{"StartStop", testStartStop},
		{"DoubleStart", testDoubleStart},
		{"DoubleStop", testDoubleStop},
		{"StopWithoutStart", testStopWithoutStart},
		{"RestartAfterStop", testRestartAfterStop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := factory()
			require.NotNil(t, comp, "Component factory returned nil")
			tt.test(t, comp)
		})
	}
}

func testInitialize(t *testing.T, comp LifecycleComponent) {
	err := comp.Initialize()
	assert.NoError(t, err, "Initialize should succeed on fresh component")
}

func testStartStop(t *testing.T, comp LifecycleComponent) {
	err := comp.Initialize()
	require.NoError(t, err, "Initialize must succeed before Start")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = comp.Start(ctx)
	assert.NoError(t, err, "Start should succeed after Initialize")

	err = comp.Stop(5 * time.Second)
	assert.NoError(t, err, "Stop should succeed after Start")
}

func testDoubleStart(t *testing.T, comp LifecycleComponent) {
	err := comp.Initialize()
	require.NoError(t, err, "Initialize must succeed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = comp.Start(ctx)
	require.NoError(t, err, "First Start should succeed")

	// Second start must be a no-op, not a hang or a panic.
	err = comp.Start(ctx)
	assert.NoError(t, err, "Second Start should be idempotent")

	err = comp.Stop(5 * time.Second)
	assert.NoError(t, err, "Stop should succeed")
}

func testDoubleStop(t *testing.T, comp LifecycleComponent) {
	err := comp.Initialize()
	require.NoError(t, err, "Initialize must succeed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = comp.Start(ctx)
	require.NoError(t, err, "Start must succeed")

	err = comp.Stop(5 * time.Second)
	assert.NoError(t, err, "First Stop should succeed")

	err = comp.Stop(5 * time.Second)
	assert.NoError(t, err, "Second Stop should be idempotent")
}

func testStopWithoutStart(t *testing.T, comp LifecycleComponent) {
	err := comp.Stop(5 * time.Second)
	assert.NoError(t, err, "Stop should be safe to call without Start")
}

func testRestartAfterStop(t *testing.T, comp LifecycleComponent) {
	err := comp.Initialize()
	require.NoError(t, err, "Initialize should succeed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = comp.Start(ctx)
	require.NoError(t, err, "First Start should succeed")

	err = comp.Stop(5 * time.Second)
	require.NoError(t, err, "Stop should succeed")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()

	err = comp.Start(ctx2)
	if err != nil {
		// Some components require re-initialization after stop.
		err = comp.Initialize()
		require.NoError(t, err, "Re-initialize should succeed if Start fails after Stop")

		err = comp.Start(ctx2)
		assert.NoError(t, err, "Start should succeed after re-initialization")
	}

	err = comp.Stop(5 * time.Second)
	assert.NoError(t, err, "Final Stop should succeed")
}

// testConcurrentLifecycle hammers Start and Stop from many goroutines at
// once. The component must never panic or deadlock.
func testConcurrentLifecycle(t *testing.T, factory LifecycleFactory) {
	comp := factory()
	require.NotNil(t, comp, "Component factory returned nil")

	err := comp.Initialize()
	require.NoError(t, err, "Initialize must succeed")

	var wg sync.WaitGroup
	results := make([]error, 40)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			results[idx] = comp.Start(ctx)
		}(i)
	}

	for i := 20; i < 40; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			results[idx] = comp.Stop(5 * time.Second)
		}(i)
	}

	wg.Wait()

	successfulStarts := 0
	successfulStops := 0
	for i, err := range results {
		if err != nil {
			continue
		}
		if i < 20 {
			successfulStarts++
		} else {
			successfulStops++
		}
	}

	assert.GreaterOrEqual(t, successfulStarts, 1, "At least one Start should succeed")
	assert.GreaterOrEqual(t, successfulStops, 1, "At least one Stop should succeed")

	_ = comp.Stop(5 * time.Second)
}

// testNoResourceLeaks cycles the component through many full lifecycles and
// checks the goroutine count comes back down.
func testNoResourceLeaks(t *testing.T, factory LifecycleFactory) {
	if testing.Short() {
		t.Skip("Skipping resource leak test in short mode")
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	initialGoroutines := runtime.NumGoroutine()

	const iterations = 50
	for i := 0; i < iterations; i++ {
		comp := factory()
		require.NotNil(t, comp, "Component factory returned nil")

		if err := comp.Initialize(); err != nil {
			t.Logf("Initialize failed on iteration %d: %v", i, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := comp.Start(ctx); err != nil {
			t.Logf("Start failed on iteration %d: %v", i, err)
		}
		if err := comp.Stop(5 * time.Second); err != nil {
			t.Logf("Stop failed on iteration %d: %v", i, err)
		}
		cancel()
	}

	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	finalGoroutines := runtime.NumGoroutine()
	growth := finalGoroutines - initialGoroutines
	if growth > 5 {
		t.Errorf("Goroutine count grew by %d (initial: %d, final: %d), expected growth < 5",
			growth, initialGoroutines, finalGoroutines)
	}
}
