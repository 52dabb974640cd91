package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopProcessor(context.Context, compressJob) error { return nil }

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(2, 10, noopProcessor)

	err := pool.Submit(compressJob{path: "early.log"})
	require.ErrorIs(t, err, ErrPoolNotStarted)

	// Sentinels come back unwrapped so callers can compare directly.
	assert.Equal(t, ErrPoolNotStarted, err)
}

func TestPool_DoubleStart(t *testing.T) {
	pool := NewPool(2, 10, noopProcessor)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := NewPool(2, 10, noopProcessor)

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(5*time.Second))

	assert.ErrorIs(t, pool.Submit(compressJob{path: "late.log"}), ErrPoolStopped)
}

func TestPool_QueueFullSentinel(t *testing.T) {
	pool := NewPool(1, 2, func(context.Context, compressJob) error {
		time.Sleep(time.Second)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop(5 * time.Second)

	var full error
	for i := 0; i < 10; i++ {
		if err := pool.Submit(compressJob{path: "flood.log"}); err != nil {
			full = err
			break
		}
	}
	assert.ErrorIs(t, full, ErrQueueFull)
}

func TestPool_StopTimeout(t *testing.T) {
	// The job outlives the stop budget on purpose.
	pool := NewPool(1, 10, func(ctx context.Context, _ compressJob) error {
		select {
		case <-time.After(10 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(compressJob{path: "stuck.log"}))

	time.Sleep(10 * time.Millisecond)

	assert.ErrorIs(t, pool.Stop(50*time.Millisecond), ErrStopTimeout)
}

func TestPool_NilProcessorPanicValue(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r, "nil processor must panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error")
		assert.True(t, errors.Is(err, ErrNilProcessor))
	}()
	NewPool[compressJob](5, 100, nil)
}
