package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig keeps test runs short and, with jitter off, predictable.
func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("port not ready")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ReportsLastErrorWhenExhausted(t *testing.T) {
	portErr := errors.New("no such device")

	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		return portErr
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	require.ErrorIs(t, err, portErr, "the final error keeps the last attempt's cause")
	assert.Equal(t, 3, attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	cause := errors.New("baud rate not supported")

	attempts := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		attempts++
		return NonRetryable(cause)
	})

	require.Error(t, err)
	assert.True(t, IsNonRetryable(err))
	require.ErrorIs(t, err, cause)
	assert.Equal(t, 1, attempts, "a non-retryable error must not burn further attempts")
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("still failing")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, attempts, 5)
}

func TestDo_BackoffGrowsByMultiplier(t *testing.T) {
	start := time.Now()
	attempts := 0

	_ = Do(context.Background(), fastConfig(4), func() error {
		attempts++
		return errors.New("still failing")
	})
	elapsed := time.Since(start)

	// Three sleeps of 10ms, 20ms and 40ms sit between four attempts.
	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
	assert.Equal(t, 4, attempts)
}

func TestDo_DelayCappedAtMaxDelay(t *testing.T) {
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     25 * time.Millisecond,
		Multiplier:   10.0,
	}

	start := time.Now()
	_ = Do(context.Background(), cfg, func() error {
		return errors.New("still failing")
	})
	elapsed := time.Since(start)

	// 10ms, then twice the 25ms cap instead of 100ms and 1s.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestDo_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative initial delay", Config{InitialDelay: -time.Second}},
		{"negative max delay", Config{MaxDelay: -time.Second}},
		{"negative multiplier", Config{Multiplier: -2}},
		{"max delay below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			err := Do(context.Background(), tt.cfg, func() error {
				ran = true
				return nil
			})
			require.Error(t, err)
			assert.False(t, ran, "invalid configs must fail before the first attempt")
		})
	}
}

func TestDo_ZeroAttemptsStillRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	port, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("enumerating")
		}
		return "/dev/ttyUSB0", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", port)
	assert.Equal(t, 3, attempts)
}

func TestDoWithResult_ZeroValueOnFailure(t *testing.T) {
	port, err := DoWithResult(context.Background(), fastConfig(2), func() (string, error) {
		return "ignored", errors.New("no such device")
	})

	require.Error(t, err)
	assert.Empty(t, port)
}

func TestPresets(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, 3, def.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, def.InitialDelay)
	assert.Equal(t, 5*time.Second, def.MaxDelay)
	assert.Equal(t, 2.0, def.Multiplier)
	assert.True(t, def.AddJitter)

	quick := Quick()
	assert.Equal(t, 10, quick.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, quick.InitialDelay)
	assert.Equal(t, time.Second, quick.MaxDelay)

	persistent := Persistent()
	assert.Equal(t, 30, persistent.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, persistent.InitialDelay)
	assert.Equal(t, 10*time.Second, persistent.MaxDelay)
}

func TestNonRetryable_NilStaysNil(t *testing.T) {
	assert.NoError(t, NonRetryable(nil))
	assert.False(t, IsNonRetryable(errors.New("plain")))
}

func BenchmarkDo_FirstTrySuccess(b *testing.B) {
	cfg := Config{MaxAttempts: 1, InitialDelay: time.Millisecond}
	for i := 0; i < b.N; i++ {
		_ = Do(context.Background(), cfg, func() error { return nil })
	}
}

func ExampleDo() {
	cfg := Persistent()

	err := Do(context.Background(), cfg, func() error {
		// Open the serial device; it may still be enumerating.
		return nil
	})
	fmt.Println(err)
	// Output: <nil>
}
