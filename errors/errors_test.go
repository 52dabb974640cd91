package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.class.String())
		})
	}
}

func TestSentinels_Distinct(t *testing.T) {
	sentinels := []error{
		ErrAlreadyStarted,
		ErrAlreadyStopped,
		ErrPortClosed,
		ErrPortUnavailable,
		ErrConnectionLost,
		ErrConnectionTimeout,
		ErrInvalidData,
		ErrInvalidHex,
		ErrParsingFailed,
		ErrInvalidConfig,
		ErrMissingConfig,
	}

	seen := make(map[string]bool, len(sentinels))
	for _, err := range sentinels {
		require.Error(t, err)
		assert.False(t, seen[err.Error()], "duplicate sentinel message %q", err.Error())
		seen[err.Error()] = true
	}
}

func TestClassifiedError_Error(t *testing.T) {
	inner := errors.New("device reset during read")

	withMessage := &ClassifiedError{
		Class:   ErrorTransient,
		Err:     inner,
		Message: "SerialInput.readLoop: read chunk failed: device reset during read",
	}
	assert.Equal(t, "SerialInput.readLoop: read chunk failed: device reset during read", withMessage.Error())

	withoutMessage := &ClassifiedError{Class: ErrorTransient, Err: inner}
	assert.Equal(t, "device reset during read", withoutMessage.Error())

	assert.Same(t, inner, withMessage.Unwrap())
}

func TestWrap(t *testing.T) {
	cause := errors.New("original error")

	err := Wrap(cause, "SerialInput", "readLoop", "read chunk")
	require.Error(t, err)
	assert.Equal(t, "SerialInput.readLoop: read chunk failed: original error", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, Wrap(nil, "SerialInput", "readLoop", "read chunk"))
}

func TestWrap_PreservesClassification(t *testing.T) {
	classified := WrapTransient(ErrConnectionLost, "NATSOutput", "publish", "flush batch")
	rewrapped := Wrap(classified, "Processor", "Run", "forward samples")

	assert.True(t, IsTransient(rewrapped))
	assert.ErrorIs(t, rewrapped, ErrConnectionLost)

	var ce *ClassifiedError
	require.ErrorAs(t, rewrapped, &ce)
	assert.Equal(t, "NATSOutput", ce.Component)
}

func TestWrapClassified(t *testing.T) {
	cause := errors.New("checksum mismatch")

	tests := []struct {
		name string
		wrap func(error, string, string, string) error
		want ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(cause, "LineParser", "Parse", "decode frame")
			require.Error(t, err)

			var ce *ClassifiedError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.want, ce.Class)
			assert.Equal(t, "LineParser", ce.Component)
			assert.Equal(t, "Parse", ce.Operation)
			assert.Equal(t, "LineParser.Parse: decode frame failed: checksum mismatch", err.Error())
			assert.ErrorIs(t, err, cause)

			assert.NoError(t, tt.wrap(nil, "LineParser", "Parse", "decode frame"))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"classified transient", WrapTransient(errors.New("flaky link"), "NATSOutput", "publish", "send"), true},
		{"classified invalid", WrapInvalid(errors.New("flaky link"), "LineParser", "Parse", "decode"), false},
		{"connection timeout sentinel", ErrConnectionTimeout, true},
		{"connection lost sentinel", ErrConnectionLost, true},
		{"port unavailable sentinel", ErrPortUnavailable, true},
		{"wrapped sentinel", fmt.Errorf("dial: %w", ErrConnectionLost), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"context cancelled", context.Canceled, true},
		{"timeout message", errors.New("read /dev/ttyUSB0: i/o timeout"), true},
		{"busy message", errors.New("device or resource busy"), true},
		{"unrelated error", errors.New("permission denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"classified fatal", WrapFatal(errors.New("registry poisoned"), "Gateway", "Start", "init"), true},
		{"classified transient", WrapTransient(errors.New("registry poisoned"), "Gateway", "Start", "init"), false},
		{"invalid config sentinel", ErrInvalidConfig, true},
		{"missing config sentinel", fmt.Errorf("load: %w", ErrMissingConfig), true},
		{"corrupted message", errors.New("state file corrupted"), true},
		{"disk full message", errors.New("write snapshot: disk full"), true},
		{"unrelated error", errors.New("sample out of range"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"classified invalid", WrapInvalid(errors.New("bad frame"), "LineParser", "Parse", "decode"), true},
		{"classified fatal", WrapFatal(errors.New("bad frame"), "LineParser", "Parse", "decode"), false},
		{"invalid data sentinel", ErrInvalidData, true},
		{"invalid hex sentinel", fmt.Errorf("decode payload: %w", ErrInvalidHex), true},
		{"parsing failed sentinel", ErrParsingFailed, true},
		// Message text alone never marks an error invalid.
		{"lookalike message", errors.New("parsing failed at byte 12"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInvalid(tt.err))
		})
	}
}

func BenchmarkIsTransient(b *testing.B) {
	err := WrapTransient(errors.New("connection reset"), "NATSOutput", "publish", "send batch")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		IsTransient(err)
	}
}

func BenchmarkWrap(b *testing.B) {
	cause := errors.New("short read")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Wrap(cause, "SerialInput", "readLoop", "read chunk")
	}
}
