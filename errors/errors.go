package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass sorts failures by what the caller should do about them.
type ErrorClass int

const (
	// ErrorTransient failures may clear on their own; retrying is
	// reasonable.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid failures are the input's fault; retrying cannot
	// help.
	ErrorInvalid
	// ErrorFatal failures mean the component cannot continue.
	ErrorFatal
)

func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors for the conditions components branch on with
// errors.Is.
var (
	// Lifecycle.
	ErrAlreadyStarted = errors.New("component already started")
	ErrAlreadyStopped = errors.New("component already stopped")

	// Serial link.
	ErrPortClosed      = errors.New("serial port closed")
	ErrPortUnavailable = errors.New("serial port unavailable")

	// Connections.
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")

	// Data handling.
	ErrInvalidData   = errors.New("invalid data format")
	ErrInvalidHex    = errors.New("invalid hex input")
	ErrParsingFailed = errors.New("parsing failed")

	// Configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError carries a class plus the component and operation
// that produced the error, so handlers can branch without string
// matching.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Wrap adds the standard "component.method: action failed" context
// without attaching a class. Classification already present in the
// chain survives the wrap.
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps err as retryable with the standard context.
func WrapTransient(err error, component, method, action string) error {
	return classify(ErrorTransient, err, component, method, action)
}

// WrapInvalid wraps err as a caller mistake with the standard context.
func WrapInvalid(err error, component, method, action string) error {
	return classify(ErrorInvalid, err, component, method, action)
}

// WrapFatal wraps err as unrecoverable with the standard context.
func WrapFatal(err error, component, method, action string) error {
	return classify(ErrorFatal, err, component, method, action)
}

func classify(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// IsTransient reports whether err is worth retrying. An explicit
// classification wins; otherwise the transient sentinels, context
// errors and a few message patterns from common library errors count.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}
	if isAny(err, ErrConnectionTimeout, ErrConnectionLost, ErrPortUnavailable,
		context.DeadlineExceeded, context.Canceled) {
		return true
	}
	return matchesAny(err, "timeout", "connection", "network", "temporary", "unavailable", "busy", "retry")
}

// IsFatal reports whether err should stop processing entirely.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}
	if isAny(err, ErrInvalidConfig, ErrMissingConfig) {
		return true
	}
	return matchesAny(err, "fatal", "panic", "corrupted", "invalid config", "missing config",
		"out of memory", "disk full")
}

// IsInvalid reports whether err blames the input. No message
// heuristics here: an unknown error is more likely transient than a
// caller mistake.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}
	return isAny(err, ErrInvalidData, ErrInvalidHex, ErrParsingFailed)
}

// isAny is errors.Is over a target list.
func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// matchesAny scans the lowercased message for any of the patterns.
func matchesAny(err error, patterns ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
