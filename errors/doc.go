// Package errors provides standardized error handling patterns for Portax components.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// The classification lets components make informed decisions about retries and
// failure recovery without hardcoded error string matching. A flaky serial port
// open is Transient and worth retrying; a malformed hex payload on /api/send is
// Invalid and must be rejected without a retry; a broken configuration file is
// Fatal and should stop startup.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "SerialInput", "Start", "open port")
//	errors.WrapInvalid(err, "Gateway", "handleSend", "decode hex")
//	errors.WrapFatal(err, "Config", "Load", "parse file")
//
// The generic Wrap() function preserves the original error's classification:
//
//	errors.Wrap(err, "Pipeline", "flush", "append batch")
//
// # Standard Error Variables
//
// Pre-defined error variables cover the common conditions, organized by
// category:
//
//   - Component lifecycle: ErrAlreadyStarted, ErrAlreadyStopped
//   - Serial link: ErrPortClosed, ErrPortUnavailable
//   - Connections: ErrConnectionLost, ErrConnectionTimeout
//   - Data: ErrInvalidData, ErrInvalidHex, ErrParsingFailed
//   - Configuration: ErrInvalidConfig, ErrMissingConfig
//
// Use these variables instead of creating custom error messages so callers can
// branch on errors.Is.
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection. Classification is
// preserved through wrapping chains:
//
//	wrapped := errors.WrapTransient(errors.ErrPortUnavailable, "SerialInput", "Start", "open")
//	errors.IsTransient(wrapped) // true
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
