// Package retry runs an operation under an exponential backoff
// schedule. It exists for the two places a fresh start routinely
// fails: opening a serial device that is not plugged in yet, and
// publishing before the NATS connection has settled.
//
// Do reruns a func() error until it succeeds or the schedule runs out:
//
//	err := retry.Do(ctx, retry.Persistent(), s.openPort)
//
// Three presets cover the callers here. DefaultConfig is three quick
// attempts for local resources, Quick burns ten fast attempts during
// startup, and Persistent spends thirty attempts over minutes for
// hardware that may appear late. Zero fields in a hand-built Config
// inherit the DefaultConfig values.
//
// Errors that retrying cannot fix, a malformed device path for one,
// can be marked with NonRetryable; Do returns them after the first
// attempt. Everything respects ctx, during the operation and during
// the backoff sleep alike.
//
// The package stays deliberately small. No circuit breaker, no
// metrics, no error classification beyond the NonRetryable marker;
// callers that need those wrap Do at the call site.
package retry
