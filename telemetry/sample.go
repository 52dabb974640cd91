package telemetry

import (
	"encoding/json"
	"time"

	"github.com/HaxIOX/Portax/pkg/timestamp"
)

// Value is one optional numeric reading. Defined is false when the series
// was hidden, had no keyword match, or the line supplied fewer positional
// fields than the series index.
type Value struct {
	Float64 float64
	Defined bool
}

// NewValue returns a defined value.
func NewValue(f float64) Value {
	return Value{Float64: f, Defined: true}
}

// Undefined returns an undefined value.
func Undefined() Value {
	return Value{}
}

// MarshalJSON renders undefined values as null so wire consumers can
// distinguish "no reading" from zero.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float64)
}

// UnmarshalJSON accepts null or a number.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value{Float64: f, Defined: true}
	return nil
}

// Sample is one extracted reading vector. Values always has exactly one
// entry per configured series. Samples are created once by the extraction
// engine (or a synthetic source) and are immutable afterwards.
type Sample struct {
	Values    []Value
	Timestamp time.Time
}

// NewSample copies values into a fresh sample so the caller's slice can be
// reused.
func NewSample(values []Value, ts time.Time) Sample {
	copied := make([]Value, len(values))
	copy(copied, values)
	return Sample{Values: copied, Timestamp: ts}
}

type sampleJSON struct {
	Values    []Value `json:"values"`
	Timestamp int64   `json:"timestamp"`
}

// MarshalJSON renders the timestamp as unix milliseconds, the wire format
// shared by the WebSocket stream and the NATS mirror.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		Values:    s.Values,
		Timestamp: timestamp.ToUnixMs(s.Timestamp),
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var w sampleJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Values = w.Values
	s.Timestamp = timestamp.FromUnixMs(w.Timestamp)
	return nil
}
