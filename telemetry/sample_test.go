package telemetry_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaxIOX/Portax/telemetry"
)

func TestValueJSON(t *testing.T) {
	t.Run("defined marshals as number", func(t *testing.T) {
		data, err := json.Marshal(telemetry.NewValue(23.5))
		require.NoError(t, err)
		assert.Equal(t, "23.5", string(data))
	})

	t.Run("undefined marshals as null", func(t *testing.T) {
		data, err := json.Marshal(telemetry.Undefined())
		require.NoError(t, err)
		assert.Equal(t, "null", string(data))
	})

	t.Run("null unmarshals as undefined", func(t *testing.T) {
		var v telemetry.Value
		require.NoError(t, json.Unmarshal([]byte("null"), &v))
		assert.False(t, v.Defined)
	})

	t.Run("number unmarshals as defined", func(t *testing.T) {
		var v telemetry.Value
		require.NoError(t, json.Unmarshal([]byte("-4.25"), &v))
		assert.True(t, v.Defined)
		assert.Equal(t, -4.25, v.Float64)
	})
}

func TestNewSampleCopiesValues(t *testing.T) {
	values := []telemetry.Value{telemetry.NewValue(1), telemetry.Undefined()}
	sample := telemetry.NewSample(values, time.Now())

	// Mutating the caller's slice must not leak into the sample
	values[0] = telemetry.NewValue(99)

	assert.Equal(t, 1.0, sample.Values[0].Float64)
	assert.False(t, sample.Values[1].Defined)
}

func TestSampleJSONRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 250*int(time.Millisecond), time.UTC)
	sample := telemetry.NewSample([]telemetry.Value{
		telemetry.NewValue(23.5),
		telemetry.Undefined(),
		telemetry.NewValue(-60),
	}, ts)

	data, err := json.Marshal(sample)
	require.NoError(t, err)
	assert.JSONEq(t, `{"values":[23.5,null,-60],"timestamp":1714555800250}`, string(data))

	var decoded telemetry.Sample
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sample.Values, decoded.Values)
	assert.True(t, decoded.Timestamp.Equal(ts))
}
