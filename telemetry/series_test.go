package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/telemetry"
)

func TestSeriesConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      telemetry.SeriesConfig
		expectError bool
	}{
		{
			name:   "valid positional series",
			config: telemetry.SeriesConfig{Index: 0, Name: "Series 1", Visible: true},
		},
		{
			name:   "valid keyword series",
			config: telemetry.SeriesConfig{Index: 2, Name: "Temperature", Keyword: "temp", Visible: true},
		},
		{
			name:        "negative index",
			config:      telemetry.SeriesConfig{Index: -1, Name: "Broken"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsInvalid(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSeries(t *testing.T) {
	t.Run("empty list rejected", func(t *testing.T) {
		err := telemetry.ValidateSeries(nil)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsInvalid(err))
	})

	t.Run("index must match position", func(t *testing.T) {
		series := []telemetry.SeriesConfig{
			{Index: 0, Name: "A", Visible: true},
			{Index: 2, Name: "B", Visible: true},
		}
		err := telemetry.ValidateSeries(series)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "position 1")
	})

	t.Run("default series valid", func(t *testing.T) {
		assert.NoError(t, telemetry.ValidateSeries(telemetry.DefaultSeries()))
	})
}

func TestDefaultSeries(t *testing.T) {
	series := telemetry.DefaultSeries()

	require.Len(t, series, telemetry.DefaultSeriesCount)
	for i, s := range series {
		assert.Equal(t, i, s.Index)
		assert.True(t, s.Visible)
		assert.Empty(t, s.Keyword)
		assert.NotEmpty(t, s.Name)
	}
	assert.Equal(t, "Series 1", series[0].Name)
	assert.Equal(t, "Series 4", series[3].Name)
}
