package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/scale"
	"github.com/HaxIOX/Portax/telemetry"
)

func TestStore_SeedValidation(t *testing.T) {
	_, err := NewStore(nil, scale.ModePerSeries)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))

	_, err = NewStore(telemetry.DefaultSeries(), "log")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))

	store, err := NewStore(telemetry.DefaultSeries(), scale.ModeShared)
	require.NoError(t, err)
	assert.Equal(t, scale.ModeShared, store.Mode())
}

func TestStore_SeriesIsolation(t *testing.T) {
	seed := telemetry.DefaultSeries()
	store, err := NewStore(seed, scale.ModePerSeries)
	require.NoError(t, err)

	// Mutating the seed after construction must not leak in.
	seed[0].Name = "mutated"
	assert.Equal(t, "Series 1", store.Series()[0].Name)

	// Mutating a read copy must not leak back.
	got := store.Series()
	got[1].Visible = false
	assert.True(t, store.Series()[1].Visible)
}

func TestStore_SetSeries(t *testing.T) {
	store, err := NewStore(telemetry.DefaultSeries(), scale.ModePerSeries)
	require.NoError(t, err)

	next := []telemetry.SeriesConfig{
		{Index: 0, Name: "Temperature", Keyword: "temp", Visible: true},
		{Index: 1, Name: "Pressure", Keyword: "pres", Visible: false},
	}
	require.NoError(t, store.SetSeries(next))

	got := store.Series()
	require.Len(t, got, 2)
	assert.Equal(t, "temp", got[0].Keyword)
	assert.False(t, got[1].Visible)

	// Invalid replacement is rejected and the old list survives.
	err = store.SetSeries([]telemetry.SeriesConfig{{Index: 3, Name: "X", Visible: true}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))
	assert.Len(t, store.Series(), 2)

	err = store.SetSeries(nil)
	require.Error(t, err)
	assert.Len(t, store.Series(), 2)
}

func TestStore_SetMode(t *testing.T) {
	store, err := NewStore(telemetry.DefaultSeries(), scale.ModePerSeries)
	require.NoError(t, err)

	require.NoError(t, store.SetMode(scale.ModeShared))
	assert.Equal(t, scale.ModeShared, store.Mode())

	err = store.SetMode("banana")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))
	assert.Equal(t, scale.ModeShared, store.Mode())
}

func TestStore_Snapshot(t *testing.T) {
	store, err := NewStore(telemetry.DefaultSeries(), scale.ModeShared)
	require.NoError(t, err)

	series, mode := store.Snapshot()
	assert.Len(t, series, telemetry.DefaultSeriesCount)
	assert.Equal(t, scale.ModeShared, mode)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store, err := NewStore(telemetry.DefaultSeries(), scale.ModePerSeries)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if n%2 == 0 {
					_ = store.SetMode(scale.ModeShared)
					_ = store.SetSeries(telemetry.DefaultSeries())
				} else {
					_ = store.Series()
					_, _ = store.Snapshot()
					_ = store.Mode()
				}
			}
		}(i)
	}
	wg.Wait()

	series, mode := store.Snapshot()
	assert.Len(t, series, telemetry.DefaultSeriesCount)
	assert.True(t, mode.Valid())
}
