package nats

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaxIOX/Portax/config"
	"github.com/HaxIOX/Portax/natsclient"
	"github.com/HaxIOX/Portax/telemetry"
)

type recorder struct {
	mu       sync.Mutex
	messages [][]byte
}

func (r *recorder) handle(_ context.Context, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, append([]byte(nil), data...))
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recorder) all() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.messages...)
}

func TestIntegration_MirrorsLinesAndSamples(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := natsclient.NewTestClient(t)
	ctx := context.Background()

	lines := &recorder{}
	samples := &recorder{}
	require.NoError(t, tc.Client.Subscribe(ctx, "bench.lines", lines.handle))
	require.NoError(t, tc.Client.Subscribe(ctx, "bench.samples", samples.handle))

	out, err := NewOutput(OutputDeps{
		Config: config.NATSOutputConfig{Enabled: true, SubjectPrefix: "bench"},
		Client: tc.Client,
	})
	require.NoError(t, err)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start(ctx))
	defer func() { _ = out.Stop(5 * time.Second) }()

	now := time.Now()
	out.Lines([]string{"temp: 20.1", "temp: 20.2"})
	out.Samples([]telemetry.Sample{
		telemetry.NewSample([]telemetry.Value{telemetry.NewValue(20.1), telemetry.Undefined()}, now),
	})

	require.Eventually(t, func() bool {
		return lines.count() == 2 && samples.count() == 1
	}, 5*time.Second, 50*time.Millisecond)

	got := lines.all()
	assert.Equal(t, "temp: 20.1", string(got[0]))
	assert.Equal(t, "temp: 20.2", string(got[1]))

	var batch []telemetry.Sample
	require.NoError(t, json.Unmarshal(samples.all()[0], &batch))
	require.Len(t, batch, 1)
	require.Len(t, batch[0].Values, 2)
	assert.True(t, batch[0].Values[0].Defined)
	assert.InDelta(t, 20.1, batch[0].Values[0].Float64, 1e-9)
	assert.False(t, batch[0].Values[1].Defined, "undefined readings survive the wire")
	assert.WithinDuration(t, now, batch[0].Timestamp, time.Second)
}

func TestIntegration_StopDrainsStagedItems(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tc := natsclient.NewTestClient(t)
	ctx := context.Background()

	lines := &recorder{}
	require.NoError(t, tc.Client.Subscribe(ctx, "portax.lines", lines.handle))

	out, err := NewOutput(OutputDeps{Client: tc.Client})
	require.NoError(t, err)
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start(ctx))

	// Stop immediately after staging; the shutdown path publishes what is
	// already buffered.
	out.Lines([]string{"parting line"})
	require.NoError(t, out.Stop(5*time.Second))

	assert.Eventually(t, func() bool { return lines.count() == 1 },
		5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "parting line", string(lines.all()[0]))
}
