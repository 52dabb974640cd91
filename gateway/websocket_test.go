package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaxIOX/Portax/pipeline"
	"github.com/HaxIOX/Portax/scale"
	"github.com/HaxIOX/Portax/telemetry"
)

func dialWS(t *testing.T, port int) *websocket.Conn {
	t.Helper()

	url := fmt.Sprintf("ws://127.0.0.1:%d/ws", port)
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		var err error
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

// awaitFrame reads until a frame of the wanted type arrives, skipping
// interleaved frames of other types.
func awaitFrame(t *testing.T, conn *websocket.Conn, frameType string) Frame {
	t.Helper()

	for i := 0; i < 50; i++ {
		frame := readFrame(t, conn)
		if frame.Type == frameType {
			return frame
		}
	}
	t.Fatalf("no %q frame arrived", frameType)
	return Frame{}
}

// drainSnapshot consumes the window and ranges frames every new client
// receives. Returning from here guarantees the server has registered the
// client.
func drainSnapshot(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	assert.Equal(t, FrameWindow, readFrame(t, conn).Type)
	assert.Equal(t, FrameRanges, readFrame(t, conn).Type)
}

func startRig(t *testing.T, port int) *rig {
	t.Helper()

	r := newRig(t, func(d *ServerDeps) { d.Config.Port = port })
	require.NoError(t, r.srv.Start(context.Background()))
	t.Cleanup(func() { _ = r.srv.Stop(2 * time.Second) })
	return r
}

func TestWS_SnapshotOnConnect(t *testing.T) {
	r := startRig(t, 18463)
	r.seedSamples(t, 2)

	conn := dialWS(t, 18463)

	frame := readFrame(t, conn)
	require.Equal(t, FrameWindow, frame.Type)
	assert.Greater(t, frame.Timestamp, int64(0))

	var window []telemetry.Sample
	require.NoError(t, json.Unmarshal(frame.Payload, &window))
	require.Len(t, window, 2)
	assert.InDelta(t, 20.0, window[0].Values[0].Float64, 1e-9)

	frame = readFrame(t, conn)
	require.Equal(t, FrameRanges, frame.Type)

	var set pipeline.RangeSet
	require.NoError(t, json.Unmarshal(frame.Payload, &set))
	assert.Equal(t, scale.ModePerSeries, set.Mode)
	require.Len(t, set.PerSeries, telemetry.DefaultSeriesCount)
	assert.True(t, set.PerSeries[0].Defined)
	assert.False(t, set.PerSeries[2].Defined, "series with no data has no range")
}

func TestWS_StreamsLinesAndSamples(t *testing.T) {
	r := startRig(t, 18464)
	conn := dialWS(t, 18464)
	drainSnapshot(t, conn)

	r.srv.Lines([]string{"20.1 -4.5", "20.2 -4.4"})

	frame := awaitFrame(t, conn, FrameLines)
	var lines []string
	require.NoError(t, json.Unmarshal(frame.Payload, &lines))
	assert.Equal(t, []string{"20.1 -4.5", "20.2 -4.4"}, lines)

	r.srv.Samples([]telemetry.Sample{telemetry.NewSample(
		[]telemetry.Value{telemetry.NewValue(20.1), telemetry.NewValue(-4.5), telemetry.Undefined()},
		time.Now(),
	)})

	frame = awaitFrame(t, conn, FrameSamples)
	var samples []telemetry.Sample
	require.NoError(t, json.Unmarshal(frame.Payload, &samples))
	require.Len(t, samples, 1)
	assert.InDelta(t, 20.1, samples[0].Values[0].Float64, 1e-9)
	assert.False(t, samples[0].Values[2].Defined)

	// Sample frames are chased by fresh ranges.
	awaitFrame(t, conn, FrameRanges)
}

func TestWS_TapsNoopWhenStopped(t *testing.T) {
	r := newRig(t, nil)

	r.srv.Lines([]string{"dropped"})
	r.srv.Samples([]telemetry.Sample{telemetry.NewSample(
		[]telemetry.Value{telemetry.NewValue(1)}, time.Now(),
	)})

	assert.Equal(t, 0, r.srv.lineStage.Size())
	assert.Equal(t, 0, r.srv.sampleStage.Size())
}

func TestWS_StagesDiscardedWithoutClients(t *testing.T) {
	r := startRig(t, 18465)

	r.srv.Lines([]string{"nobody watching"})
	require.Eventually(t, func() bool {
		return r.srv.lineStage.Size() == 0
	}, time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 0, r.srv.framesSent.Load(),
		"no frames go out with no clients connected")
}

func TestWS_MultipleClients(t *testing.T) {
	r := startRig(t, 18466)

	connA := dialWS(t, 18466)
	drainSnapshot(t, connA)
	connB := dialWS(t, 18466)
	drainSnapshot(t, connB)

	require.Equal(t, 2, r.srv.clientCount())

	r.srv.Lines([]string{"fan out"})
	for _, conn := range []*websocket.Conn{connA, connB} {
		frame := awaitFrame(t, conn, FrameLines)
		var lines []string
		require.NoError(t, json.Unmarshal(frame.Payload, &lines))
		assert.Equal(t, []string{"fan out"}, lines)
	}

	require.NoError(t, connB.Close())
	require.Eventually(t, func() bool {
		return r.srv.clientCount() == 1
	}, 2*time.Second, 20*time.Millisecond, "closed client is reaped")
}

func TestWS_StopDisconnectsClients(t *testing.T) {
	r := startRig(t, 18467)
	conn := dialWS(t, 18467)
	drainSnapshot(t, conn)

	require.NoError(t, r.srv.Stop(2*time.Second))
	assert.Equal(t, 0, r.srv.clientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "server-side close must end the stream")
}

func TestWS_SeriesUpdatePushesRanges(t *testing.T) {
	r := startRig(t, 18468)
	conn := dialWS(t, 18468)
	drainSnapshot(t, conn)

	replacement := []telemetry.SeriesConfig{
		{Index: 0, Name: "Flow", Keyword: "flow", Visible: true},
	}
	body, err := json.Marshal(replacement)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut,
		"http://127.0.0.1:18468/api/series", bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frame := awaitFrame(t, conn, FrameRanges)
	var set pipeline.RangeSet
	require.NoError(t, json.Unmarshal(frame.Payload, &set))
	assert.Len(t, set.PerSeries, 1, "ranges follow the new series layout")

	assert.Equal(t, replacement, r.settings.Series())
}

func TestWS_ClearPushesEmptyWindow(t *testing.T) {
	r := startRig(t, 18469)
	r.seedSamples(t, 3)

	conn := dialWS(t, 18469)
	drainSnapshot(t, conn)

	req, err := http.NewRequest(http.MethodPost, "http://127.0.0.1:18469/api/clear", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	frame := awaitFrame(t, conn, FrameWindow)
	var window []telemetry.Sample
	require.NoError(t, json.Unmarshal(frame.Payload, &window))
	assert.Empty(t, window)
}
