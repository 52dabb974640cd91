package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HaxIOX/Portax/pkg/timestamp"
	"github.com/HaxIOX/Portax/telemetry"
)

const (
	// broadcastInterval is the live-stream cadence. Staged lines and
	// samples wait at most this long before the next frame goes out.
	broadcastInterval = 50 * time.Millisecond

	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second

	// Stage capacities bound how much a slow broadcast can back up.
	// At typical serial rates 1024 lines is tens of seconds of slack;
	// past that the oldest entries are evicted.
	lineStageCapacity   = 1024
	sampleStageCapacity = 1024
)

// Frame types pushed to stream clients.
const (
	FrameWindow  = "window"
	FrameSamples = "samples"
	FrameLines   = "lines"
	FrameRanges  = "ranges"
)

// Frame is the envelope for every WebSocket message. Timestamp is unix
// milliseconds at send time. There are no sequence numbers or acks: the
// stream is best-effort and /api/window is the authoritative recovery
// path after a gap.
type Frame struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// client is one connected stream viewer.
type client struct {
	id          string
	conn        *websocket.Conn
	connectedAt time.Time
	closed      atomic.Bool
	closeOnce   sync.Once

	// gorilla connections forbid concurrent writers; every write to the
	// connection takes writeMu.
	writeMu sync.Mutex
}

func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Lines stages framed lines for the live stream. Registered as a
// pipeline line tap, so it runs on the flush goroutine and must not
// block; the stage buffer absorbs the handoff.
func (s *Server) Lines(lines []string) {
	if !s.running.Load() {
		return
	}
	for _, line := range lines {
		_ = s.lineStage.Write(line)
	}
}

// Samples stages extracted samples for the live stream. Registered as a
// pipeline sample tap; same non-blocking contract as Lines.
func (s *Server) Samples(batch []telemetry.Sample) {
	if !s.running.Load() {
		return
	}
	for _, sample := range batch {
		_ = s.sampleStage.Write(sample)
	}
}

// run is the stream pump. It owns the broadcast cadence and connection
// keepalive; socket writes happen here and in per-broadcast goroutines,
// never on the pipeline's flush goroutine.
func (s *Server) run(ctx context.Context, shutdown chan struct{}) {
	broadcast := time.NewTicker(broadcastInterval)
	defer broadcast.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown:
			return
		case <-broadcast.C:
			s.broadcastStaged()
		case <-ping.C:
			s.pingClients()
		}
	}
}

// broadcastStaged flushes the staging buffers to connected clients. With
// nobody watching the stages are discarded instead of broadcast, and
// range smoothing is left alone so it only advances for frames someone
// actually saw.
func (s *Server) broadcastStaged() {
	if s.clientCount() == 0 {
		s.lineStage.Clear()
		s.sampleStage.Clear()
		return
	}

	if lines := s.lineStage.ReadBatch(lineStageCapacity); len(lines) > 0 {
		s.broadcast(FrameLines, lines)
	}
	if samples := s.sampleStage.ReadBatch(sampleStageCapacity); len(samples) > 0 {
		s.broadcast(FrameSamples, samples)
		s.broadcastRanges()
	}
}

// broadcastRanges pushes current axis ranges to all clients. Settings
// handlers also call this so viewers re-scale on configuration changes
// without waiting for data.
func (s *Server) broadcastRanges() {
	if s.clientCount() == 0 {
		return
	}
	s.broadcast(FrameRanges, s.pipe.Ranges())
}

// broadcastWindow pushes a full window snapshot, used after clears so
// client plots reset together.
func (s *Server) broadcastWindow() {
	if s.clientCount() == 0 {
		return
	}
	window, _ := s.historyStore.Snapshot()
	s.broadcast(FrameWindow, window)
}

func encodeFrame(frameType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{
		Type:      frameType,
		Timestamp: timestamp.Now(),
		Payload:   body,
	})
}

// broadcast fans one frame out to every client concurrently. A client
// that cannot take the write within the deadline is disconnected rather
// than allowed to stall the stream.
func (s *Server) broadcast(frameType string, payload any) {
	data, err := encodeFrame(frameType, payload)
	if err != nil {
		s.errorCount.Add(1)
		s.logger.Warn("frame encoding failed", "type", frameType, "error", err)
		return
	}

	clients := s.clientSnapshot()
	if len(clients) == 0 {
		return
	}

	start := time.Now()
	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			if err := c.send(data); err != nil {
				s.errorCount.Add(1)
				s.logger.Debug("dropping stream client", "client_id", c.id, "error", err)
				s.removeClient(c)
			}
		}(c)
	}
	wg.Wait()

	s.framesSent.Add(uint64(len(clients)))
	s.bytesSent.Add(uint64(len(data) * len(clients)))
	if s.metrics != nil {
		s.metrics.framesSent.WithLabelValues(frameType).Add(float64(len(clients)))
		s.metrics.broadcastDuration.Observe(time.Since(start).Seconds())
	}
}

// handleWS upgrades the connection and registers the client. The stream
// is one-way: inbound messages are read only to surface disconnects and
// keep the connection alive.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.requestCount.Add(1)
	if s.metrics != nil {
		s.metrics.requestsTotal.WithLabelValues("ws").Inc()
	}
	s.touchActivity()

	if !s.running.Load() {
		http.Error(w, "gateway is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		s.errorCount.Add(1)
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := s.addClient(conn)
	s.logger.Info("stream client connected", "client_id", c.id, "remote", r.RemoteAddr)

	s.sendSnapshot(c)
	go s.readClient(c)
}

// sendSnapshot primes a new client with the current window and ranges so
// its first paint does not wait for live data.
func (s *Server) sendSnapshot(c *client) {
	window, _ := s.historyStore.Snapshot()
	frames := []struct {
		frameType string
		payload   any
	}{
		{FrameWindow, window},
		{FrameRanges, s.pipe.Ranges()},
	}

	for _, f := range frames {
		data, err := encodeFrame(f.frameType, f.payload)
		if err != nil {
			s.errorCount.Add(1)
			s.logger.Warn("snapshot encoding failed", "type", f.frameType, "error", err)
			return
		}
		if err := c.send(data); err != nil {
			s.removeClient(c)
			return
		}
		s.framesSent.Add(1)
		s.bytesSent.Add(uint64(len(data)))
		if s.metrics != nil {
			s.metrics.framesSent.WithLabelValues(f.frameType).Inc()
		}
	}
}

// readClient drains the connection until it closes. Reading is what
// delivers pong frames and surfaces disconnects.
func (s *Server) readClient(c *client) {
	defer s.removeClient(c)

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingClients probes every connection. A client that stops answering
// runs out its read deadline and the reader tears it down.
func (s *Server) pingClients() {
	for _, c := range s.clientSnapshot() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			s.errorCount.Add(1)
			s.removeClient(c)
		}
	}
}

func (s *Server) addClient(conn *websocket.Conn) *client {
	c := &client{
		id:          uuid.New().String(),
		conn:        conn,
		connectedAt: time.Now(),
	}

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.clientsMu.Unlock()

	if s.metrics != nil {
		s.metrics.clientsConnected.Set(float64(count))
	}
	return c
}

// removeClient disconnects a client exactly once, no matter how many
// paths (send failure, read error, shutdown) race to it.
func (s *Server) removeClient(c *client) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		s.clientsMu.Lock()
		delete(s.clients, c)
		count := len(s.clients)
		s.clientsMu.Unlock()

		if s.metrics != nil {
			s.metrics.clientsConnected.Set(float64(count))
		}
		_ = c.conn.Close()
		s.logger.Info("stream client disconnected",
			"client_id", c.id, "connected_for", time.Since(c.connectedAt))
	})
}

func (s *Server) closeAllClients() {
	for _, c := range s.clientSnapshot() {
		s.removeClient(c)
	}
}

func (s *Server) clientSnapshot() []*client {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		if !c.closed.Load() {
			clients = append(clients, c)
		}
	}
	return clients
}

func (s *Server) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
