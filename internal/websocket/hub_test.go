package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classpulse/pkg/contracts/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

type frame struct {
	messageType int
	data        []byte
}

type readResult struct {
	messageType int
	data        []byte
	err         error
}

// fakeConn records written frames and serves scripted reads.
type fakeConn struct {
	mu        sync.Mutex
	frames    []frame
	closed    bool
	deadlines int
	pong      func(string) error
	reads     chan readResult
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan readResult, 8)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	r, ok := <-f.reads
	if !ok {
		return 0, nil, net.ErrClosed
	}
	return r.messageType, r.data, r.err
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return net.ErrClosed
	}
	f.frames = append(f.frames, frame{messageType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) SetReadLimit(int64) {}

func (f *fakeConn) SetReadDeadline(time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadlines++
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pong = h
}

func (f *fakeConn) RemoteAddr() net.Addr { return fakeAddr("10.0.0.7:52100") }

func (f *fakeConn) textFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, fr := range f.frames {
		if fr.messageType == websocket.TextMessage {
			out = append(out, fr.data)
		}
	}
	return out
}

func (f *fakeConn) frameTypes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]int, len(f.frames))
	for i, fr := range f.frames {
		types[i] = fr.messageType
	}
	return types
}

func (f *fakeConn) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) pongHandler() func(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pong
}

func (f *fakeConn) readDeadlines() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadlines
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func connect(t *testing.T, hub *Hub, traceID string) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	client := newClient(hub, conn, traceID, testLogger())
	before := hub.ClientCount()
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == before+1 }, time.Second, 5*time.Millisecond)
	return client, conn
}

func decodeMessage(t *testing.T, raw []byte) events.WebSocketMessage {
	t.Helper()
	var msg events.WebSocketMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHub_WelcomeOnRegister(t *testing.T) {
	hub := startHub(t)
	client, conn := connect(t, hub, "trace-1")
	go client.WritePump()

	require.Eventually(t, func() bool { return len(conn.textFrames()) >= 1 }, time.Second, 5*time.Millisecond)

	msg := decodeMessage(t, conn.textFrames()[0])
	assert.Equal(t, events.MessageTypeConnect, msg.Type)
	assert.Equal(t, "trace-1", msg.TraceID)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Connected to ClassPulse", data["message"])
}

func TestHub_BroadcastRefreshReachesAllClients(t *testing.T) {
	hub := startHub(t)
	c1, conn1 := connect(t, hub, "")
	c2, conn2 := connect(t, hub, "")
	go c1.WritePump()
	go c2.WritePump()

	refreshedAt := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	hub.BroadcastRefresh(events.DataRefreshedEvent{
		Worksheets:  []string{"Class log", "Student data"},
		Failed:      []string{"Supalearn"},
		RefreshedAt: refreshedAt,
	}, "trace-refresh")

	for _, conn := range []*fakeConn{conn1, conn2} {
		require.Eventually(t, func() bool { return len(conn.textFrames()) >= 2 }, time.Second, 5*time.Millisecond)

		msg := decodeMessage(t, conn.textFrames()[1])
		assert.Equal(t, events.MessageTypeDataRefreshed, msg.Type)
		assert.Equal(t, "trace-refresh", msg.TraceID)

		raw, err := json.Marshal(msg.Data)
		require.NoError(t, err)
		var ev events.DataRefreshedEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, []string{"Class log", "Student data"}, ev.Worksheets)
		assert.Equal(t, []string{"Supalearn"}, ev.Failed)
		assert.True(t, ev.RefreshedAt.Equal(refreshedAt))
	}
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	hub := startHub(t)
	conn := newFakeConn()
	client := newClient(hub, conn, "", testLogger())
	client.send = make(chan []byte, 1)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// The welcome message fills the single slot, so the broadcast cannot
	// be queued and the client is dropped.
	hub.Broadcast(events.MessageTypeSystemStatus, map[string]string{"status": "healthy"})

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	m := hub.GetHubMetrics()
	assert.Equal(t, int64(1), m["messages_dropped"])
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub := startHub(t)
	client, conn := connect(t, hub, "")
	go client.WritePump()

	require.Eventually(t, func() bool { return len(conn.textFrames()) >= 1 }, time.Second, 5*time.Millisecond)

	hub.Stop()

	require.Eventually(t, func() bool { return conn.wasClosed() }, time.Second, 5*time.Millisecond)
	assert.Contains(t, conn.frameTypes(), websocket.CloseMessage)
	assert.Equal(t, 0, hub.ClientCount())

	frames := conn.textFrames()
	goodbye := decodeMessage(t, frames[len(frames)-1])
	assert.Equal(t, events.MessageTypeDisconnect, goodbye.Type, "shutdown notice precedes the close")

	m := hub.GetHubMetrics()
	assert.Equal(t, false, m["running"])

	// Second stop is a no-op.
	hub.Stop()
}

func TestHub_Metrics(t *testing.T) {
	hub := startHub(t)
	c1, conn1 := connect(t, hub, "")
	c2, conn2 := connect(t, hub, "")
	go c1.WritePump()
	go c2.WritePump()

	hub.Broadcast(events.MessageTypeSystemStatus, map[string]string{"status": "healthy"})

	for _, conn := range []*fakeConn{conn1, conn2} {
		require.Eventually(t, func() bool { return len(conn.textFrames()) >= 2 }, time.Second, 5*time.Millisecond)
	}

	m := hub.GetHubMetrics()
	assert.Equal(t, 2, m["active_clients"])
	assert.Equal(t, int64(2), m["total_connections"])
	assert.Equal(t, int64(2), m["messages_sent"])
	assert.Equal(t, true, m["running"])
}

func TestHub_BroadcastWithoutRunningHubDropsAfterBuffer(t *testing.T) {
	hub := NewHub(testLogger())

	for i := 0; i < broadcastBuffer+10; i++ {
		hub.Broadcast(events.MessageTypeSystemStatus, nil)
	}

	m := hub.GetHubMetrics()
	assert.Equal(t, int64(10), m["messages_dropped"])
}
