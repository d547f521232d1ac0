package websocket

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePump_DeliversMessages(t *testing.T) {
	conn := newFakeConn()
	c := newClient(nil, conn, "", testLogger())
	go c.WritePump()

	c.send <- []byte(`{"type":"system:status"}`)

	require.Eventually(t, func() bool { return len(conn.textFrames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, `{"type":"system:status"}`, string(conn.textFrames()[0]))

	// Closing the send channel ends the pump with a close frame.
	close(c.send)
	require.Eventually(t, func() bool { return conn.wasClosed() }, time.Second, 5*time.Millisecond)
	assert.Contains(t, conn.frameTypes(), websocket.CloseMessage)
}

func TestWritePump_SendsPings(t *testing.T) {
	conn := newFakeConn()
	c := newClient(nil, conn, "", testLogger())
	c.pingPeriod = 10 * time.Millisecond
	go c.WritePump()

	require.Eventually(t, func() bool {
		for _, ft := range conn.frameTypes() {
			if ft == websocket.PingMessage {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	close(c.send)
	require.Eventually(t, func() bool { return conn.wasClosed() }, time.Second, 5*time.Millisecond)
}

func TestReadPump_UnregistersOnReadError(t *testing.T) {
	hub := startHub(t)
	client, conn := connect(t, hub, "")
	go client.ReadPump()

	conn.reads <- readResult{messageType: websocket.TextMessage, data: []byte("hello")}
	close(conn.reads)

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, conn.wasClosed())
	assert.Equal(t, int64(1), client.messagesReceived)
}

func TestReadPump_PongRefreshesDeadline(t *testing.T) {
	hub := startHub(t)
	client, conn := connect(t, hub, "")
	go client.ReadPump()

	require.Eventually(t, func() bool { return conn.pongHandler() != nil }, time.Second, 5*time.Millisecond)

	before := conn.readDeadlines()
	require.NoError(t, conn.pongHandler()(""))
	assert.Greater(t, conn.readDeadlines(), before)

	close(conn.reads)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClient_RemoteAddr(t *testing.T) {
	c := newClient(nil, newFakeConn(), "", testLogger())
	assert.Equal(t, "10.0.0.7:52100", c.RemoteAddr())
}
