package websocket

import (
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Connection abstracts the subset of *websocket.Conn the client pumps use,
// so tests can drive a client without a network socket.
type Connection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
}

// ConnectionWrapper adapts a gorilla *websocket.Conn to the Connection
// interface.
type ConnectionWrapper struct {
	conn *websocket.Conn
}

// NewConnectionWrapper wraps an upgraded connection.
func NewConnectionWrapper(conn *websocket.Conn) *ConnectionWrapper {
	return &ConnectionWrapper{conn: conn}
}

func (w *ConnectionWrapper) ReadMessage() (int, []byte, error) {
	return w.conn.ReadMessage()
}

func (w *ConnectionWrapper) WriteMessage(messageType int, data []byte) error {
	return w.conn.WriteMessage(messageType, data)
}

func (w *ConnectionWrapper) Close() error {
	return w.conn.Close()
}

func (w *ConnectionWrapper) SetReadLimit(limit int64) {
	w.conn.SetReadLimit(limit)
}

func (w *ConnectionWrapper) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

func (w *ConnectionWrapper) SetWriteDeadline(t time.Time) error {
	return w.conn.SetWriteDeadline(t)
}

func (w *ConnectionWrapper) SetPongHandler(h func(appData string) error) {
	w.conn.SetPongHandler(h)
}

func (w *ConnectionWrapper) RemoteAddr() net.Addr {
	return w.conn.RemoteAddr()
}
