package websocket

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"classpulse/internal/config"
	"classpulse/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from a peer. Browsers only ever answer
	// pings, so anything larger is a misbehaving client.
	maxMessageSize = 512

	// sendBuffer is the per-client outbound queue.
	sendBuffer = 256
)

// Client is a single browser connection attached to the hub.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	traceID     string
	connectedAt time.Time

	pingPeriod time.Duration
	pongWait   time.Duration

	messagesSent     int64
	messagesReceived int64

	logger *slog.Logger
}

// NewClient wraps an upgraded connection for hub registration.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return NewClientWithTrace(hub, conn, "", nil)
}

// NewClientWithTrace carries the upgrade request's trace ID into the
// client's log records and welcome message.
func NewClientWithTrace(hub *Hub, conn *websocket.Conn, traceID string, logger *slog.Logger) *Client {
	return newClient(hub, NewConnectionWrapper(conn), traceID, logger)
}

func newClient(hub *Hub, conn Connection, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		traceID:     traceID,
		connectedAt: time.Now(),
		pingPeriod:  config.WebSocketPingPeriod,
		pongWait:    config.WebSocketPongWait,
		logger:      logger.With(slog.String("component", "websocket_client")),
	}
}

// RemoteAddr returns the peer address for log records.
func (c *Client) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// ReadPump consumes frames from the connection and tears the client down
// when the peer goes away. Inbound text frames are counted and dropped;
// the server never acts on them.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		c.logger.Debug("read pump stopped",
			slog.String("remote_addr", c.RemoteAddr()),
			slog.Int64("messages_received", c.messagesReceived),
			slog.Duration("connected", time.Since(c.connectedAt)),
		)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected close",
					slog.String("remote_addr", c.RemoteAddr()),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		c.messagesReceived++
	}
}

// WritePump delivers hub messages to the connection and keeps it alive
// with periodic pings. It is the only writer for the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug("write pump stopped",
			slog.String("remote_addr", c.RemoteAddr()),
			slog.Int64("messages_sent", c.messagesSent),
		)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("write failed",
					slog.String("remote_addr", c.RemoteAddr()),
					slog.String("error", err.Error()),
				)
				return
			}
			c.messagesSent++
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
