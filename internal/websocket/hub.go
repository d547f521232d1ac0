// Package websocket fans dataset events out to connected portal browsers.
// Traffic is one way: the server broadcasts, clients only answer pings.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"classpulse/internal/infrastructure"
	"classpulse/pkg/contracts/events"
)

const (
	// broadcastBuffer bounds how many pending broadcasts the hub holds
	// before it starts dropping them.
	broadcastBuffer = 256

	// metricsInterval is how often the hub logs its counters.
	metricsInterval = 5 * time.Minute
)

// Hub maintains the set of connected clients and delivers broadcasts to
// them. Start must be called before Register or any Broadcast method.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}

	mu      sync.RWMutex
	running bool

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	logger *slog.Logger
}

// NewHub creates a hub. A nil logger falls back to the default logger.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket_hub")),
	}
}

// Start launches the hub loops. Calling Start twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
	go h.reportMetrics()

	h.logger.Info("websocket hub started")
}

// Stop disconnects every client and ends the hub loops. Clients get a
// disconnect notice queued before their channel closes, so browsers can
// tell a shutdown from a dropped connection.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	goodbye, err := json.Marshal(envelope(events.MessageTypeDisconnect, map[string]string{
		"message": "Server shutting down",
	}, ""))

	h.mu.Lock()
	for client := range h.clients {
		if err == nil {
			select {
			case client.send <- goodbye:
			default:
			}
		}
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	h.logger.Info("websocket hub stopped")
}

// Register queues a client for registration with the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastRefresh notifies connected portals that the worksheet cache was
// rewarmed and any open session may be showing stale views.
func (h *Hub) BroadcastRefresh(event events.DataRefreshedEvent, traceID string) {
	h.broadcastJSON(envelope(events.MessageTypeDataRefreshed, event, traceID))
}

// Broadcast fans an arbitrary event out to every connected client.
func (h *Hub) Broadcast(msgType events.MessageType, data interface{}) {
	h.broadcastJSON(envelope(msgType, data, ""))
}

// GetHubMetrics returns a snapshot of the hub counters.
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"messages_dropped":  h.messagesDropped,
		"running":           h.running,
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.fanOut(message)
		case <-h.quit:
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.totalConnections++
	total := h.totalConnections
	active := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected",
		slog.String("remote_addr", client.RemoteAddr()),
		slog.String("trace_id", client.traceID),
		slog.Int("active_clients", active),
		slog.Int64("total_connections", total),
	)

	welcome := envelope(events.MessageTypeConnect, map[string]string{
		"message": "Connected to ClassPulse",
	}, client.traceID)
	if data, err := json.Marshal(welcome); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	active := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Info("client disconnected",
			slog.String("remote_addr", client.RemoteAddr()),
			slog.Int("active_clients", active),
		)
	}
}

// fanOut delivers one message to every client. A client whose send buffer
// is full is disconnected rather than allowed to stall the hub.
func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- message:
			h.messagesSent++
		default:
			delete(h.clients, client)
			close(client.send)
			h.messagesDropped++
			h.logger.Warn("client send buffer full, disconnecting",
				slog.String("remote_addr", client.RemoteAddr()))
		}
	}
}

func (h *Hub) broadcastJSON(msg events.WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message",
			slog.String("type", string(msg.Type)),
			slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.logger.Warn("broadcast buffer full, dropping message",
			slog.String("type", string(msg.Type)))
	}
}

func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.logger.Debug("hub metrics", slog.Any("metrics", h.GetHubMetrics()))
		case <-h.quit:
			return
		}
	}
}

func envelope(msgType events.MessageType, data interface{}, traceID string) events.WebSocketMessage {
	return events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}
}
