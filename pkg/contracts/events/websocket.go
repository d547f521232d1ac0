// Package events defines the wire contracts the portals broadcast to
// their browser clients over WebSocket.
package events

import (
	"time"
)

// MessageType discriminates broadcast messages.
type MessageType string

const (
	// MessageTypeDataRefreshed follows a worksheet cache refresh.
	MessageTypeDataRefreshed MessageType = "data:refreshed"

	// MessageTypeSystemStatus carries ad-hoc status broadcasts.
	MessageTypeSystemStatus MessageType = "system:status"

	// MessageTypeConnect welcomes a new client; MessageTypeDisconnect
	// warns connected clients of a server shutdown.
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
)

// BaseMessage carries the envelope fields every broadcast shares.
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage is the envelope plus the type-specific payload.
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// DataRefreshedEvent is broadcast after the worksheet cache is cleared and
// rewarmed, so open portal sessions know their views may be stale.
type DataRefreshedEvent struct {
	Worksheets  []string  `json:"worksheets"`
	Failed      []string  `json:"failed,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}
