// Package events contains the WebSocket message contracts pushed to
// dashboard clients.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Dataset lifecycle
	MessageTypeDataReloaded MessageType = "data:reloaded"

	// System messages
	MessageTypeSystemStatus MessageType = "system:status"

	// Connection messages
	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// DataReloaded is the payload broadcast after the cached table is replaced.
type DataReloaded struct {
	Status string `json:"status"` // ok|error
	Rows   int    `json:"rows"`
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
}

// SystemStatus is the payload sent to a client right after it connects.
type SystemStatus struct {
	Status  string `json:"status"` // healthy|degraded
	Version string `json:"version"`
	Clients int    `json:"clients"`
}
