package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"registrydash/pkg/contracts/events"
)

// Connection is the subset of a gorilla connection the client pumps use.
// Tests substitute an in-memory implementation.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)

	// RemoteAddr returns the peer address as a string
	RemoteAddr() string
}

// HubInterface is what services depend on to notify dashboard clients.
type HubInterface interface {
	Broadcast(ctx context.Context, messageType events.MessageType, data interface{})
	BroadcastDataReloaded(ctx context.Context, payload events.DataReloaded)
	ClientCount() int
}

// gorillaConn adapts *websocket.Conn to Connection.
type gorillaConn struct {
	*websocket.Conn
}

// NewConnection wraps an upgraded gorilla connection.
func NewConnection(conn *websocket.Conn) Connection {
	return gorillaConn{Conn: conn}
}

func (c gorillaConn) RemoteAddr() string {
	if addr := c.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
