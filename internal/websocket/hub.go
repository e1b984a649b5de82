package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"registrydash/internal/infrastructure"
	"registrydash/pkg/contracts"
	"registrydash/pkg/contracts/events"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	// metrics may be nil
	metrics *infrastructure.BusinessMetrics

	totalConnections int64
	messagesSent     int64
	droppedClients   int64

	quit    chan struct{}
	running bool
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return NewHubWithMetrics(logger, nil)
}

// NewHubWithMetrics creates a hub that reports its client gauge to metrics.
func NewHubWithMetrics(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
	}
}

// Start runs the hub loop in a goroutine. It is a no-op when already running.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	ctx := client.context()

	h.mu.Lock()
	if h.isStopped() {
		h.mu.Unlock()
		close(client.send)
		return
	}
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++

	// The greeting is queued under the lock so Stop cannot close send first.
	status := events.SystemStatus{Status: "healthy", Version: contracts.Version, Clients: count}
	data, err := encodeMessage(events.MessageTypeSystemStatus, status, client.traceID)
	queued := false
	if err == nil {
		select {
		case client.send <- data:
			queued = true
		default:
		}
	}
	h.mu.Unlock()

	infrastructure.RecordWebSocketClients(ctx, h.metrics, 1)
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	switch {
	case err != nil:
		h.logger.ErrorContext(ctx, "Error marshaling status message", slog.String("error", err.Error()))
	case !queued:
		h.logger.WarnContext(ctx, "Failed to send status message - client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) isStopped() bool {
	select {
	case <-h.quit:
		return true
	default:
		return false
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	infrastructure.RecordWebSocketClients(ctx, h.metrics, -1)

	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))
}

func (h *Hub) fanOut(message []byte) {
	var dropped []*Client

	// Sends never block, so the lock is held for the whole pass and Stop
	// cannot close a channel underneath it.
	h.mu.Lock()
	total := len(h.clients)
	for client := range h.clients {
		select {
		case client.send <- message:
			h.messagesSent++
		default:
			delete(h.clients, client)
			close(client.send)
			h.droppedClients++
			dropped = append(dropped, client)
		}
	}
	h.mu.Unlock()

	for _, client := range dropped {
		ctx := client.context()
		infrastructure.RecordWebSocketClients(ctx, h.metrics, -1)
		h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
	}

	h.logger.Debug("Broadcast delivered",
		slog.Int("client_count", total),
		slog.Int("fail_count", len(dropped)),
		slog.Int("message_size", len(message)))
}

// Broadcast sends a typed message to every connected client.
func (h *Hub) Broadcast(ctx context.Context, messageType events.MessageType, data interface{}) {
	traceID := infrastructure.GetTraceID(ctx)
	payload, err := encodeMessage(messageType, data, traceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(messageType)))
		return
	}

	select {
	case h.broadcast <- payload:
	case <-h.quit:
	case <-ctx.Done():
		h.logger.WarnContext(ctx, "Broadcast abandoned",
			slog.String("message_type", string(messageType)),
			slog.String("error", ctx.Err().Error()))
	}
}

// BroadcastDataReloaded tells clients the cached dataset was replaced.
func (h *Hub) BroadcastDataReloaded(ctx context.Context, payload events.DataReloaded) {
	h.Broadcast(ctx, events.MessageTypeDataReloaded, payload)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		close(client.send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Stop gracefully stops the hub and closes every client's send channel.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.quit)

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		infrastructure.RecordWebSocketClients(context.Background(), h.metrics, -1)
	}
}

// Stats returns current hub counters
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"dropped_clients":   h.droppedClients,
	}
}

func encodeMessage(messageType events.MessageType, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      messageType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	})
}
