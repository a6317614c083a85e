package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is the websocket envelope format.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Connection represents one live websocket connection.
type Connection struct {
	ID     string
	UserID string
	Name   string
	Send   chan []byte
}

// Hub tracks connections and their channel subscriptions and fans
// events out to them. Delivery happens synchronously under the hub
// lock, so events queued by one logical operation reach every send
// buffer in the order they were emitted.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	channels map[string]map[string]*Connection // channel -> connection id -> conn
	byConn   map[string]map[string]struct{}    // connection id -> channels
}

func NewHub() *Hub {
	return &Hub{
		conns:    make(map[string]*Connection),
		channels: make(map[string]map[string]*Connection),
		byConn:   make(map[string]map[string]struct{}),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[conn.ID] = conn
	h.byConn[conn.ID] = make(map[string]struct{})
	slog.Info("connection registered", "conn_id", conn.ID, "user_id", conn.UserID)
}

// Unregister drops a connection and all its subscriptions.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	for channel := range h.byConn[connID] {
		if conns, ok := h.channels[channel]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.byConn, connID)
	delete(h.conns, connID)
	close(conn.Send)
	slog.Info("connection unregistered", "conn_id", connID)
}

// Subscribe adds the connection to a channel.
func (h *Hub) Subscribe(channel, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[string]*Connection)
	}
	h.channels[channel][connID] = conn
	h.byConn[connID][channel] = struct{}{}
}

// Unsubscribe removes the connection from a channel.
func (h *Hub) Unsubscribe(channel, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.channels[channel]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.channels, channel)
		}
	}
	if channels, ok := h.byConn[connID]; ok {
		delete(channels, channel)
	}
}

// Emit delivers an event to every connection on the channel.
func (h *Hub) Emit(channel, event string, payload interface{}) {
	h.EmitExcept(channel, event, payload, "")
}

// EmitExcept delivers an event to the channel, skipping one connection.
func (h *Hub) EmitExcept(channel, event string, payload interface{}, exceptConnID string) {
	data, err := encode(event, payload)
	if err != nil {
		slog.Error("failed to encode event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, conn := range h.channels[channel] {
		if connID == exceptConnID {
			continue
		}
		send(conn, data)
	}
}

// EmitTo delivers an event to a single connection.
func (h *Hub) EmitTo(connID, event string, payload interface{}) {
	data, err := encode(event, payload)
	if err != nil {
		slog.Error("failed to encode event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if conn, ok := h.conns[connID]; ok {
		send(conn, data)
	}
}

func encode(event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: event, Payload: raw})
}

func send(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
	default:
		// Slow consumer; drop rather than block the hub.
		slog.Warn("send buffer full, dropping event", "conn_id", conn.ID)
	}
}
