package realtime

import (
	"encoding/json"
	"sync"
)

// Event operations.
const (
	OpCreate = "create"
	OpDelete = "delete"
)

// Event describes a committed change to one key.
type Event struct {
	Op  string `json:"op"`
	Key int64  `json:"key"`
}

// Client represents a single change-feed subscriber.
// The network connection itself is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub fans out change events to every subscribed client.
type Hub struct {
	mu      sync.RWMutex
	clients map[Client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[Client]struct{})}
}

// Register adds a client.
func (h *Hub) Register(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes a client.
func (h *Hub) Unregister(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// Len returns the number of subscribed clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends ev to all clients. A client whose send fails is left for
// its handler to clean up.
func (h *Hub) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.Send(msg)
	}
}
