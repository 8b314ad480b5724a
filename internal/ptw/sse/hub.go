// Package sse fans permit events out to connected browsers over
// Server-Sent Events. Delivery is best effort: a slow client's buffer fills
// and the event is dropped, never blocking the mutation path.
package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates a new SSE Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Info("sse client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Info("sse client unregistered",
			zap.String("client_id", clientID),
			zap.Int("total", len(h.clients)))
	}
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, dropping event",
				zap.String("client_id", client.ID),
				zap.String("event", event.EventType))
		}
	}
}

// SendToUser sends an event to every connection of one user
func (h *Hub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Events <- event:
			default:
				h.logger.Warn("sse client buffer full, dropping user event",
					zap.String("client_id", client.ID),
					zap.String("event", event.EventType))
			}
		}
	}
}

// PublishPermitEvent broadcasts a permit lifecycle change.
func (h *Hub) PublishPermitEvent(permitID, action, status string) {
	data, _ := json.Marshal(map[string]string{
		"permit_id": permitID,
		"action":    action,
		"status":    status,
	})
	h.Broadcast(Event{EventType: "permit_update", Data: string(data)})
}

// PublishChildEvent broadcasts a child-record append (gas test, signature,
// handover and the rest).
func (h *Hub) PublishChildEvent(permitID, kind, recordID string) {
	data, _ := json.Marshal(map[string]string{
		"permit_id": permitID,
		"kind":      kind,
		"record_id": recordID,
	})
	h.Broadcast(Event{EventType: "permit_child_added", Data: string(data)})
}
