package sse

import (
	"fmt"
	"log"
	"sync"
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
	SiteID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new SSE Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("[SSE] Client registered: id=%s user=%s site=%s (total: %d)", client.ID, client.UserID, client.SiteID, len(h.clients))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		log.Printf("[SSE] Client unregistered: id=%s (total: %d)", clientID, len(h.clients))
	}
}

// BroadcastSite sends an event to every client on a site.
func (h *Hub) BroadcastSite(siteID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.SiteID != siteID {
			continue
		}
		select {
		case client.Events <- event:
		default:
			log.Printf("[SSE] Client %s buffer full, skipping event", client.ID)
		}
	}
}

// SendToUser sends an event to one user's connections only.
func (h *Hub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID != userID {
			continue
		}
		select {
		case client.Events <- event:
		default:
			log.Printf("[SSE] Client %s buffer full, skipping user event", client.ID)
		}
	}
}

// PublishNCUpdate tells a site's connected clients that an NC changed.
func (h *Hub) PublishNCUpdate(siteID, ncID, event, status string) {
	data := fmt.Sprintf(`{"nc_id":"%s","event":"%s","status":"%s"}`, ncID, event, status)
	h.BroadcastSite(siteID, Event{
		EventType: "nc_update",
		Data:      data,
	})
}

// PublishUserNotification pushes an in-app notification to one user.
func (h *Hub) PublishUserNotification(userID, notificationID, title string) {
	data := fmt.Sprintf(`{"notification_id":"%s","title":"%s"}`, notificationID, title)
	h.SendToUser(userID, Event{
		EventType: "notification",
		Data:      data,
	})
}
