// Package stream pushes live scan state to attached UIs over websockets
// and serves the small status/control HTTP API.
package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ouva/dermascan/internal/scan"
)

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	lastStatus scan.Status
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Publish implements scan.Publisher: every loop snapshot becomes a hub
// event. The event type mirrors what changed so thin clients can filter.
// A finished classification stays in the snapshot until the next dispatch,
// so the classification event fires only on the status transition; the
// frame updates that follow stream as plain score updates.
func (h *Hub) Publish(snap scan.Snapshot) {
	h.mu.Lock()
	prev := h.lastStatus
	h.lastStatus = snap.Classification
	h.mu.Unlock()

	eventType := EventScoresUpdated
	switch {
	case snap.State == scan.StateStopped:
		eventType = EventSessionStopped
	case snap.Classification != prev &&
		(snap.Classification == scan.StatusDone || snap.Classification == scan.StatusFailed):
		eventType = EventClassification
	}
	h.Broadcast(eventType, snap)
}

func (h *Hub) Broadcast(eventType EventType, data interface{}) {
	event := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- event:
	default:
		// A full broadcast queue means clients lag far behind the frame
		// rate; dropping the event is better than stalling the loop.
	}
}

func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) broadcastEvent(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	message, err := json.Marshal(event)
	if err != nil {
		return
	}

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}
