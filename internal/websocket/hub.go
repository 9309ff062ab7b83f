package websocket

import (
	"encoding/json"
	"log"
	gosync "sync"

	"github.com/beizuri/posedge/internal/sync"
)

// Hub maintains the set of connected operator UIs and pushes sync
// progress to them
type Hub struct {
	// Registered clients map: ClientID -> Client
	clients map[string]*Client

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Outbound messages fanned out to every client
	broadcast chan []byte

	// Mutex for thread-safe access to clients map
	mu gosync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// A reconnecting client replaces its old connection
			if old, ok := h.clients[client.ClientID]; ok {
				close(old.send)
			}
			h.clients[client.ClientID] = client
			log.Printf("📱 UI connected: %s", client.ClientID)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ClientID]; ok {
				delete(h.clients, client.ClientID)
				close(client.send)
				log.Printf("📴 UI disconnected: %s", client.ClientID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full or client dead, drop for this client
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast fans a message out to all connected clients
func (h *Hub) Broadcast(message interface{}) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	select {
	case h.broadcast <- jsonMsg:
	default:
		// No listeners draining the hub, drop instead of blocking
	}
}

// syncEventMessage is the envelope pushed to UIs for sync progress
type syncEventMessage struct {
	Type  string     `json:"type"`
	Event sync.Event `json:"event"`
}

// Notify implements sync.Notifier: every ledger-worthy sync step lands on
// connected UIs as it happens. Never blocks the sync loop.
func (h *Hub) Notify(e sync.Event) {
	h.Broadcast(syncEventMessage{Type: "SYNC_EVENT", Event: e})
}
