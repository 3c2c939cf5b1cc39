// Package hub fans live telemetry frames out to connected dashboard clients.
package hub

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/line-kiosk/backend/internal/observability"
)

// Hub maintains the set of subscribed dashboard clients and broadcasts
// telemetry frames to them. Delivery is best-effort, at most once per frame:
// a subscriber with a full send buffer is dropped rather than allowed to
// stall the rest.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	metrics    *observability.Metrics
}

// NewHub creates a hub. Call Run in a goroutine to start it.
func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    metrics,
	}
}

// Run processes registration and broadcast events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.DashboardClients.Set(float64(count))
			fmt.Printf("[TelemetryHub] Client subscribed (%d total)\n", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.DashboardClients.Set(float64(count))
			fmt.Printf("[TelemetryHub] Client unsubscribed (%d total)\n", count)

		case frame := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Slow consumer: drop it rather than block the feed.
					fmt.Println("[TelemetryHub] Client send buffer full, removing")
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.metrics.DashboardClients.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

// Stop terminates the Run loop.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast queues a frame for delivery to all subscribers.
func (h *Hub) Broadcast(frame []byte) {
	select {
	case h.broadcast <- frame:
	case <-h.done:
	}
}

// Subscribe registers an upgraded connection and runs its pumps. Blocks
// until the peer disconnects.
func (h *Hub) Subscribe(conn *websocket.Conn) {
	client := newClient(h, conn)
	h.register <- client
	go client.writePump()
	client.readPump()
}
