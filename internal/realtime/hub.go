// Package realtime pushes anomaly events to connected operator consoles
// over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/leaftrace/anomalyd/internal/events"
	"github.com/leaftrace/anomalyd/internal/logging"
)

const broadcastBuffer = 256

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	upgrader websocket.Upgrader
	count    atomic.Int64
	dropped  atomic.Int64
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS and JWT middleware guard the route
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.count.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			logging.Debugf("Websocket client registered: %s", client.remoteAddr())

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logging.Debugf("Websocket client unregistered: %s", client.remoteAddr())
			}
			h.count.Store(int64(len(h.clients)))

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					logging.Warnf("Websocket client %s send buffer full, removing", client.remoteAddr())
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Publish implements events.Publisher. Events are dropped when the
// broadcast buffer is full.
func (h *Hub) Publish(_ context.Context, evt events.Event) {
	message, err := json.Marshal(evt)
	if err != nil {
		logging.Errorf("Error marshalling event for broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.dropped.Inc()
		logging.Warnf("Websocket broadcast buffer full, dropping %s for anomaly %s", evt.Type, evt.AnomalyID)
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Dropped returns the number of events discarded because the hub was saturated
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and streams events to the connection
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnf("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(h, conn)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
