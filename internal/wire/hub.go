package wire

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/duskward/narrator/internal/npcmove"
)

// Hub accepts inbound websocket connections from the external rendering
// process and fans every [npcmove.Command] out to all of them. The core
// assumes a single host and, typically, a single connected renderer, but
// Hub tolerates zero or several without special-casing either.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

// NewHub returns an empty [Hub].
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// Handler upgrades the request to a websocket connection and registers it
// with the hub until the client disconnects or ctx is done.
func (h *Hub) Handler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		h.register(conn)
		defer h.unregister(conn)

		// The renderer never sends data we act on; read until it closes or
		// ctx is cancelled, discarding anything received.
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Broadcast encodes cmd and writes it to every connected renderer. A
// write failure drops that connection from the hub but does not abort the
// broadcast to the others.
func (h *Hub) Broadcast(ctx context.Context, cmd npcmove.Command) error {
	payload, err := json.Marshal(encode(cmd))
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, payload); err != nil {
			h.unregister(c)
		}
	}
	return nil
}

// Count reports the number of currently connected renderer clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
