package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The feed is consumed by the simulation's own tooling.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub broadcasts completed decisions to websocket subscribers.
// Slow or dead subscribers are dropped rather than blocking the decide
// path.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan any
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan any)}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade")
		return
	}

	out := make(chan any, 16)
	h.mu.Lock()
	h.clients[conn] = out
	h.mu.Unlock()

	go h.writeLoop(conn, out)

	// Drain (and ignore) inbound frames so pings and close frames are
	// processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(conn)
}

func (h *Hub) writeLoop(conn *websocket.Conn, out <-chan any) {
	for msg := range out {
		if err := conn.WriteJSON(msg); err != nil {
			h.drop(conn)
			return
		}
	}
}

// Broadcast queues msg for every subscriber, dropping any whose buffer is
// full.
func (h *Hub) Broadcast(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, out := range h.clients {
		select {
		case out <- msg:
		default:
			delete(h.clients, conn)
			close(out)
			_ = conn.Close()
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if out, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(out)
	}
	_ = conn.Close()
}
