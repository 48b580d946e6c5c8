// Package stream pushes price state changes to WebSocket clients.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mtlprog/airdrop/internal/domain"
	"github.com/mtlprog/airdrop/internal/metrics"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 8
)

// MessageTypeState is the type of every state message.
const MessageTypeState = "state"

// Message is a JSON message sent to WebSocket clients.
type Message struct {
	Type  string            `json:"type"`
	State domain.PriceState `json:"state"`
}

// StateReader returns the current price state.
type StateReader interface {
	State() domain.PriceState
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub manages WebSocket connections and broadcasts committed price states.
// A newly registered client first receives the store's current state.
type Hub struct {
	state      StateReader
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub(state StateReader) *Hub {
	return &Hub{
		state:      state,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.removeLocked(c)
			}
			h.mu.Unlock()
			slog.Info("stream: hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			// Queued broadcasts may already be dropped, so read the store directly.
			if initial := encode(h.state.State()); initial != nil {
				c.send <- initial
			}
			metrics.WebSocketClients.Inc()
			slog.Info("stream: client connected", "client", c.id, "total", total)

		case c := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slog.Warn("stream: client too slow, dropping", "client", c.id)
					h.removeLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.WebSocketClients.Dec()
	slog.Info("stream: client disconnected", "client", c.id, "total", len(h.clients))
}

// Broadcast queues st for every connected client without blocking the caller.
// Its signature matches price.Listener.
func (h *Hub) Broadcast(st domain.PriceState) {
	data := encode(st)
	if data == nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		slog.Warn("stream: broadcast buffer full, dropping state")
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("stream: upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go h.readPump(c)
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only goroutine writing to c.conn.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encode(st domain.PriceState) []byte {
	data, err := json.Marshal(Message{Type: MessageTypeState, State: st})
	if err != nil {
		slog.Error("stream: encoding state", "error", err)
		return nil
	}
	return data
}
