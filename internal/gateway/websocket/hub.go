package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"mixchat/pkg/logger"
)

// Hub tracks open connections. It holds no per-user state: every frame is
// served from the datastore.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once

	mu sync.RWMutex

	handler  FrameHandler
	opts     Options
	upgrader websocket.Upgrader
}

// NewHub creates a Hub that serves frames with handler.
func NewHub(handler FrameHandler, opts Options) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		handler:    handler,
		opts:       opts.withDefaults(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logger.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
	return false
}

// Run processes registrations until ctx is done or Close is called.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.opts.Metrics.ConnOpened()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client.id]
			delete(h.clients, client.id)
			h.mu.Unlock()
			if ok {
				client.shutdown()
				h.opts.Metrics.ConnClosed()
				logger.Info().Str("client_id", client.id).Msg("WebSocket client disconnected")
			}

		case <-ctx.Done():
			h.Close()
			h.closeAll()
			return

		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.shutdown()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.shutdown()
	}
}

// Get returns the connection with the given id.
func (h *Hub) Get(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the hub and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
		h.opts.Metrics.ConnClosed()
	}
	logger.Info().Int("clients", len(clients)).Msg("WebSocket hub closed")
}
