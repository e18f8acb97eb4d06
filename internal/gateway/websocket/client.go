package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"mixchat/internal/apperr"
	"mixchat/internal/delivery"
	"mixchat/pkg/logger"
)

// Client is one open WebSocket connection.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	id          string
	connectedAt time.Time

	// ctx is cancelled when the connection closes; every in-flight frame
	// derives from it.
	ctx    context.Context
	cancel context.CancelFunc

	limiter *rate.Limiter
	slots   chan struct{}
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewClient creates a client bound to hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          uuid.New().String(),
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		slots:       make(chan struct{}, hub.opts.MaxInflight),
	}
	if hub.opts.FramesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(hub.opts.FramesPerSecond), hub.opts.Burst)
	}
	return c
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// ConnectedAt returns when the connection was accepted.
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// Push enqueues one result for the write pump. It fails once the client
// has closed or when its buffer is full.
func (c *Client) Push(res delivery.OutboundResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		logger.Debug().Str("client_id", c.id).Str("result", res.Code()).Msg("Push to closed client dropped")
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		logger.Warn().Str("client_id", c.id).Msg("Send buffer full, result dropped")
		return ErrSendBufferFull
	}
}

// shutdown cancels in-flight work and closes the send channel.
func (c *Client) shutdown() {
	c.once.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// dispatch runs one frame on its own goroutine. It never blocks the read
// pump: a frame arriving while every slot is taken is answered with busy.
func (c *Client) dispatch(frame []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.reject(apperr.New(apperr.KindRateLimited, "too many frames"))
		return
	}
	if c.ctx.Err() != nil {
		return
	}

	select {
	case c.slots <- struct{}{}:
	default:
		c.reject(apperr.New(apperr.KindBusy, "too many frames in flight"))
		return
	}

	c.wg.Add(1)
	go func() {
		defer func() {
			<-c.slots
			c.wg.Done()
		}()
		c.hub.handler.Handle(c.ctx, frame, c.Push)
	}()
}

func (c *Client) reject(err *apperr.Error) {
	c.hub.opts.Metrics.ObserveFrame("", string(err.Kind), 0)
	_ = c.Push(delivery.Rejected(err))
}

// readPump reads frames until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.wg.Wait()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			return
		}
		logger.Debug().Str("client_id", c.id).Int("bytes", len(frame)).Msg("Received WebSocket frame")
		c.dispatch(frame)
	}
}

// writePump serializes writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error().Err(err).Str("client_id", c.id).Msg("WebSocket write error")
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

// ServeWs upgrades the request and starts the connection's pumps.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(hub, conn)
	hub.Register(client)

	go client.writePump()
	go client.readPump()
}
