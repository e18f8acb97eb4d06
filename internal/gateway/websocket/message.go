// Package websocket serves the real-time endpoint: it keeps the registry of
// open connections and runs each inbound frame as its own unit of work.
package websocket

import (
	"context"
	"errors"
	"time"

	"mixchat/internal/delivery"
	"mixchat/internal/gateway/metrics"
)

// ErrClientClosed is returned when pushing to a connection that has gone away.
var ErrClientClosed = errors.New("websocket: client closed")

// ErrSendBufferFull is returned when the write pump cannot keep up.
var ErrSendBufferFull = errors.New("websocket: send buffer full")

// FrameHandler serves one inbound frame and pushes exactly one result.
type FrameHandler interface {
	Handle(ctx context.Context, frame []byte, push delivery.Pusher)
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, frame []byte, push delivery.Pusher)

// Handle calls f.
func (f FrameHandlerFunc) Handle(ctx context.Context, frame []byte, push delivery.Pusher) {
	f(ctx, frame, push)
}

// Options tunes per-connection behavior.
type Options struct {
	// AllowedOrigins lists accepted Origin headers; empty or "*" accepts all.
	AllowedOrigins []string
	// MaxInflight bounds concurrently running frames per connection.
	MaxInflight int
	// FramesPerSecond and Burst configure the per-connection frame limiter.
	// A zero rate disables limiting.
	FramesPerSecond float64
	Burst           int
	Metrics         *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.MaxInflight <= 0 {
		o.MaxInflight = 8
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	return o
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)
