package websocket

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixchat/internal/delivery"
)

func nopHandler() FrameHandler {
	return FrameHandlerFunc(func(context.Context, []byte, delivery.Pusher) {})
}

func runHub(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nopHandler(), Options{})
	require.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.Equal(t, 8, hub.opts.MaxInflight)
	assert.Zero(t, hub.ClientCount())
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(nopHandler(), Options{})
	runHub(t, hub)

	client := NewClient(hub, nil)
	hub.Register(client)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	got, ok := hub.Get(client.ID())
	require.True(t, ok)
	assert.Same(t, client, got)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, ok = hub.Get(client.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, client.ctx.Err(), context.Canceled, "unregister cancels in-flight work")
	assert.ErrorIs(t, client.Push(delivery.OutboundResult{}), ErrClientClosed)
}

func TestHubClose(t *testing.T) {
	hub := NewHub(nopHandler(), Options{})
	runHub(t, hub)

	a, b := NewClient(hub, nil), NewClient(hub, nil)
	hub.Register(a)
	hub.Register(b)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Error(t, a.ctx.Err())
	assert.Error(t, b.ctx.Err())

	// registering after close does not block
	late := NewClient(hub, nil)
	hub.Register(late)
	assert.ErrorIs(t, late.Push(delivery.OutboundResult{}), ErrClientClosed)
	hub.Close()
}

func TestHubCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no list", nil, "http://evil.example", true},
		{"no origin header", []string{"https://mixchat.ru"}, "", true},
		{"listed", []string{"https://mixchat.ru"}, "https://mixchat.ru", true},
		{"wildcard", []string{"*"}, "http://any.example", true},
		{"not listed", []string{"https://mixchat.ru"}, "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(nopHandler(), Options{AllowedOrigins: tt.allowed})
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, hub.checkOrigin(r))
		})
	}
}
