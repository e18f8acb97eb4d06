package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixchat/internal/apperr"
	"mixchat/internal/config"
	"mixchat/internal/delivery"
	"mixchat/internal/gateway/metrics"
	"mixchat/internal/gateway/websocket"
	"mixchat/internal/routes"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Gateway.Host = "127.0.0.1"
	cfg.Gateway.Port = 0
	return cfg
}

func echoFrames() websocket.FrameHandler {
	return websocket.FrameHandlerFunc(func(_ context.Context, frame []byte, push delivery.Pusher) {
		_ = push(delivery.Rejected(apperr.New(apperr.KindUnknownAction, string(frame))))
	})
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Frames == nil {
		deps.Frames = echoFrames()
	}
	return NewServer(testConfig(t), deps)
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t, Deps{Version: "v1.0.0-test"})

	require.NotNil(t, server)
	assert.NotNil(t, server.Router())
	assert.NotNil(t, server.Hub())
	assert.False(t, server.IsReady())
	assert.Equal(t, "127.0.0.1:0", server.httpServer.Addr)
}

func TestServerHealthEndpoint(t *testing.T) {
	server := newTestServer(t, Deps{Version: "v1.0.0-test"})

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "v1.0.0-test", resp["version"])
	assert.Equal(t, float64(0), resp["connections"])
}

func TestServerMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ObserveFrame("search_new", "ok", time.Millisecond)
	server := newTestServer(t, Deps{Metrics: m})

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mixchat_ws_frames_total")
}

func TestServerRoutes(t *testing.T) {
	server := newTestServer(t, Deps{Routes: routes.Handlers{
		"Main@main": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
	}})

	tests := []struct {
		path   string
		status int
	}{
		{"/", http.StatusNoContent},
		{"/api/friends/all", http.StatusNotImplemented},
		{"/nowhere", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, tt.path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), tt.path)
	}
}

func TestServerServeAndShutdown(t *testing.T) {
	server := newTestServer(t, Deps{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()
	require.Eventually(t, server.IsReady, time.Second, 5*time.Millisecond)

	wsURL := "ws://" + server.Addr().String() + "/ws"
	ws, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(gorillaws.TextMessage, []byte(`{"action":"x"}`)))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"unknown_action"}`, string(data))
	require.Eventually(t, func() bool { return server.Hub().ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	require.NoError(t, <-errCh)

	assert.Zero(t, server.Hub().ClientCount())

	// the client sees the connection close
	_, _, err = ws.ReadMessage()
	assert.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "timeout"), err.Error())
}
