// Package gateway provides the HTTP gateway server.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"mixchat/internal/config"
	"mixchat/internal/gateway/handlers"
	"mixchat/internal/gateway/metrics"
	"mixchat/internal/gateway/middleware"
	"mixchat/internal/gateway/websocket"
	"mixchat/internal/routes"
	"mixchat/pkg/logger"
)

// Deps are the collaborators the gateway serves.
type Deps struct {
	// Frames serves the real-time endpoint.
	Frames websocket.FrameHandler
	// Routes are the implemented HTTP actions; missing ones answer 501.
	Routes routes.Handlers
	// DB is pinged by the health check; may be nil.
	DB      handlers.Pinger
	Metrics *metrics.Metrics
	Version string
}

// Server represents the HTTP gateway server.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *websocket.Hub
	config      *config.Config
	deps        Deps
	rateLimiter *middleware.RateLimiter

	mu        sync.Mutex
	addr      net.Addr
	hubCancel context.CancelFunc
	hubDone   chan struct{}
}

// NewServer creates a new gateway server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	router := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerMinute: cfg.Gateway.RateLimit.RequestsPerMinute,
		Burst:             cfg.Gateway.RateLimit.Burst,
		Enabled:           cfg.Gateway.RateLimit.Enabled,
		IdleTTL:           cfg.Gateway.RateLimit.IdleTTL,
	})

	// Apply middleware chain: Recovery -> Logging -> CORS -> RateLimit
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(cfg.Gateway.AllowedOrigins)(
				rateLimiter.RateLimit(router),
			),
		),
	)

	hub := websocket.NewHub(deps.Frames, websocket.Options{
		AllowedOrigins:  cfg.Gateway.AllowedOrigins,
		MaxInflight:     cfg.Realtime.MaxInflight,
		FramesPerSecond: cfg.Realtime.FramesPerSecond,
		Burst:           cfg.Realtime.Burst,
		Metrics:         deps.Metrics,
	})

	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Gateway.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		router:      router,
		hub:         hub,
		config:      cfg,
		deps:        deps,
		rateLimiter: rateLimiter,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the server routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.hub, w, r)
	})
	s.router.HandleFunc("/health", handlers.HealthHandler(s.deps.Version, s.deps.DB, s.hub.ClientCount)).Methods(http.MethodGet)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	routes.Register(s.router, s.deps.Routes)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	handlers.InitStartTime()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.addr = ln.Addr()
	s.hubCancel = cancel
	s.hubDone = done
	s.mu.Unlock()

	go func() {
		s.hub.Run(ctx)
		close(done)
	}()

	logger.Info().
		Str("addr", ln.Addr().String()).
		Msg("Starting gateway server")

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests, then closes every WebSocket client.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)

	// hijacked connections are not tracked by http.Server
	s.mu.Lock()
	hubCancel, hubDone := s.hubCancel, s.hubDone
	s.mu.Unlock()
	if hubCancel != nil {
		hubCancel()
		select {
		case <-hubDone:
		case <-shutdownCtx.Done():
		}
	} else {
		s.hub.Close()
	}

	if err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// Addr returns the bound address once serving, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// IsReady returns true if the server is accepting requests.
func (s *Server) IsReady() bool {
	return s.Addr() != nil
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Router returns the underlying router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}
