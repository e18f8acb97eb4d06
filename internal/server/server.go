// Package server wires storage, localization, mail and the gateway into one
// runnable process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mixchat/internal/config"
	"mixchat/internal/cron"
	"mixchat/internal/delivery"
	"mixchat/internal/gateway"
	"mixchat/internal/gateway/metrics"
	"mixchat/internal/i18n"
	"mixchat/internal/mail"
	"mixchat/internal/routes"
	"mixchat/internal/storage"
)

// Options holds process-level settings that are not part of the config file.
type Options struct {
	Version string
	Logger  zerolog.Logger
}

// Server is the assembled mixchat process.
type Server struct {
	cfg       *config.Config
	logger    zerolog.Logger
	gateway   *gateway.Server
	db        *storage.DB
	dict      *i18n.Store
	watcher   *i18n.Watcher
	mailer    *mail.AsyncSender
	metrics   *metrics.Metrics
	scheduler *cron.Scheduler

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	errChan   chan error
}

// New opens the datastore and builds every component from cfg.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		logger:  opts.Logger,
		db:      db,
		metrics: metrics.New(),
		errChan: make(chan error, 1),
	}

	if err := s.initDictionary(); err != nil {
		db.Close()
		return nil, err
	}

	sender, err := NewMailSender(cfg.Mail, opts.Logger)
	if err != nil {
		s.closeResources()
		return nil, err
	}
	if err := s.initScheduler(); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("failed to schedule retention: %w", err)
	}

	s.mailer = mail.Async(sender, opts.Logger.With().Str("component", "mail").Logger(), 30*time.Second)

	frames := delivery.NewHandler(delivery.StoreFromDB(db), delivery.Options{
		ConnectTimeout: cfg.Realtime.ConnectTimeout,
		PageSize:       cfg.Realtime.PageSize,
		AtomicClaim:    cfg.Realtime.AtomicClaim,
		Metrics:        s.metrics,
		Logger:         opts.Logger.With().Str("component", "delivery").Logger(),
	})
	api := routes.NewAPI(db, s.dict, s.mailer, opts.Version, opts.Logger.With().Str("component", "api").Logger())

	s.gateway = gateway.NewServer(cfg, gateway.Deps{
		Frames:  frames,
		Routes:  api.Handlers(),
		DB:      db,
		Metrics: s.metrics,
		Version: opts.Version,
	})

	s.logger.Info().Stringer("delivery", frames).Str("storage", db.Path()).Msg("Server initialized")
	return s, nil
}

// initDictionary loads the configured language and, if set, the override
// file and its watcher.
func (s *Server) initDictionary() error {
	base, err := i18n.Load(s.cfg.I18n.Lang)
	if err != nil {
		return fmt.Errorf("failed to load dictionary: %w", err)
	}
	active := base

	if file := s.cfg.I18n.OverrideFile; file != "" {
		path, err := config.ExpandPath(file)
		if err != nil {
			return err
		}
		override, err := i18n.LoadFile(base.Lang(), path)
		switch {
		case err == nil:
			active = base.Merge(override)
		case s.cfg.I18n.Watch:
			// may appear later
			s.logger.Warn().Err(err).Str("file", path).Msg("Locale override not loaded")
		default:
			return fmt.Errorf("failed to load locale override: %w", err)
		}
		s.dict = i18n.NewStore(active)

		if s.cfg.I18n.Watch {
			w, err := i18n.NewWatcher(s.dict, base, path)
			if err != nil {
				return fmt.Errorf("failed to create locale watcher: %w", err)
			}
			if err := w.Start(); err != nil {
				w.Stop()
				return fmt.Errorf("failed to watch locale override: %w", err)
			}
			s.watcher = w
		}
		return nil
	}

	s.dict = i18n.NewStore(active)
	return nil
}

// NewMailSender builds the configured sender, or a NopSender when mail is off.
func NewMailSender(cfg config.MailConfig, log zerolog.Logger) (mail.Sender, error) {
	if !cfg.Enabled {
		return mail.NopSender{Log: log}, nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		CC:       cfg.CC,
	})
}

// ErrorChan reports a failure of the serving goroutine.
func (s *Server) ErrorChan() <-chan error {
	return s.errChan
}

// Start serves on the configured address in the background and returns once
// the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Gateway.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Gateway.Addr(), err)
	}
	return s.StartOn(ln)
}

// StartOn serves on ln in the background.
func (s *Server) StartOn(ln net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	if err := s.scheduler.Start(); err != nil {
		s.logger.Warn().Err(err).Msg("Scheduler not started")
	}

	go func() {
		if err := s.gateway.Serve(ln); err != nil {
			s.logger.Error().Err(err).Msg("Server error")
			s.errChan <- err
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().
		Str("address", "http://"+ln.Addr().String()).
		Msg("mixchat server started")
	return nil
}

// Run starts the server and blocks until ctx is done or serving fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		s.closeResources()
		return err
	}
	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-s.errChan:
		_ = s.Stop()
		return err
	}
}

// Stop shuts the gateway down and releases every resource.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	if s.gateway != nil {
		if err = s.gateway.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Error during server shutdown")
		}
	}
	if s.scheduler != nil {
		if serr := s.scheduler.Stop(ctx); serr != nil {
			s.logger.Warn().Err(serr).Msg("Scheduler did not stop in time")
		}
	}
	s.closeResources()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Server stopped")
	return err
}

func (s *Server) closeResources() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.mailer != nil {
		s.mailer.Wait()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Close database")
		}
	}
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// StartedAt returns when the server last started.
func (s *Server) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// Gateway returns the HTTP gateway.
func (s *Server) Gateway() *gateway.Server {
	return s.gateway
}

// DB returns the datastore.
func (s *Server) DB() *storage.DB {
	return s.db
}

// Scheduler returns the maintenance job scheduler.
func (s *Server) Scheduler() *cron.Scheduler {
	return s.scheduler
}

// Dictionary returns the active localization store.
func (s *Server) Dictionary() *i18n.Store {
	return s.dict
}
