// Package api exposes the engine over HTTP: device commands, animation
// control, a websocket event stream and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/engine"
)

// ReplyTimeout bounds how long a request waits for the engine.
const ReplyTimeout = 5 * time.Second

// Engine is what the API needs from the run loop. *engine.Engine implements it.
type Engine interface {
	Do(ctx context.Context, cmd engine.Command) (engine.Result, error)
	Status() engine.Status
}

// Config holds listener settings.
type Config struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// Server is the HTTP control surface.
type Server struct {
	cfg     Config
	engine  Engine
	hub     *Hub
	started time.Time
	server  *http.Server
}

// New creates a server. hub may be nil to disable /api/ws.
func New(cfg Config, e Engine, hub *Hub) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		cfg:     cfg,
		engine:  e,
		hub:     hub,
		started: time.Now(),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if s.hub != nil {
			s.hub.CloseAll()
		}
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	log.Info().Str("addr", s.cfg.Addr).Msg("Starting API server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
