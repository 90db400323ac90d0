package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/config"
	"github.com/dokzlo13/huemotion/internal/engine"
)

// App is the main application container that manages all services and their lifecycle.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new App instance with all services initialized but not started.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		services: services,
	}, nil
}

// Start initializes and starts all services.
// The provided context is used for cancellation.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	// Cancels the app context when the engine quits or a required service dies
	onFatalError := func(err error) {
		if err != nil {
			log.Error().Err(err).Msg("Fatal error, initiating shutdown")
		} else {
			log.Info().Msg("Engine quit, initiating shutdown")
		}
		a.cancel()
	}

	if err := a.services.Start(a.ctx, onFatalError); err != nil {
		a.cancel()
		return err
	}

	log.Info().Msg("huemotion started")
	return nil
}

// Stop gracefully shuts down all services.
func (a *App) Stop() error {
	log.Info().Msg("Shutting down...")

	if a.cancel != nil {
		a.cancel()
	}

	if a.services != nil {
		return a.services.Stop()
	}

	return nil
}

// Wait blocks until the application context is cancelled.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// Context returns the application context. It is cancelled on shutdown.
func (a *App) Context() context.Context {
	return a.ctx
}

// Engine returns the run loop, for the interactive console.
func (a *App) Engine() *engine.Engine {
	return a.services.Engine
}

// Shutdown cancels the application context, unblocking Wait.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
}

// ScheduleSummary renders today's schedule.
func (a *App) ScheduleSummary() string {
	return a.services.Scheduler.FormatDay(time.Now())
}

// ClearState clears persisted state, including the animation to resume.
// This is useful for resetting state on startup with --reset-state flag.
func (a *App) ClearState() error {
	if a.services != nil {
		return a.services.ClearState()
	}
	return nil
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
