package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/api"
	"github.com/dokzlo13/huemotion/internal/config"
	"github.com/dokzlo13/huemotion/internal/db"
	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/eventbus"
	"github.com/dokzlo13/huemotion/internal/history"
	"github.com/dokzlo13/huemotion/internal/ledger"
	"github.com/dokzlo13/huemotion/internal/light"
	"github.com/dokzlo13/huemotion/internal/mqtt"
	"github.com/dokzlo13/huemotion/internal/schedule"
	"github.com/dokzlo13/huemotion/internal/script"
	"github.com/dokzlo13/huemotion/internal/storage"
	"github.com/dokzlo13/huemotion/internal/transport"
	"github.com/dokzlo13/huemotion/internal/transport/hue"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Store  *storage.Store
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus
	Resume *ResumeStore

	// Engine and its transport
	Transport engine.Transport
	Engine    *engine.Engine

	// Optional surfaces
	Scheduler *schedule.Scheduler
	Hub       *api.Hub
	API       *api.Server
	MQTT      *mqtt.Client
	History   *history.Recorder

	wg sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
// Network connections are deferred to Start.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Store = storage.NewStore(database.DB)
	s.Ledger = ledger.New(database.DB)
	s.Resume = NewResumeStore(s.Store)

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	s.Transport, err = newTransport(cfg.Hue)
	if err != nil {
		s.Close()
		return nil, err
	}

	opts := []engine.Option{
		engine.WithScripts(script.NewLoader(cfg.Scripts.Dir)),
		engine.WithPublisher(s.Bus),
	}
	if cfg.Engine.Seed != 0 {
		opts = append(opts, engine.WithSource(animation.NewSource(cfg.Engine.Seed)))
	}
	s.Engine = engine.New(s.Transport, engine.Config{
		PollInterval: cfg.Engine.PollInterval.Duration(),
		QueueSize:    cfg.Engine.QueueSize,
		RetryDelay:   cfg.Engine.RetryDelay.Duration(),
	}, opts...)

	s.Scheduler, err = buildScheduler(cfg.Schedules, s.Engine, time.Local)
	if err != nil {
		s.Close()
		return nil, err
	}

	if cfg.API.Enabled {
		s.Hub = api.NewHub()
		s.API = api.New(api.Config{
			Addr:            cfg.API.Addr(),
			CORSOrigins:     cfg.API.CORSOrigins,
			ShutdownTimeout: cfg.GetShutdownTimeout(),
		}, s.Engine, s.Hub)
	}

	return s, nil
}

// newTransport picks the light transport from config.
func newTransport(cfg config.HueConfig) (engine.Transport, error) {
	switch cfg.Transport {
	case config.TransportMemory:
		log.Warn().Msg("Using in-memory transport, no bridge will be contacted")
		return transport.NewMemory(demoLights()), nil
	case config.TransportBridge, "":
		return hue.New(cfg.Bridge, cfg.Token, cfg.Timeout.Duration(), cfg.RateLimitRPS), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// demoLights seeds the in-memory transport.
func demoLights() light.Collection {
	base := light.State{}.WithOn(true).WithHue(8000).WithSat(200).WithBri(180)
	return light.Collection{
		1: {Name: "Living room", Reachable: true, State: base},
		2: {Name: "Kitchen", Reachable: true, State: base.WithHue(30000)},
		3: {Name: "Hallway", Reachable: true, State: base.WithHue(50000)},
	}
}

// Start connects external systems, wires event subscribers and starts all
// background loops. onFatalError is called when a loop that the process
// cannot live without exits; it is also called with nil after Quit.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if c, ok := s.Transport.(interface{ Connect(context.Context) error }); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}

	if s.cfg.Ledger.Enabled {
		s.Ledger.Subscribe(s.Bus)
	}
	s.Resume.Subscribe(s.Bus)
	if s.Hub != nil {
		s.Hub.Subscribe(s.Bus)
	}

	if s.cfg.Influx.Enabled {
		rec, err := history.Connect(s.cfg.Influx.URL, s.cfg.Influx.Token, s.cfg.Influx.Org, s.cfg.Influx.Bucket)
		if err != nil {
			log.Warn().Err(err).Msg("Frame history disabled")
		} else {
			s.History = rec
			rec.Subscribe(s.Bus)
		}
	}

	if s.cfg.MQTT.Enabled {
		client, err := mqtt.Connect(mqtt.Config{
			Broker:         s.cfg.MQTT.Broker,
			Username:       s.cfg.MQTT.Username,
			Password:       s.cfg.MQTT.Password,
			ClientIDPrefix: s.cfg.MQTT.ClientIDPrefix,
			TopicPrefix:    s.cfg.MQTT.TopicPrefix,
			QoS:            s.cfg.MQTT.QoS,
		}, s.Engine, s.Engine)
		if err != nil {
			return err
		}
		s.MQTT = client
		client.Subscribe(s.Bus)
	}

	s.goRun(func() {
		err := s.Engine.Run(ctx)
		if errors.Is(err, engine.ErrCommandsClosed) {
			return
		}
		if ctx.Err() == nil {
			onFatalError(err)
		}
	})

	if s.cfg.Resume {
		if err := s.Resume.Restore(ctx, s.Engine.Submit); err != nil {
			log.Warn().Err(err).Msg("Failed to resume animation")
		}
	}

	if s.Scheduler.Len() > 0 {
		s.goRun(func() {
			if err := s.Scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Scheduler error")
			}
		})
	} else {
		log.Info().Msg("No schedules configured")
	}

	if s.API != nil {
		s.goRun(func() {
			if err := s.API.Run(ctx); err != nil {
				onFatalError(fmt.Errorf("api server: %w", err))
			}
		})
	}

	if s.cfg.Ledger.Enabled {
		s.goRun(func() {
			runLedgerCleanup(ctx, s.Ledger, s.cfg.Ledger.RetentionPeriod.Duration(), s.cfg.Ledger.RetentionInterval.Duration())
		})
	}

	return nil
}

func (s *Services) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// ClearState forgets persisted state (the animation to resume).
func (s *Services) ClearState() error {
	return s.Store.Clear("")
}

// Stop waits for background loops (the caller cancels their context
// first), drains the event bus and releases all resources.
func (s *Services) Stop() error {
	timeout := s.cfg.GetShutdownTimeout()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Background services did not stop in time")
	}

	s.Engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.Bus.Close(ctx)

	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.History != nil {
		s.History.Close()
	}
	if c, ok := s.Transport.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close transport")
		}
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
