// Package engine runs the single-threaded scheduler loop: it drains the
// command queue, owns the active animation and pushes frames to the transport.
package engine

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/eventbus"
	"github.com/dokzlo13/huemotion/internal/light"
	"github.com/dokzlo13/huemotion/internal/metrics"
)

// Default configuration
const (
	DefaultPollInterval = 5 * time.Millisecond
	DefaultQueueSize    = 64
)

// Transport reads light snapshots and writes partial states.
// Delivery is best-effort; errors are logged by the engine, not retried.
type Transport interface {
	Lights(ctx context.Context) (light.Collection, error)
	Apply(ctx context.Context, id light.DeviceID, state light.State) error
}

// Publisher receives engine events. *eventbus.Bus implements it.
type Publisher interface {
	Publish(event eventbus.Event)
}

// Config tunes the run loop.
type Config struct {
	PollInterval time.Duration
	QueueSize    int
	RetryDelay   time.Duration // wait before re-fetching after a failed snapshot; defaults to PollInterval
}

// Status describes what the engine is doing, for observers outside the loop.
type Status struct {
	Playing   bool            `json:"playing"`
	Animation string          `json:"animation,omitempty"`
	RunID     string          `json:"run_id,omitempty"`
	Spec      *animation.Spec `json:"spec,omitempty"`
	Cursor    int             `json:"cursor"`
	Steps     int             `json:"steps"`
	NextDue   *time.Time      `json:"next_due,omitempty"`
}

// Engine owns the active animation. All mutable state except status is
// touched only by the goroutine calling Run or Tick.
type Engine struct {
	cfg       Config
	transport Transport
	scripts   animation.ScriptLoader
	bus       Publisher
	src       *rand.Rand

	commands  chan Command
	closing   chan struct{}
	closeOnce sync.Once

	current *animation.Animation
	spec    animation.Spec
	runID   string
	nextDue *time.Time

	mu     sync.RWMutex
	status Status
}

// Option configures an Engine.
type Option func(*Engine)

// WithScripts enables script animations.
func WithScripts(l animation.ScriptLoader) Option {
	return func(e *Engine) { e.scripts = l }
}

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.bus = p }
}

// WithSource sets the random source used by built-in animations.
func WithSource(src *rand.Rand) Option {
	return func(e *Engine) { e.src = src }
}

// New creates an engine. It does nothing until Run or Tick is called.
func New(transport Transport, cfg Config, opts ...Option) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = cfg.PollInterval
	}

	e := &Engine{
		cfg:       cfg,
		transport: transport,
		commands:  make(chan Command, cfg.QueueSize),
		closing:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.src == nil {
		e.src = animation.NewTimeSource()
	}
	return e
}

// Submit enqueues a command, blocking while the queue is full.
func (e *Engine) Submit(ctx context.Context, cmd Command) error {
	select {
	case <-e.closing:
		return ErrEngineStopped
	default:
	}

	select {
	case <-e.closing:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	case e.commands <- cmd:
		return nil
	}
}

// Do submits a command and waits for its result.
func (e *Engine) Do(ctx context.Context, cmd Command) (Result, error) {
	ch := make(chan Result, 1)
	if err := e.Submit(ctx, cmd.withReply(ch)); err != nil {
		return Result{}, err
	}
	select {
	case <-e.closing:
		return Result{}, ErrEngineStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		return res, res.Err
	}
}

// Close disconnects the command queue. Run returns ErrCommandsClosed and
// further submissions fail with ErrEngineStopped.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.closing)
	})
}

// Status returns a copy of the current status. Safe from any goroutine.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// NextDue returns when the next frame is due, or false if nothing is playing.
// Safe from any goroutine.
func (e *Engine) NextDue() (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.status.NextDue == nil {
		return time.Time{}, false
	}
	return *e.status.NextDue, true
}

// Run polls Tick until ctx is cancelled, a Quit command is processed or the
// engine is closed.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Dur("poll_interval", e.cfg.PollInterval).Msg("Engine started")

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	defer e.clear("shutdown")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Engine stopping")
			return nil
		case <-e.closing:
			log.Info().Msg("Command queue closed, engine stopping")
			return ErrCommandsClosed
		case now := <-ticker.C:
			if !e.Tick(ctx, now) {
				log.Info().Msg("Quit received, engine stopping")
				return nil
			}
		}
	}
}

// Tick runs one loop iteration at the given time: at most one command is
// handled, then a frame is emitted if one is due. Returns false after Quit.
func (e *Engine) Tick(ctx context.Context, now time.Time) bool {
	select {
	case cmd := <-e.commands:
		if !e.dispatch(ctx, now, cmd) {
			return false
		}
	default:
	}

	e.advance(ctx, now)
	return true
}

func (e *Engine) dispatch(ctx context.Context, now time.Time, cmd Command) bool {
	var res Result

	switch c := cmd.(type) {
	case On:
		res.Err = e.apply(ctx, c.ID, light.State{}.WithOn(true))
	case Off:
		res.Err = e.apply(ctx, c.ID, light.State{}.WithOn(false))
	case SetState:
		res.Err = e.apply(ctx, c.ID, c.State)
	case StartAnimation:
		res.RunID, res.Err = e.start(ctx, now, c)
	case Stop:
		e.clear("stopped")
	case GetLights:
		res.Lights, res.Err = e.transport.Lights(ctx)
	case Quit:
		metrics.CommandsProcessed.WithLabelValues(cmd.Name(), metrics.ResultOK).Inc()
		reply(cmd, res)
		return false
	}

	metrics.CommandsProcessed.WithLabelValues(cmd.Name(), metrics.ResultLabel(res.Err)).Inc()
	if res.Err != nil {
		log.Warn().Err(res.Err).Str("command", cmd.Name()).Msg("Command failed")
		e.publish(eventbus.EventTypeCommandFailed, map[string]interface{}{
			"command": cmd.Name(),
			"error":   res.Err.Error(),
		})
	}
	reply(cmd, res)
	return true
}

func (e *Engine) start(ctx context.Context, now time.Time, c StartAnimation) (string, error) {
	lights, err := e.transport.Lights(ctx)
	if err != nil {
		return "", err
	}

	a, err := animation.Build(c.Spec, lights, e.src, e.scripts)
	if err != nil {
		return "", err
	}

	e.clear("replaced")

	e.current = a
	e.spec = c.Spec
	e.runID = uuid.NewString()
	due := now
	e.nextDue = &due

	log.Info().
		Str("animation", a.Name()).
		Str("run_id", e.runID).
		Int("steps", a.Len()).
		Dur("hold", a.Hold()).
		Str("source", c.Source).
		Msg("Animation started")

	metrics.AnimationActive.WithLabelValues(string(c.Spec.Kind)).Set(1)
	// Observers read Status when the event arrives.
	e.updateStatus()
	e.publish(eventbus.EventTypeAnimationStarted, map[string]interface{}{
		"run_id":    e.runID,
		"animation": a.Name(),
		"spec":      c.Spec,
		"source":    c.Source,
	})

	return e.runID, nil
}

// clear drops the active animation, if any.
func (e *Engine) clear(reason string) {
	if e.current == nil {
		e.nextDue = nil
		return
	}

	name, runID := e.current.Name(), e.runID
	if err := e.current.Close(); err != nil {
		log.Warn().Err(err).Str("animation", name).Msg("Failed to release animation")
	}
	metrics.AnimationActive.WithLabelValues(string(e.spec.Kind)).Set(0)

	e.current = nil
	e.spec = animation.Spec{}
	e.runID = ""
	e.nextDue = nil

	log.Info().Str("animation", name).Str("run_id", runID).Str("reason", reason).Msg("Animation stopped")
	e.updateStatus()
	e.publish(eventbus.EventTypeAnimationStopped, map[string]interface{}{
		"run_id":    runID,
		"animation": name,
		"reason":    reason,
	})
}

func (e *Engine) advance(ctx context.Context, now time.Time) {
	if e.nextDue == nil || now.Before(*e.nextDue) {
		return
	}

	lights, err := e.transport.Lights(ctx)
	if err != nil {
		metrics.SnapshotFailures.Inc()
		retry := now.Add(e.cfg.RetryDelay)
		e.nextDue = &retry
		log.Warn().Err(err).Time("retry_at", retry).Msg("Failed to fetch lights, skipping frame")
		e.publish(eventbus.EventTypeTransportError, map[string]interface{}{
			"error": err.Error(),
		})
		e.updateStatus()
		return
	}

	cursor := e.current.Cursor()
	frame, ok := e.current.Next(lights.Active())
	if !ok {
		e.clear("exhausted")
		return
	}

	states := frame.Output()
	ids := make([]light.DeviceID, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		// Failures are logged in apply; the rest of the frame still goes out.
		_ = e.apply(ctx, id, states[id])
	}

	due := now.Add(frame.Delay())
	e.nextDue = &due

	log.Debug().
		Str("animation", e.current.Name()).
		Int("cursor", cursor).
		Int("lights", len(states)).
		Time("next_due", due).
		Msg("Frame emitted")

	metrics.FramesEmitted.WithLabelValues(string(e.spec.Kind)).Inc()
	data := map[string]interface{}{
		"run_id":    e.runID,
		"animation": e.current.Name(),
		"cursor":    cursor,
		"states":    states,
	}
	if frame.TransitionTime != nil {
		data["transition"] = *frame.TransitionTime
	}
	e.publish(eventbus.EventTypeFrame, data)
	e.updateStatus()
}

func (e *Engine) apply(ctx context.Context, id light.DeviceID, st light.State) error {
	err := e.transport.Apply(ctx, id, st)
	metrics.StateWrites.WithLabelValues(metrics.ResultLabel(err)).Inc()
	if err != nil {
		log.Warn().Err(err).Uint8("light", uint8(id)).Msg("Failed to apply light state")
	}
	return err
}

func (e *Engine) publish(t eventbus.EventType, data map[string]interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: t, Data: data})
}

func (e *Engine) updateStatus() {
	st := Status{}
	if e.current != nil {
		spec := e.spec
		st = Status{
			Playing:   true,
			Animation: e.current.Name(),
			RunID:     e.runID,
			Spec:      &spec,
			Cursor:    e.current.Cursor(),
			Steps:     e.current.Len(),
		}
		if e.nextDue != nil {
			due := *e.nextDue
			st.NextDue = &due
		}
	}

	e.mu.Lock()
	e.status = st
	e.mu.Unlock()
}
