// Package eventbus fans engine events out to observers (websocket, MQTT,
// history, ledger) on a bounded worker pool, so that a slow observer never
// stalls the run loop.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType represents the type of event
type EventType string

const (
	EventTypeFrame            EventType = "frame"
	EventTypeAnimationStarted EventType = "animation_started"
	EventTypeAnimationStopped EventType = "animation_stopped"
	EventTypeCommandFailed    EventType = "command_failed"
	EventTypeTransportError   EventType = "transport_error"
)

// AllEventTypes lists every event type the engine publishes.
var AllEventTypes = []EventType{
	EventTypeFrame,
	EventTypeAnimationStarted,
	EventTypeAnimationStopped,
	EventTypeCommandFailed,
	EventTypeTransportError,
}

// Default configuration
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 256
)

// Event represents an event in the system.
// Data keys by type:
//   - frame: run_id, animation, cursor, states (map[light.DeviceID]light.State), transition (time.Duration)
//   - animation_started: run_id, animation, spec (animation.Spec), source
//   - animation_stopped: run_id, animation, reason
//   - command_failed: command, error
//   - transport_error: error
type Event struct {
	Type EventType              `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Handler is a function that handles events
type Handler func(Event)

type work struct {
	event   Event
	handler Handler
}

// Bus routes events to subscribers through a bounded worker pool.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	closed   bool

	workQueue chan work
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a new event bus with custom worker count and queue size
func NewWithConfig(workerCount, queueSize int) *Bus {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		handlers:  make(map[EventType][]Handler),
		workQueue: make(chan work, queueSize),
	}

	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	for w := range b.workQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(w.event.Type)).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			w.handler(w.event)
		}()
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers one handler for several event types.
func (b *Bus) SubscribeAll(handler Handler, types ...EventType) {
	for _, t := range types {
		b.Subscribe(t, handler)
	}
}

// Publish hands the event to every subscriber of its type.
// Never blocks: when the queue is full or the bus is closed the event is dropped.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		log.Debug().Str("event_type", string(event.Type)).Msg("Event bus closed, dropping event")
		return
	}

	for _, handler := range b.handlers[event.Type] {
		select {
		case b.workQueue <- work{event: event, handler: handler}:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event bus queue full, dropping event")
		}
	}
}

// Close stops accepting events and waits for queued ones to drain, up to ctx.
// Safe to call more than once.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.workQueue)
		b.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}
