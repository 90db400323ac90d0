// Package transport provides light transports for the engine.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dokzlo13/huemotion/internal/light"
)

// ErrInjected is returned by Memory when a failure was requested by a test.
var ErrInjected = errors.New("injected transport failure")

// ErrUnknownLight is returned when writing to a light that doesn't exist.
var ErrUnknownLight = errors.New("unknown light")

// MaxWrites is how many recent writes Memory keeps.
const MaxWrites = 1024

// Write records one Apply call.
type Write struct {
	ID    light.DeviceID
	State light.State
}

// Memory is an in-memory transport. Writes are merged into the stored
// state with light.Combine. Used for dry runs and tests.
type Memory struct {
	mu     sync.Mutex
	lights light.Collection
	writes []Write

	failLights int
	failApply  map[light.DeviceID]bool
}

// NewMemory creates a memory transport seeded with the given lights.
func NewMemory(initial light.Collection) *Memory {
	lights := make(light.Collection, len(initial))
	for id, l := range initial {
		l.State = l.State.Clone()
		lights[id] = l
	}
	return &Memory{
		lights:    lights,
		failApply: make(map[light.DeviceID]bool),
	}
}

// Lights returns a deep copy of the stored lights.
func (m *Memory) Lights(ctx context.Context) (light.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failLights > 0 {
		m.failLights--
		return nil, fmt.Errorf("lights: %w", ErrInjected)
	}

	out := make(light.Collection, len(m.lights))
	for id, l := range m.lights {
		l.State = l.State.Clone()
		out[id] = l
	}
	return out, nil
}

// Apply merges state into the stored light.
func (m *Memory) Apply(ctx context.Context, id light.DeviceID, state light.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failApply[id] {
		return fmt.Errorf("apply light %d: %w", id, ErrInjected)
	}

	l, ok := m.lights[id]
	if !ok {
		return fmt.Errorf("apply light %d: %w", id, ErrUnknownLight)
	}

	st := state.Clone()
	// transitiontime is a write-only instruction, not part of the stored state
	st.TransitionTime = nil
	l.State = light.Combine(l.State, st)
	m.lights[id] = l
	if len(m.writes) >= MaxWrites {
		n := copy(m.writes, m.writes[len(m.writes)-MaxWrites+1:])
		m.writes = m.writes[:n]
	}
	m.writes = append(m.writes, Write{ID: id, State: state.Clone()})
	return nil
}

// Put adds or replaces a light.
func (m *Memory) Put(id light.DeviceID, l light.Light) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.State = l.State.Clone()
	m.lights[id] = l
}

// FailLights makes the next n calls to Lights fail.
func (m *Memory) FailLights(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLights = n
}

// FailApply makes writes to id fail until cleared.
func (m *Memory) FailApply(id light.DeviceID, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failApply[id] = fail
}

// Writes returns the most recent successful Apply calls, oldest first.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

// ResetWrites clears the write log.
func (m *Memory) ResetWrites() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}
