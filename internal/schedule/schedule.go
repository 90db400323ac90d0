// Package schedule submits configured commands to the engine at fixed
// times of day or on an interval.
package schedule

import (
	"fmt"
	"time"

	"github.com/dokzlo13/huemotion/internal/engine"
)

// Schedule is any source of timed commands.
type Schedule interface {
	// ID returns the unique identifier for this schedule
	ID() string

	// Command returns the command to submit on each occurrence
	Command() engine.Command

	// Next returns the next occurrence after the given time
	Next(after time.Time) time.Time

	// Describe returns the timing in human-readable form
	Describe() string
}

// Daily fires once a day at a fixed time.
type Daily struct {
	id      string
	clock   Clock
	tz      *time.Location
	command engine.Command
}

// NewDaily creates a daily schedule from an "HH:MM" expression.
func NewDaily(id, at string, tz *time.Location, cmd engine.Command) (*Daily, error) {
	clock, err := ParseClock(at)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", id, err)
	}
	if tz == nil {
		tz = time.Local
	}
	return &Daily{id: id, clock: clock, tz: tz, command: cmd}, nil
}

func (s *Daily) ID() string              { return s.id }
func (s *Daily) Command() engine.Command { return s.command }
func (s *Daily) Describe() string        { return "at " + s.clock.String() }

// Next returns the next occurrence after the given time.
func (s *Daily) Next(after time.Time) time.Time {
	return s.clock.Next(after, s.tz)
}

// Periodic fires at regular intervals counted from its start time.
type Periodic struct {
	id        string
	interval  time.Duration
	startTime time.Time
	command   engine.Command
}

// NewPeriodic creates a periodic schedule whose first occurrence is one
// interval after start.
func NewPeriodic(id string, interval time.Duration, start time.Time, cmd engine.Command) (*Periodic, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("schedule %s: interval must be positive", id)
	}
	return &Periodic{id: id, interval: interval, startTime: start, command: cmd}, nil
}

func (s *Periodic) ID() string              { return s.id }
func (s *Periodic) Command() engine.Command { return s.command }
func (s *Periodic) Describe() string        { return "every " + s.interval.String() }

// Next returns the next occurrence after the given time.
func (s *Periodic) Next(after time.Time) time.Time {
	if after.Before(s.startTime) {
		return s.startTime.Add(s.interval)
	}

	ticks := int64(after.Sub(s.startTime) / s.interval)
	return s.startTime.Add(time.Duration(ticks+1) * s.interval)
}

// Interval returns the schedule interval for display.
func (s *Periodic) Interval() time.Duration {
	return s.interval
}
