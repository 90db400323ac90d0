package animation

import (
	"io"
	"time"

	"github.com/dokzlo13/huemotion/internal/light"
)

// Animation is a looping sequence of steps with a shared hold time.
type Animation struct {
	name   string
	steps  []Step
	cursor int
	hold   time.Duration
	closer io.Closer
}

// New creates an animation. A zero-step animation is allowed; Next on it
// never yields a frame.
func New(name string, hold time.Duration, steps ...Step) *Animation {
	return &Animation{
		name:  name,
		steps: steps,
		hold:  hold,
	}
}

// Name returns the animation's display name.
func (a *Animation) Name() string { return a.name }

// Len returns the number of steps.
func (a *Animation) Len() int { return len(a.steps) }

// Cursor returns the index of the step that the next call to Next will play,
// before wrapping.
func (a *Animation) Cursor() int { return a.cursor }

// Hold returns the hold time applied to every frame.
func (a *Animation) Hold() time.Duration { return a.hold }

// Validate reports configuration problems.
func (a *Animation) Validate() error {
	if len(a.steps) == 0 {
		return ErrNoSteps
	}
	return nil
}

// Next evaluates the current step against snapshot and advances the cursor,
// wrapping to the first step after the last one.
func (a *Animation) Next(snapshot light.Collection) (Frame, bool) {
	if len(a.steps) == 0 {
		return Frame{}, false
	}
	if a.cursor >= len(a.steps) {
		a.cursor = 0
	}
	frame := a.steps[a.cursor].Evaluate(snapshot, a.hold)
	a.cursor++
	return frame, true
}

// Close releases resources held by the animation, such as a script VM.
func (a *Animation) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func (a *Animation) withCloser(c io.Closer) *Animation {
	a.closer = c
	return a
}
