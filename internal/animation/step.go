package animation

import (
	"sort"
	"time"

	"github.com/dokzlo13/huemotion/internal/light"
)

// Step is one keyframe: a transform per device plus an optional transition.
type Step struct {
	Transforms     map[light.DeviceID]Transform
	TransitionTime *time.Duration
}

// Frame is the evaluated output of a step.
type Frame struct {
	TransitionTime *time.Duration
	HoldTime       time.Duration
	States         map[light.DeviceID]light.State
}

// Evaluate computes a frame from the snapshot. Only devices present both in
// the step and in the snapshot are included. Devices are evaluated in
// ascending id order so that seeded random sources are reproducible.
func (s Step) Evaluate(snapshot light.Collection, hold time.Duration) Frame {
	ids := make([]light.DeviceID, 0, len(s.Transforms))
	for id := range s.Transforms {
		if _, ok := snapshot[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	states := make(map[light.DeviceID]light.State, len(ids))
	for _, id := range ids {
		states[id] = s.Transforms[id].Evaluate(id, snapshot)
	}

	var tt *time.Duration
	if s.TransitionTime != nil {
		d := *s.TransitionTime
		tt = &d
	}

	return Frame{
		TransitionTime: tt,
		HoldTime:       hold,
		States:         states,
	}
}

// Delay is how long to wait after emitting the frame before the next one.
func (f Frame) Delay() time.Duration {
	var d time.Duration
	if f.TransitionTime != nil {
		d = *f.TransitionTime
	}
	return d + f.HoldTime
}

// Output returns the states to send to the transport. The frame transition
// is converted to 100ms ticks and set on every state that doesn't carry its
// own transition time.
func (f Frame) Output() map[light.DeviceID]light.State {
	out := make(map[light.DeviceID]light.State, len(f.States))
	for id, st := range f.States {
		if f.TransitionTime != nil && st.TransitionTime == nil {
			st = st.WithTransitionTime(light.TicksFromDuration(*f.TransitionTime))
		}
		out[id] = st
	}
	return out
}
