// Package light defines the device data model shared by the engine and its transports.
package light

import (
	"math"
	"time"
)

// TickDuration is the vendor unit for transition times.
const TickDuration = 100 * time.Millisecond

// DeviceID identifies a light on the bridge.
type DeviceID uint8

// State is a partial light state. A nil field means "no opinion": the field
// is left untouched when the state is applied on top of another one.
// The same type is used for snapshots, diffs and frame output.
type State struct {
	On             *bool   `json:"on,omitempty"`
	TransitionTime *uint16 `json:"transitiontime,omitempty"` // in 100ms ticks
	Hue            *uint16 `json:"hue,omitempty"`            // 0-65535
	Sat            *uint8  `json:"sat,omitempty"`            // 0-254
	Bri            *uint8  `json:"bri,omitempty"`            // 0-254
}

// Combine returns base with every field present in diff overwritten.
// Combine(b, State{}) == b and the operation is associative.
func Combine(base, diff State) State {
	out := base
	if diff.On != nil {
		out.On = diff.On
	}
	if diff.TransitionTime != nil {
		out.TransitionTime = diff.TransitionTime
	}
	if diff.Hue != nil {
		out.Hue = diff.Hue
	}
	if diff.Sat != nil {
		out.Sat = diff.Sat
	}
	if diff.Bri != nil {
		out.Bri = diff.Bri
	}
	return out
}

// IsEmpty reports whether no field is set.
func (s State) IsEmpty() bool {
	return s.On == nil && s.TransitionTime == nil && s.Hue == nil && s.Sat == nil && s.Bri == nil
}

// Clone returns a copy that shares no pointers with s.
func (s State) Clone() State {
	var out State
	if s.On != nil {
		out = out.WithOn(*s.On)
	}
	if s.TransitionTime != nil {
		out = out.WithTransitionTime(*s.TransitionTime)
	}
	if s.Hue != nil {
		out = out.WithHue(*s.Hue)
	}
	if s.Sat != nil {
		out = out.WithSat(*s.Sat)
	}
	if s.Bri != nil {
		out = out.WithBri(*s.Bri)
	}
	return out
}

// Equal compares two states field by field.
func (s State) Equal(o State) bool {
	return eq(s.On, o.On) && eq(s.TransitionTime, o.TransitionTime) &&
		eq(s.Hue, o.Hue) && eq(s.Sat, o.Sat) && eq(s.Bri, o.Bri)
}

func eq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s State) WithOn(v bool) State {
	s.On = &v
	return s
}

func (s State) WithTransitionTime(v uint16) State {
	s.TransitionTime = &v
	return s
}

func (s State) WithHue(v uint16) State {
	s.Hue = &v
	return s
}

func (s State) WithSat(v uint8) State {
	s.Sat = &v
	return s
}

func (s State) WithBri(v uint8) State {
	s.Bri = &v
	return s
}

// HasColor reports whether hue, saturation and brightness are all known.
func (s State) HasColor() bool {
	return s.Hue != nil && s.Sat != nil && s.Bri != nil
}

// TicksFromDuration converts d to 100ms ticks, saturating at MaxUint16.
func TicksFromDuration(d time.Duration) uint16 {
	if d <= 0 {
		return 0
	}
	ticks := d / TickDuration
	if ticks > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(ticks)
}

// DurationFromTicks converts 100ms ticks back to a duration.
func DurationFromTicks(t uint16) time.Duration {
	return time.Duration(t) * TickDuration
}
