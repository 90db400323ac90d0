package animation

import "github.com/dokzlo13/huemotion/internal/light"

// Transform describes how to compute one device's next partial state.
// Each attribute has an optional operation; a nil operation leaves the
// attribute unset in the output.
type Transform struct {
	On             *Operation[bool]
	TransitionTime *Operation[uint16]
	Hue            *Operation[uint16]
	Sat            *Operation[uint8]
	Bri            *Operation[uint8]
}

// Evaluate computes the next state of device id. Previous values come from
// the device's entry in snapshot, or are absent if the device isn't there.
func (t Transform) Evaluate(id light.DeviceID, snapshot light.Collection) light.State {
	prev, _ := snapshot.StateOf(id)
	return light.State{
		On:             t.On.Process(snapshot, prev.On),
		TransitionTime: t.TransitionTime.Process(snapshot, prev.TransitionTime),
		Hue:            t.Hue.Process(snapshot, prev.Hue),
		Sat:            t.Sat.Process(snapshot, prev.Sat),
		Bri:            t.Bri.Process(snapshot, prev.Bri),
	}
}

// SetColor is a shorthand for a transform that sets constant hue, saturation
// and (optionally) brightness.
func SetColor(hue uint16, sat uint8, bri *uint8) Transform {
	t := Transform{
		Hue: Set(Constant(hue)),
		Sat: Set(Constant(sat)),
	}
	if bri != nil {
		t.Bri = Set(Constant(*bri))
	}
	return t
}
