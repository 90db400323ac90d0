package animation

import (
	"errors"
	"io"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/dokzlo13/huemotion/internal/light"
)

func onLight(hue uint16, sat, bri uint8) light.Light {
	return light.Light{
		State:     light.State{On: boolPtr(true), Hue: uint16Ptr(hue), Sat: uint8Ptr(sat), Bri: uint8Ptr(bri)},
		Reachable: true,
	}
}

func durPtr(d time.Duration) *time.Duration {
	return &d
}

func TestStep_Evaluate_Intersection(t *testing.T) {
	step := Step{
		Transforms: map[light.DeviceID]Transform{
			1: {Hue: Set(Constant[uint16](1))},
			2: {Hue: Set(Constant[uint16](2))},
		},
		TransitionTime: durPtr(time.Second),
	}
	snapshot := light.Collection{2: onLight(0, 0, 0), 3: onLight(0, 0, 0)}

	f := step.Evaluate(snapshot, 2*time.Second)
	if len(f.States) != 1 {
		t.Fatalf("States len = %d, want 1", len(f.States))
	}
	if st, ok := f.States[2]; !ok || *st.Hue != 2 {
		t.Errorf("States[2] = %+v", st)
	}
	if f.Delay() != 3*time.Second {
		t.Errorf("Delay() = %v, want 3s", f.Delay())
	}
}

func TestFrame_Output_StampsTransition(t *testing.T) {
	f := Frame{
		TransitionTime: durPtr(1500 * time.Millisecond),
		States: map[light.DeviceID]light.State{
			1: {Hue: uint16Ptr(1)},
			2: {Hue: uint16Ptr(2), TransitionTime: uint16Ptr(3)},
		},
	}
	out := f.Output()
	if tt := out[1].TransitionTime; tt == nil || *tt != 15 {
		t.Errorf("out[1].TransitionTime = %v, want 15", tt)
	}
	if tt := out[2].TransitionTime; tt == nil || *tt != 3 {
		t.Errorf("out[2].TransitionTime = %v, want 3 (transform value wins)", tt)
	}
	if f.States[1].TransitionTime != nil {
		t.Error("Output() mutated the frame")
	}

	noTT := Frame{States: map[light.DeviceID]light.State{1: {Hue: uint16Ptr(1)}}}
	if noTT.Output()[1].TransitionTime != nil {
		t.Error("Output() set a transition on a frame without one")
	}
	if noTT.Delay() != 0 {
		t.Errorf("Delay() = %v, want 0", noTT.Delay())
	}
}

func TestAnimation_Next_Wraps(t *testing.T) {
	snapshot := light.Collection{1: onLight(0, 0, 0)}
	a := New("test", 0,
		Step{Transforms: map[light.DeviceID]Transform{1: {Hue: Set(Constant[uint16](10))}}},
		Step{Transforms: map[light.DeviceID]Transform{1: {Hue: Set(Constant[uint16](20))}}},
	)

	want := []uint16{10, 20, 10, 20, 10}
	for i, w := range want {
		f, ok := a.Next(snapshot)
		if !ok {
			t.Fatalf("Next() #%d returned false", i)
		}
		if got := *f.States[1].Hue; got != w {
			t.Errorf("Next() #%d hue = %d, want %d", i, got, w)
		}
	}
}

func TestAnimation_Next_PeriodThree(t *testing.T) {
	snapshot := light.Collection{1: onLight(0, 0, 0)}
	tagged := func(tag uint16) Step {
		return Step{Transforms: map[light.DeviceID]Transform{1: {Hue: Set(Constant(tag))}}}
	}
	a := New("three", 0, tagged(1), tagged(2), tagged(3))

	var seen []uint16
	for i := 0; i < 9; i++ {
		f, ok := a.Next(snapshot)
		if !ok {
			t.Fatalf("Next() #%d returned false", i)
		}
		seen = append(seen, *f.States[1].Hue)
	}
	for i := 3; i < len(seen); i++ {
		if seen[i] != seen[i-3] {
			t.Errorf("frame %d tag = %d, want %d (period 3)", i, seen[i], seen[i-3])
		}
	}
	if seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Errorf("first cycle = %v, want [1 2 3]", seen[:3])
	}
	if a.Cursor() != 0 {
		t.Errorf("Cursor() = %d after three full cycles, want 0", a.Cursor())
	}
}

func TestAnimation_Next_Empty(t *testing.T) {
	a := New("empty", time.Second)
	for i := 0; i < 3; i++ {
		if _, ok := a.Next(nil); ok {
			t.Fatal("Next() on empty animation returned a frame")
		}
	}
	if !errors.Is(a.Validate(), ErrNoSteps) {
		t.Errorf("Validate() = %v, want ErrNoSteps", a.Validate())
	}
}

func TestAnimation_Next_EmptySnapshot(t *testing.T) {
	a := New("test", 0, Step{Transforms: map[light.DeviceID]Transform{1: {Hue: Set(Constant[uint16](1))}}})
	f, ok := a.Next(light.Collection{})
	if !ok {
		t.Fatal("Next() returned false")
	}
	if len(f.States) != 0 {
		t.Errorf("States = %v, want empty", f.States)
	}
	if a.Cursor() != 1 {
		t.Errorf("Cursor() = %d, want 1", a.Cursor())
	}
}

// Step k of rotate assigns the color list rotated right by k+1.
func TestBuild_Rotate(t *testing.T) {
	snapshot := light.Collection{
		1: onLight(100, 10, 1),
		2: onLight(200, 20, 2),
		3: onLight(300, 30, 3),
		4: {State: light.State{On: boolPtr(false), Hue: uint16Ptr(9), Sat: uint8Ptr(9), Bri: uint8Ptr(9)}, Reachable: true},
	}
	a, err := Build(Spec{Kind: KindRotate, Transition: time.Second, Hold: time.Second}, snapshot, NewSource(1), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if a.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", a.Len())
	}

	expected := [][]uint16{
		{300, 100, 200},
		{200, 300, 100},
		{100, 200, 300},
	}
	for k, row := range expected {
		f, _ := a.Next(snapshot.Active())
		if len(f.States) != 3 {
			t.Fatalf("frame %d has %d states", k, len(f.States))
		}
		for i, hue := range row {
			id := light.DeviceID(i + 1)
			if got := *f.States[id].Hue; got != hue {
				t.Errorf("frame %d light %d hue = %d, want %d", k, id, got, hue)
			}
		}
		if f.Delay() != 2*time.Second {
			t.Errorf("frame %d Delay() = %v, want 2s", k, f.Delay())
		}
	}
}

func TestBuild_RotateHuesUsesAverageBrightness(t *testing.T) {
	snapshot := light.Collection{
		1: onLight(0, 0, 100),
		2: onLight(0, 0, 200),
	}
	a, err := Build(Spec{Kind: KindRotate, Hues: []uint16{1000, 2000}}, snapshot, NewSource(1), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	f, _ := a.Next(snapshot)
	if got := *f.States[1].Hue; got != 2000 {
		t.Errorf("light 1 hue = %d, want 2000", got)
	}
	if got := *f.States[1].Bri; got != 150 {
		t.Errorf("light 1 bri = %d, want 150", got)
	}
	if got := *f.States[2].Sat; got != 255 {
		t.Errorf("light 2 sat = %d, want 255", got)
	}
}

func TestBuild_RotateHuesAveragesSelectedLightsOnly(t *testing.T) {
	snapshot := light.Collection{
		1: onLight(0, 0, 100),
		2: onLight(0, 0, 200),
		3: onLight(0, 0, 250),
	}
	spec := Spec{Kind: KindRotate, Devices: []light.DeviceID{1, 2}, Hues: []uint16{1000, 2000}}
	a, err := Build(spec, snapshot, NewSource(1), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	f, _ := a.Next(snapshot)
	for _, id := range []light.DeviceID{1, 2} {
		if got := *f.States[id].Bri; got != 150 {
			t.Errorf("light %d bri = %d, want 150", id, got)
		}
	}
	if _, ok := f.States[3]; ok {
		t.Error("unselected light 3 received a state")
	}
}

func TestBuild_RainbowPeriodLimit(t *testing.T) {
	snapshot := light.Collection{1: onLight(0, 0, 0)}

	a, err := Build(Spec{Kind: KindRainbow, Period: MaxRainbowPeriod}, snapshot, NewSource(1), nil)
	if err != nil {
		t.Fatalf("Build() at the limit error = %v", err)
	}
	if a.Len() != 65535 {
		t.Errorf("Len() = %d, want 65535", a.Len())
	}
	a.Next(snapshot)
	f, _ := a.Next(snapshot)
	if got := *f.States[1].Hue; got == 0 {
		t.Error("step 1 hue = 0, want the rainbow to move")
	}

	_, err = Build(Spec{Kind: KindRainbow, Period: MaxRainbowPeriod + time.Second}, snapshot, NewSource(1), nil)
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("Build() over the limit error = %v, want ErrInvalidPeriod", err)
	}
}

func TestBuild_Rainbow(t *testing.T) {
	snapshot := light.Collection{1: onLight(0, 0, 0), 2: onLight(0, 0, 0)}
	a, err := Build(Spec{Kind: KindRainbow, Period: time.Second}, snapshot, NewSource(1), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// Period is clamped to 3s: 6 steps of 500ms.
	if a.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", a.Len())
	}
	f, _ := a.Next(snapshot)
	if f.TransitionTime == nil || *f.TransitionTime != 500*time.Millisecond {
		t.Errorf("TransitionTime = %v, want 500ms", f.TransitionTime)
	}
	if got := *f.States[1].Hue; got != 0 {
		t.Errorf("step 0 light 1 hue = %d, want 0", got)
	}
	if got := *f.States[2].Hue; got != 32767 {
		t.Errorf("step 0 light 2 hue = %d, want 32767", got)
	}
	f, _ = a.Next(snapshot)
	if got := *f.States[1].Hue; got != 10922 {
		t.Errorf("step 1 light 1 hue = %d, want 10922", got)
	}
}

func TestBuild_RandomAndSleepy(t *testing.T) {
	snapshot := light.Collection{1: onLight(0, 0, 0), 2: onLight(0, 0, 0)}

	tests := []struct {
		kind           Kind
		hueMin, hueMax uint16
	}{
		{KindRandom, 0, 65535},
		{KindSleepy, 35000, 47999},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			a, err := Build(Spec{Kind: tt.kind, Transition: 2 * time.Second, Hold: time.Second}, snapshot, NewSource(5), nil)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if a.Len() != 1 {
				t.Fatalf("Len() = %d, want 1", a.Len())
			}
			for i := 0; i < 200; i++ {
				f, _ := a.Next(snapshot)
				if f.Delay() != 3*time.Second {
					t.Fatalf("Delay() = %v, want 3s", f.Delay())
				}
				for id, st := range f.States {
					if *st.Hue < tt.hueMin || *st.Hue > tt.hueMax {
						t.Fatalf("light %d hue %d out of range", id, *st.Hue)
					}
					if *st.Sat < 200 || *st.Sat >= 255 {
						t.Fatalf("light %d sat %d out of range", id, *st.Sat)
					}
				}
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	offOnly := light.Collection{1: {State: light.State{On: boolPtr(false)}, Reachable: true}}

	tests := []struct {
		name string
		spec Spec
		want error
	}{
		{"rotate/no_lights", Spec{Kind: KindRotate}, ErrNoDevices},
		{"rainbow/no_lights", Spec{Kind: KindRainbow}, ErrNoDevices},
		{"random/no_lights", Spec{Kind: KindRandom}, ErrNoDevices},
		{"script/no_loader", Spec{Kind: KindScript, Script: "x"}, ErrScriptUnavailable},
		{"unknown", Spec{Kind: "strobe"}, ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.spec, offOnly, NewSource(1), nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

type fakeLoader struct {
	steps  []Step
	closed bool
}

func (l *fakeLoader) Load(name string, src *rand.Rand) ([]Step, io.Closer, error) {
	return l.steps, l, nil
}

func (l *fakeLoader) Close() error {
	l.closed = true
	return nil
}

func TestBuild_Script(t *testing.T) {
	loader := &fakeLoader{steps: []Step{{Transforms: map[light.DeviceID]Transform{1: {On: Toggle()}}}}}
	a, err := Build(Spec{Kind: KindScript, Script: "blink"}, nil, NewSource(1), loader)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if a.Name() != "script:blink" {
		t.Errorf("Name() = %q", a.Name())
	}
	a.Close()
	if !loader.closed {
		t.Error("Close() did not release the script")
	}

	empty := &fakeLoader{}
	if _, err := Build(Spec{Kind: KindScript, Script: "none"}, nil, NewSource(1), empty); !errors.Is(err, ErrNoSteps) {
		t.Errorf("Build(empty script) error = %v, want ErrNoSteps", err)
	}
	if !empty.closed {
		t.Error("failed build did not release the script")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Rainbow "); err != nil || k != KindRainbow {
		t.Errorf("ParseKind(Rainbow) = %q, %v", k, err)
	}
	if _, err := ParseKind("disco"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ParseKind(disco) error = %v", err)
	}
}
