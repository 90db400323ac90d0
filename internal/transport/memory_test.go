package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/dokzlo13/huemotion/internal/light"
)

func TestMemory_ApplyMerges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(light.Collection{
		1: {Name: "lamp", State: light.State{}.WithOn(true).WithHue(10).WithBri(100), Reachable: true},
	})

	if err := m.Apply(ctx, 1, light.State{}.WithHue(20).WithTransitionTime(5)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	lights, err := m.Lights(ctx)
	if err != nil {
		t.Fatalf("Lights() error = %v", err)
	}
	st := lights[1].State
	if *st.Hue != 20 || *st.Bri != 100 || !*st.On {
		t.Errorf("state after Apply = %+v", st)
	}
	if st.TransitionTime != nil {
		t.Error("transition time should not be stored")
	}

	writes := m.Writes()
	if len(writes) != 1 || writes[0].State.TransitionTime == nil || *writes[0].State.TransitionTime != 5 {
		t.Errorf("Writes() = %+v", writes)
	}
}

func TestMemory_LightsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(light.Collection{1: {State: light.State{}.WithBri(1)}})

	lights, _ := m.Lights(ctx)
	*lights[1].State.Bri = 99

	again, _ := m.Lights(ctx)
	if *again[1].State.Bri != 1 {
		t.Error("mutating a snapshot changed the transport state")
	}
}

func TestMemory_Failures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(light.Collection{1: {}})

	m.FailLights(1)
	if _, err := m.Lights(ctx); !errors.Is(err, ErrInjected) {
		t.Errorf("Lights() error = %v, want ErrInjected", err)
	}
	if _, err := m.Lights(ctx); err != nil {
		t.Errorf("second Lights() error = %v", err)
	}

	m.FailApply(1, true)
	if err := m.Apply(ctx, 1, light.State{}.WithOn(true)); !errors.Is(err, ErrInjected) {
		t.Errorf("Apply() error = %v, want ErrInjected", err)
	}
	if err := m.Apply(ctx, 7, light.State{}.WithOn(true)); !errors.Is(err, ErrUnknownLight) {
		t.Errorf("Apply(unknown) error = %v, want ErrUnknownLight", err)
	}
}

func TestMemory_WriteLogIsBounded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(light.Collection{1: {Name: "lamp", Reachable: true}})

	total := MaxWrites + 10
	for i := 0; i < total; i++ {
		if err := m.Apply(ctx, 1, light.State{}.WithHue(uint16(i))); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}

	writes := m.Writes()
	if len(writes) != MaxWrites {
		t.Fatalf("len(Writes()) = %d, want %d", len(writes), MaxWrites)
	}
	if got := *writes[0].State.Hue; got != 10 {
		t.Errorf("oldest kept hue = %d, want 10", got)
	}
	if got := *writes[len(writes)-1].State.Hue; got != uint16(total-1) {
		t.Errorf("newest hue = %d, want %d", got, total-1)
	}
}
