package repl

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/light"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want engine.Command
	}{
		{"on 1", engine.On{ID: 1}},
		{"  OFF 12 ", engine.Off{ID: 12}},
		{"hue 3 30000", engine.SetState{ID: 3, State: light.State{}.WithHue(30000)}},
		{"sat 3 200", engine.SetState{ID: 3, State: light.State{}.WithSat(200)}},
		{"bri 3 10", engine.SetState{ID: 3, State: light.State{}.WithBri(10)}},
		{"tt 3 40", engine.SetState{ID: 3, State: light.State{}.WithTransitionTime(40)}},
		{"hsv 2 100 150 200", engine.SetState{ID: 2, State: light.State{}.WithHue(100).WithSat(150).WithBri(200)}},
		{"rotate 2 1", engine.StartAnimation{Source: "test", Spec: animation.Spec{
			Kind: animation.KindRotate, Transition: 2 * time.Second, Hold: time.Second,
		}}},
		{"anim 1.5", engine.StartAnimation{Source: "test", Spec: animation.Spec{
			Kind: animation.KindRotate, Transition: 1500 * time.Millisecond,
		}}},
		{"rotate 2 0 1 3", engine.StartAnimation{Source: "test", Spec: animation.Spec{
			Kind: animation.KindRotate, Transition: 2 * time.Second, Devices: []light.DeviceID{1, 3},
		}}},
		{"rand 500ms 5", engine.StartAnimation{Source: "test", Spec: animation.Spec{
			Kind: animation.KindRandom, Transition: 500 * time.Millisecond, Hold: 5 * time.Second,
		}}},
		{"sleepy 5 10", engine.StartAnimation{Source: "test", Spec: animation.Spec{
			Kind: animation.KindSleepy, Transition: 5 * time.Second, Hold: 10 * time.Second,
		}}},
		{"rainbow 30", engine.StartAnimation{Source: "test", Spec: animation.Spec{
			Kind: animation.KindRainbow, Period: 30 * time.Second,
		}}},
		{"script waves 2", engine.StartAnimation{Source: "test", Spec: animation.Spec{
			Kind: animation.KindScript, Script: "waves", Hold: 2 * time.Second,
		}}},
		{"stop", engine.Stop{}},
		{"lights", engine.GetLights{}},
		{"q", engine.Quit{}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line, "test")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrEmpty},
		{"   ", ErrEmpty},
		{"dance", ErrUnknownCommand},
		{"on", ErrUsage},
		{"on 0", ErrUsage},
		{"on 256", ErrUsage},
		{"sat 1 256", ErrUsage},
		{"hue 1 -1", ErrUsage},
		{"hsv 1 2 3", ErrUsage},
		{"rotate", ErrUsage},
		{"rotate -1", ErrUsage},
		{"rainbow soon", ErrUsage},
		{"script", ErrUsage},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := Parse(tt.line, "test")
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

type fakeExecutor struct {
	cmds []engine.Command
	res  engine.Result
}

func (f *fakeExecutor) Do(ctx context.Context, cmd engine.Command) (engine.Result, error) {
	f.cmds = append(f.cmds, cmd)
	return f.res, f.res.Err
}

func TestRun(t *testing.T) {
	exec := &fakeExecutor{res: engine.Result{
		RunID:  "run-1",
		Lights: light.Collection{1: {Name: "Desk", Reachable: true}},
	}}
	in := strings.NewReader("on 1\nbogus\n\nlights\nrotate 1 1\nquit\non 2\n")
	var out bytes.Buffer

	if err := Run(context.Background(), exec, in, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(exec.cmds) != 4 {
		t.Fatalf("executed %d commands, want 4 (stop at quit)", len(exec.cmds))
	}
	text := out.String()
	for _, want := range []string{"ok", "unknown command", "Desk", "started run-1"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRun_EOF(t *testing.T) {
	exec := &fakeExecutor{}
	if err := Run(context.Background(), exec, strings.NewReader("stop"), &bytes.Buffer{}); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if len(exec.cmds) != 1 {
		t.Errorf("executed %d commands, want 1", len(exec.cmds))
	}
}
