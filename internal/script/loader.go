// Package script loads animations written in Lua.
//
// A script returns a list of steps:
//
//	return {
//	  { transition = 1.5, lights = {
//	      [1] = { hue = 1000, sat = 254 },
//	      [2] = { hue = { op = "add", value = 4096 }, bri = { op = "average" } },
//	      [3] = { on = { op = "toggle" }, hue = function(lights, prev, id) return (prev or 0) + 100 end },
//	  } },
//	}
//
// Numbers and booleans are constants. Tables select an operation:
// set, add, mul, random, range (min, max) and average for numbers;
// set, random and toggle for "on". Functions are called on every frame
// with the active lights, the previous value and the light id, and
// return the new value or nil.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/light"
)

var (
	// ErrInvalidName is returned for script names that aren't plain file names.
	ErrInvalidName = errors.New("invalid script name")

	// ErrInvalidScript is returned when a script doesn't describe valid steps.
	ErrInvalidScript = errors.New("invalid script")
)

// Script code runs on the engine goroutine, so it is never allowed to run unbounded.
var (
	// CallTimeout bounds one call of a script function during a frame.
	CallTimeout = 50 * time.Millisecond

	// LoadTimeout bounds running the script file itself.
	LoadTimeout = 2 * time.Second
)

// Loader reads scripts from a directory. It implements animation.ScriptLoader.
type Loader struct {
	dir string
}

// NewLoader creates a loader for scripts under dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load runs <dir>/<name>.lua and converts its result to steps.
// The returned closer owns the Lua state; functions in the steps stay
// valid until it is closed.
func (l *Loader) Load(name string, src *rand.Rand) ([]animation.Step, io.Closer, error) {
	name = strings.TrimSuffix(name, ".lua")
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(l.dir, name+".lua")

	return compile(name, src, func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString is like Load but takes the script source directly.
func LoadString(name, code string, src *rand.Rand) ([]animation.Step, io.Closer, error) {
	return compile(name, src, func(L *lua.LState) error { return L.DoString(code) })
}

type program struct {
	L *lua.LState
}

func (p *program) Close() error {
	p.L.Close()
	return nil
}

func compile(name string, src *rand.Rand, run func(*lua.LState) error) ([]animation.Step, io.Closer, error) {
	L := lua.NewState()
	L.PreloadModule("log", logLoader(name))

	ctx, cancel := context.WithTimeout(context.Background(), LoadTimeout)
	L.SetContext(ctx)
	err := run(L)
	L.RemoveContext()
	cancel()
	if err != nil {
		L.Close()
		return nil, nil, fmt.Errorf("script %s: %w", name, err)
	}

	if L.GetTop() == 0 {
		L.Close()
		return nil, nil, fmt.Errorf("%w: %s returned nothing", ErrInvalidScript, name)
	}
	ret := L.Get(-1)
	L.Pop(1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		L.Close()
		return nil, nil, fmt.Errorf("%w: %s must return a table of steps, got %s", ErrInvalidScript, name, ret.Type())
	}

	p := &parser{L: L, src: src, name: name}
	steps, err := p.steps(tbl)
	if err != nil {
		L.Close()
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidScript, name, err)
	}

	log.Info().Str("script", name).Int("steps", len(steps)).Msg("Script loaded")
	return steps, &program{L: L}, nil
}

type parser struct {
	L    *lua.LState
	src  *rand.Rand
	name string
}

func (p *parser) steps(tbl *lua.LTable) ([]animation.Step, error) {
	n := tbl.Len()
	steps := make([]animation.Step, 0, n)
	for i := 1; i <= n; i++ {
		st, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("step %d is not a table", i)
		}
		step, err := p.step(st)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (p *parser) step(tbl *lua.LTable) (animation.Step, error) {
	step := animation.Step{Transforms: make(map[light.DeviceID]animation.Transform)}

	if secs, ok := numberField(tbl, "transition"); ok {
		if secs < 0 {
			return step, fmt.Errorf("negative transition")
		}
		d := time.Duration(secs * float64(time.Second))
		step.TransitionTime = &d
	}

	lights, ok := tbl.RawGetString("lights").(*lua.LTable)
	if !ok {
		return step, fmt.Errorf("missing lights table")
	}
	for _, key := range intKeys(lights) {
		if key <= 0 || key > 255 {
			return step, fmt.Errorf("light id %d out of range", key)
		}
		lt, ok := lights.RawGetInt(key).(*lua.LTable)
		if !ok {
			return step, fmt.Errorf("light %d is not a table", key)
		}
		id := light.DeviceID(key)
		tr, err := p.transform(id, lt)
		if err != nil {
			return step, fmt.Errorf("light %d: %w", key, err)
		}
		step.Transforms[id] = tr
	}
	return step, nil
}

func (p *parser) transform(id light.DeviceID, tbl *lua.LTable) (animation.Transform, error) {
	var (
		tr  animation.Transform
		err error
	)
	if tr.On, err = parseBoolOp(p, id, tbl.RawGetString("on")); err != nil {
		return tr, fmt.Errorf("on: %w", err)
	}
	if tr.Hue, err = parseNumberOp(p, id, tbl.RawGetString("hue"), func(s light.State) *uint16 { return s.Hue }); err != nil {
		return tr, fmt.Errorf("hue: %w", err)
	}
	if tr.Sat, err = parseNumberOp(p, id, tbl.RawGetString("sat"), func(s light.State) *uint8 { return s.Sat }); err != nil {
		return tr, fmt.Errorf("sat: %w", err)
	}
	if tr.Bri, err = parseNumberOp(p, id, tbl.RawGetString("bri"), func(s light.State) *uint8 { return s.Bri }); err != nil {
		return tr, fmt.Errorf("bri: %w", err)
	}
	if tr.TransitionTime, err = parseNumberOp(p, id, tbl.RawGetString("transitiontime"), func(s light.State) *uint16 { return s.TransitionTime }); err != nil {
		return tr, fmt.Errorf("transitiontime: %w", err)
	}
	return tr, nil
}

func parseBoolOp(p *parser, id light.DeviceID, v lua.LValue) (*animation.Operation[bool], error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return animation.Set(animation.Constant(bool(val))), nil
	case *lua.LFunction:
		return animation.Apply[bool](&luaApplier[bool]{L: p.L, fn: val, id: id, script: p.name}), nil
	case *lua.LTable:
		switch op := lua.LVAsString(val.RawGetString("op")); op {
		case "set":
			b, ok := val.RawGetString("value").(lua.LBool)
			if !ok {
				return nil, fmt.Errorf("set needs a boolean value")
			}
			return animation.Set(animation.Constant(bool(b))), nil
		case "random":
			return animation.Set(animation.Random[bool](p.src)), nil
		case "toggle":
			return animation.Toggle(), nil
		default:
			return nil, fmt.Errorf("unknown operation %q", op)
		}
	}
	return nil, fmt.Errorf("unsupported value %s", v.Type())
}

func parseNumberOp[T animation.Number](p *parser, id light.DeviceID, v lua.LValue, field func(light.State) *T) (*animation.Operation[T], error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LNumber:
		n, _ := toValue[T](val)
		return animation.Set(animation.Constant(n)), nil
	case *lua.LFunction:
		return animation.Apply[T](&luaApplier[T]{L: p.L, fn: val, id: id, script: p.name}), nil
	case *lua.LTable:
		op := lua.LVAsString(val.RawGetString("op"))
		switch op {
		case "random":
			return animation.Set(animation.Random[T](p.src)), nil
		case "average":
			return animation.Average(field), nil
		case "range":
			lo, okLo := toValue[T](val.RawGetString("min"))
			hi, okHi := toValue[T](val.RawGetString("max"))
			if !okLo || !okHi {
				return nil, fmt.Errorf("range needs numeric min and max")
			}
			r, err := animation.RandomRange(p.src, lo, hi)
			if err != nil {
				return nil, err
			}
			return animation.Set(r), nil
		}

		n, ok := toValue[T](val.RawGetString("value"))
		if !ok {
			return nil, fmt.Errorf("%s needs a numeric value", op)
		}
		switch op {
		case "set":
			return animation.Set(animation.Constant(n)), nil
		case "add":
			return animation.Add(animation.Constant(n)), nil
		case "mul":
			return animation.Multiply(animation.Constant(n)), nil
		}
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	return nil, fmt.Errorf("unsupported value %s", v.Type())
}
