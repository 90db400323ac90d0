// Package repl turns one-line text commands into engine commands.
//
//	on 1                 off 1
//	hue 1 30000          sat 1 200          bri 1 120
//	hsv 1 30000 200 120  tt 1 10            (transition in 100ms ticks)
//	rotate 2 1 [ids...]  random 2 5         sleepy 5 10
//	rainbow 30           script name [hold]
//	lights               stop               quit
//
// Durations are seconds ("1.5") or Go durations ("1500ms"). A missing
// hold time means zero.
package repl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/light"
)

var (
	// ErrEmpty is returned for blank lines.
	ErrEmpty = errors.New("empty command")

	// ErrUnknownCommand is returned for verbs the parser doesn't know.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUsage is returned when a known command has bad arguments.
	ErrUsage = errors.New("invalid arguments")
)

// Parse converts a command line into an engine command. source is stamped
// on animation requests.
func Parse(line, source string) (engine.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrEmpty
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "quit", "q", "exit":
		return engine.Quit{}, nil
	case "stop":
		return engine.Stop{}, nil
	case "lights", "list", "ls":
		return engine.GetLights{}, nil

	case "on", "off":
		if len(args) != 1 {
			return nil, usage(verb, "<light>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		if verb == "on" {
			return engine.On{ID: id}, nil
		}
		return engine.Off{ID: id}, nil

	case "hue", "sat", "bri", "tt":
		if len(args) != 2 {
			return nil, usage(verb, "<light> <value>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		st, err := attribute(verb, args[1])
		if err != nil {
			return nil, err
		}
		return engine.SetState{ID: id, State: st}, nil

	case "hsv", "hsb":
		if len(args) != 4 {
			return nil, usage(verb, "<light> <hue> <sat> <bri>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		st := light.State{}
		for i, attr := range []string{"hue", "sat", "bri"} {
			v, err := attribute(attr, args[i+1])
			if err != nil {
				return nil, err
			}
			st = light.Combine(st, v)
		}
		return engine.SetState{ID: id, State: st}, nil

	case "rotate", "anim", "random", "rand", "sleepy":
		kind := map[string]animation.Kind{
			"rotate": animation.KindRotate, "anim": animation.KindRotate,
			"random": animation.KindRandom, "rand": animation.KindRandom,
			"sleepy": animation.KindSleepy,
		}[verb]
		if len(args) < 1 {
			return nil, usage(verb, "<transition> [hold] [lights...]")
		}
		spec := animation.Spec{Kind: kind}
		var err error
		if spec.Transition, err = parseDuration(args[0]); err != nil {
			return nil, err
		}
		if len(args) > 1 {
			if spec.Hold, err = parseDuration(args[1]); err != nil {
				return nil, err
			}
		}
		for _, a := range args[min(len(args), 2):] {
			id, err := parseID(a)
			if err != nil {
				return nil, err
			}
			spec.Devices = append(spec.Devices, id)
		}
		return engine.StartAnimation{Spec: spec, Source: source}, nil

	case "rainbow":
		if len(args) != 1 {
			return nil, usage(verb, "<period>")
		}
		period, err := parseDuration(args[0])
		if err != nil {
			return nil, err
		}
		return engine.StartAnimation{Spec: animation.Spec{Kind: animation.KindRainbow, Period: period}, Source: source}, nil

	case "script":
		if len(args) < 1 || len(args) > 2 {
			return nil, usage(verb, "<name> [hold]")
		}
		spec := animation.Spec{Kind: animation.KindScript, Script: args[0]}
		if len(args) == 2 {
			var err error
			if spec.Hold, err = parseDuration(args[1]); err != nil {
				return nil, err
			}
		}
		return engine.StartAnimation{Spec: spec, Source: source}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
}

func attribute(name, s string) (light.State, error) {
	var bits int
	switch name {
	case "hue", "tt":
		bits = 16
	default:
		bits = 8
	}
	n, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return light.State{}, fmt.Errorf("%w: %s %q", ErrUsage, name, s)
	}

	switch name {
	case "hue":
		return light.State{}.WithHue(uint16(n)), nil
	case "sat":
		return light.State{}.WithSat(uint8(n)), nil
	case "bri":
		return light.State{}.WithBri(uint8(n)), nil
	}
	return light.State{}.WithTransitionTime(uint16(n)), nil
}

func parseID(s string) (light.DeviceID, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: light %q", ErrUsage, s)
	}
	return light.DeviceID(n), nil
}

func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("%w: negative duration %q", ErrUsage, s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: duration %q", ErrUsage, s)
	}
	return d, nil
}

func usage(verb, args string) error {
	return fmt.Errorf("%w: usage: %s %s", ErrUsage, verb, args)
}
