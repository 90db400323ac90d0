package animation

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dokzlo13/huemotion/internal/light"
)

// Kind names a built-in animation.
type Kind string

const (
	KindRotate  Kind = "rotate"
	KindRainbow Kind = "rainbow"
	KindRandom  Kind = "random"
	KindSleepy  Kind = "sleepy"
	KindScript  Kind = "script"
)

// Kinds lists every known animation kind.
var Kinds = []Kind{KindRotate, KindRainbow, KindRandom, KindSleepy, KindScript}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Rainbow timing.
const (
	MinRainbowPeriod    = 3 * time.Second
	RainbowStepDuration = 500 * time.Millisecond

	// MaxRainbowPeriod keeps the per-step hue increment above zero.
	MaxRainbowPeriod = 65535 * RainbowStepDuration
)

// Random color ranges.
const (
	randomSatMin uint8  = 200
	randomSatMax uint8  = 255
	sleepyHueMin uint16 = 35000
	sleepyHueMax uint16 = 48000
)

// Spec is a serializable description of an animation to build.
type Spec struct {
	Kind       Kind             `json:"kind"`
	Transition time.Duration    `json:"transition"`
	Hold       time.Duration    `json:"hold"`
	Period     time.Duration    `json:"period,omitempty"`  // rainbow only
	Devices    []light.DeviceID `json:"devices,omitempty"` // empty = all active lights
	Hues       []uint16         `json:"hues,omitempty"`    // rotate only
	Script     string           `json:"script,omitempty"`  // script only
}

// ScriptLoader builds steps from a named user script.
// The returned closer releases the script's resources.
type ScriptLoader interface {
	Load(name string, src *rand.Rand) ([]Step, io.Closer, error)
}

// Build constructs the animation described by spec against the current
// snapshot. Configuration problems are returned as errors.
func Build(spec Spec, snapshot light.Collection, src *rand.Rand, scripts ScriptLoader) (*Animation, error) {
	var (
		a   *Animation
		err error
	)

	switch spec.Kind {
	case KindRotate:
		a, err = buildRotate(spec, snapshot)
	case KindRainbow:
		a, err = buildRainbow(spec, snapshot)
	case KindRandom:
		a, err = buildRandom(spec, snapshot, Random[uint16](src), src)
	case KindSleepy:
		a, err = buildRandom(spec, snapshot, MustRandomRange(src, sleepyHueMin, sleepyHueMax), src)
	case KindScript:
		a, err = buildScript(spec, src, scripts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", spec.Kind, err)
	}

	if err := a.Validate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("build %s: %w", spec.Kind, err)
	}
	return a, nil
}

// buildRotate cycles colors between lights, one position per step.
// Without explicit hues, the current colors of the lights are rotated.
func buildRotate(spec Spec, snapshot light.Collection) (*Animation, error) {
	lights := snapshot.Active().Filter(spec.Devices)

	var (
		ids    []light.DeviceID
		colors []light.State
	)
	if len(spec.Hues) > 0 {
		ids = lights.IDs()
		bri, ok := averageBri(lights)
		for _, h := range spec.Hues {
			c := light.State{}.WithHue(h).WithSat(255)
			if ok {
				c = c.WithBri(bri)
			}
			colors = append(colors, c)
		}
	} else {
		for _, id := range lights.IDs() {
			st := lights[id].State
			if !st.HasColor() {
				continue
			}
			ids = append(ids, id)
			colors = append(colors, st.Clone())
		}
	}
	if len(ids) == 0 || len(colors) == 0 {
		return nil, ErrNoDevices
	}

	n := len(colors)
	transition := spec.Transition
	steps := make([]Step, n)
	for k := 0; k < n; k++ {
		transforms := make(map[light.DeviceID]Transform, len(ids))
		for i, id := range ids {
			if i >= n {
				break
			}
			c := colors[((i-(k+1))%n+n)%n]
			transforms[id] = SetColor(*c.Hue, *c.Sat, c.Bri)
		}
		steps[k] = Step{Transforms: transforms, TransitionTime: &transition}
	}

	return New(string(KindRotate), spec.Hold, steps...), nil
}

// averageBri is the mean brightness of the lights that report one.
func averageBri(lights light.Collection) (uint8, bool) {
	var sum, n int
	for _, l := range lights {
		if l.State.Bri != nil {
			sum += int(*l.State.Bri)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return uint8(sum / n), true
}

// buildRainbow spreads the hue wheel across lights and walks it over one period.
func buildRainbow(spec Spec, snapshot light.Collection) (*Animation, error) {
	ids := snapshot.Active().Filter(spec.Devices).IDs()
	if len(ids) == 0 {
		return nil, ErrNoDevices
	}

	period := spec.Period
	if period < MinRainbowPeriod {
		period = MinRainbowPeriod
	}
	if period > MaxRainbowPeriod {
		return nil, fmt.Errorf("%w: %s is longer than %s", ErrInvalidPeriod, period, MaxRainbowPeriod)
	}
	count := int(period / RainbowStepDuration)
	transition := period / time.Duration(count)
	hueStep := uint16(65535 / count)
	offset := uint16(65535 / len(ids))

	steps := make([]Step, count)
	for s := 0; s < count; s++ {
		base := uint16(s) * hueStep
		transforms := make(map[light.DeviceID]Transform, len(ids))
		for i, id := range ids {
			transforms[id] = SetColor(base+uint16(i)*offset, 255, nil)
		}
		steps[s] = Step{Transforms: transforms, TransitionTime: &transition}
	}

	return New(string(KindRainbow), spec.Hold, steps...), nil
}

// buildRandom gives each light a fresh random color on every step.
func buildRandom(spec Spec, snapshot light.Collection, hue Producer[uint16], src *rand.Rand) (*Animation, error) {
	ids := snapshot.Active().Filter(spec.Devices).IDs()
	if len(ids) == 0 {
		return nil, ErrNoDevices
	}

	sat, err := RandomRange(src, randomSatMin, randomSatMax)
	if err != nil {
		return nil, err
	}

	transforms := make(map[light.DeviceID]Transform, len(ids))
	for _, id := range ids {
		transforms[id] = Transform{
			Hue: Set(hue),
			Sat: Set(sat),
		}
	}
	transition := spec.Transition

	return New(string(spec.Kind), spec.Hold, Step{Transforms: transforms, TransitionTime: &transition}), nil
}

func buildScript(spec Spec, src *rand.Rand, scripts ScriptLoader) (*Animation, error) {
	if scripts == nil {
		return nil, ErrScriptUnavailable
	}
	steps, closer, err := scripts.Load(spec.Script, src)
	if err != nil {
		return nil, err
	}
	return New(string(KindScript)+":"+spec.Script, spec.Hold, steps...).withCloser(closer), nil
}
