package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/light"
	"github.com/dokzlo13/huemotion/internal/repl"
)

// ErrInvalidMessage is returned for payloads that can't be turned into a command.
var ErrInvalidMessage = errors.New("invalid mqtt message")

// Message is the JSON payload accepted on the command topic.
//
//	{"action":"on","light":1}
//	{"action":"state","light":1,"state":{"hue":30000,"bri":100}}
//	{"action":"animate","kind":"rotate","transition":2,"hold":1,"devices":[1,2]}
//	{"action":"stop"}
//	{"command":"rainbow 30"}
//
// Durations are seconds.
type Message struct {
	Action     string           `json:"action"`
	Light      light.DeviceID   `json:"light,omitempty"`
	State      *light.State     `json:"state,omitempty"`
	Kind       string           `json:"kind,omitempty"`
	Transition float64          `json:"transition,omitempty"`
	Hold       float64          `json:"hold,omitempty"`
	Period     float64          `json:"period,omitempty"`
	Devices    []light.DeviceID `json:"devices,omitempty"`
	Hues       []uint16         `json:"hues,omitempty"`
	Script     string           `json:"script,omitempty"`
	Command    string           `json:"command,omitempty"` // text form, same syntax as the REPL
}

// ParseMessage decodes a payload into an engine command. A payload that is
// a JSON string holding JSON is unwrapped first.
func ParseMessage(payload []byte) (engine.Command, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		var inner string
		if json.Unmarshal(payload, &inner) != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if err := json.Unmarshal([]byte(inner), &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	}
	return msg.ToCommand()
}

// ToCommand converts the message into an engine command.
func (m Message) ToCommand() (engine.Command, error) {
	if m.Command != "" {
		return repl.Parse(m.Command, Source)
	}

	switch strings.ToLower(m.Action) {
	case "on":
		if m.Light == 0 {
			return nil, fmt.Errorf("%w: on needs a light", ErrInvalidMessage)
		}
		return engine.On{ID: m.Light}, nil
	case "off":
		if m.Light == 0 {
			return nil, fmt.Errorf("%w: off needs a light", ErrInvalidMessage)
		}
		return engine.Off{ID: m.Light}, nil
	case "state":
		if m.Light == 0 || m.State == nil {
			return nil, fmt.Errorf("%w: state needs a light and a state", ErrInvalidMessage)
		}
		return engine.SetState{ID: m.Light, State: *m.State}, nil
	case "animate":
		kind, err := animation.ParseKind(m.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		if m.Transition < 0 || m.Hold < 0 || m.Period < 0 {
			return nil, fmt.Errorf("%w: negative duration", ErrInvalidMessage)
		}
		return engine.StartAnimation{Source: Source, Spec: animation.Spec{
			Kind:       kind,
			Transition: seconds(m.Transition),
			Hold:       seconds(m.Hold),
			Period:     seconds(m.Period),
			Devices:    m.Devices,
			Hues:       m.Hues,
			Script:     m.Script,
		}}, nil
	case "stop":
		return engine.Stop{}, nil
	}
	return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidMessage, m.Action)
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
