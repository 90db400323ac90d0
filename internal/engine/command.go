package engine

import (
	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/light"
)

// Result is sent back on a command's reply channel once it has been handled.
type Result struct {
	Lights light.Collection // GetLights only
	RunID  string           // StartAnimation only
	Err    error
}

// Command is a request processed by the run loop. Each command may carry a
// reply channel; the loop never blocks on it, so it must be buffered.
type Command interface {
	Name() string
	replyTo() chan<- Result
	withReply(chan<- Result) Command
}

// On powers a light on.
type On struct {
	ID    light.DeviceID
	Reply chan<- Result
}

// Off powers a light off.
type Off struct {
	ID    light.DeviceID
	Reply chan<- Result
}

// SetState applies a partial state to a light.
type SetState struct {
	ID    light.DeviceID
	State light.State
	Reply chan<- Result
}

// StartAnimation builds an animation and makes it the active one,
// replacing whatever was playing.
type StartAnimation struct {
	Spec   animation.Spec
	Source string // who asked: api, mqtt, repl, schedule, resume
	Reply  chan<- Result
}

// Stop clears the active animation.
type Stop struct {
	Reply chan<- Result
}

// Quit makes the run loop exit.
type Quit struct {
	Reply chan<- Result
}

// GetLights returns the current snapshot from the transport.
type GetLights struct {
	Reply chan<- Result
}

func (c On) Name() string             { return "on" }
func (c Off) Name() string            { return "off" }
func (c SetState) Name() string       { return "state" }
func (c StartAnimation) Name() string { return "animation" }
func (c Stop) Name() string           { return "stop" }
func (c Quit) Name() string           { return "quit" }
func (c GetLights) Name() string      { return "lights" }

func (c On) replyTo() chan<- Result             { return c.Reply }
func (c Off) replyTo() chan<- Result            { return c.Reply }
func (c SetState) replyTo() chan<- Result       { return c.Reply }
func (c StartAnimation) replyTo() chan<- Result { return c.Reply }
func (c Stop) replyTo() chan<- Result           { return c.Reply }
func (c Quit) replyTo() chan<- Result           { return c.Reply }
func (c GetLights) replyTo() chan<- Result      { return c.Reply }

func (c On) withReply(r chan<- Result) Command             { c.Reply = r; return c }
func (c Off) withReply(r chan<- Result) Command            { c.Reply = r; return c }
func (c SetState) withReply(r chan<- Result) Command       { c.Reply = r; return c }
func (c StartAnimation) withReply(r chan<- Result) Command { c.Reply = r; return c }
func (c Stop) withReply(r chan<- Result) Command           { c.Reply = r; return c }
func (c Quit) withReply(r chan<- Result) Command           { c.Reply = r; return c }
func (c GetLights) withReply(r chan<- Result) Command      { c.Reply = r; return c }

func reply(cmd Command, res Result) {
	ch := cmd.replyTo()
	if ch == nil {
		return
	}
	select {
	case ch <- res:
	default:
	}
}
