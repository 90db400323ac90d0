package repl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/light"
)

// ReplyTimeout bounds how long a command waits for the engine.
const ReplyTimeout = 5 * time.Second

// Executor runs a command and waits for its result. *engine.Engine implements it.
type Executor interface {
	Do(ctx context.Context, cmd engine.Command) (engine.Result, error)
}

// Run reads commands from in until EOF, quit or ctx cancellation, and
// writes results to out. Returns nil after quit or EOF.
func Run(ctx context.Context, exec Executor, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprint(out, "> ")
	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-scanErr:
				return err
			default:
				return nil
			}
		}

		cmd, err := Parse(line, "repl")
		switch {
		case errors.Is(err, ErrEmpty):
		case err != nil:
			fmt.Fprintln(out, err)
		default:
			if quit := execute(ctx, exec, cmd, out); quit {
				return nil
			}
		}
		fmt.Fprint(out, "> ")
	}
}

func execute(ctx context.Context, exec Executor, cmd engine.Command, out io.Writer) bool {
	ctx, cancel := context.WithTimeout(ctx, ReplyTimeout)
	defer cancel()

	res, err := exec.Do(ctx, cmd)
	if err != nil {
		log.Debug().Err(err).Str("command", cmd.Name()).Msg("REPL command failed")
		fmt.Fprintln(out, "error:", err)
		return false
	}

	switch cmd.(type) {
	case engine.Quit:
		return true
	case engine.GetLights:
		for _, id := range res.Lights.IDs() {
			l := res.Lights[id]
			fmt.Fprintf(out, "%3d  %-20s reachable=%-5t %s\n", id, l.Name, l.Reachable, describe(l.State))
		}
	case engine.StartAnimation:
		fmt.Fprintln(out, "started", res.RunID)
	default:
		fmt.Fprintln(out, "ok")
	}
	return false
}

func describe(st light.State) string {
	b, err := json.Marshal(st)
	if err != nil {
		return "?"
	}
	return string(b)
}
