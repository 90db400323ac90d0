package engine

import "errors"

var (
	// ErrEngineStopped is returned when submitting to an engine that has been closed.
	ErrEngineStopped = errors.New("engine stopped")

	// ErrCommandsClosed is returned by Run when the command queue was closed.
	ErrCommandsClosed = errors.New("command queue closed")
)
