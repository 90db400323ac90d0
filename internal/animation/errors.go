package animation

import "errors"

var (
	// ErrInvalidRange is returned when a random range has min > max.
	ErrInvalidRange = errors.New("invalid range: min is greater than max")

	// ErrInvalidPeriod is returned for a rainbow period that is too long.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrNoSteps is returned when an animation would have no steps to play.
	ErrNoSteps = errors.New("animation has no steps")

	// ErrNoDevices is returned when a built-in animation finds no usable lights.
	ErrNoDevices = errors.New("no usable lights for animation")

	// ErrUnknownKind is returned for an unrecognized animation kind.
	ErrUnknownKind = errors.New("unknown animation kind")

	// ErrScriptUnavailable is returned when a script animation is requested
	// but no script loader is configured.
	ErrScriptUnavailable = errors.New("script animations are not available")
)
