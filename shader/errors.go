package shader

import "errors"

var (
	// ErrMissingPosition is returned when a stage emits no position.
	ErrMissingPosition = errors.New("shader: stage did not emit a position")

	// ErrMissingOutput is returned when a stage assigns neither the output
	// color nor the output coverage.
	ErrMissingOutput = errors.New("shader: stage assigned no output color or coverage")

	// ErrTooManySamplers is returned when a program samples more textures
	// than the device allows.
	ErrTooManySamplers = errors.New("shader: too many texture samplers")
)
