package ctrl

import "errors"

var (
	// ErrNotPresent is returned by constructors when the hardware is absent.
	// The daemon treats it as "feature unavailable", never as fatal.
	ErrNotPresent = errors.New("hardware not present")
	// ErrUnsupported is returned for a requested value the hardware cannot take.
	ErrUnsupported = errors.New("unsupported value")
	// ErrStopped is returned when submitting to a controller whose task has exited.
	ErrStopped = errors.New("controller stopped")
)
