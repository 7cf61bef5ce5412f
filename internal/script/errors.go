package script

import "errors"

// Errors for script execution.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when execution exceeds its deadline.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrCapabilityDenied is returned when a script calls a gated function.
	ErrCapabilityDenied = errors.New("capability not granted")
)
