package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrQuit signals that the application should exit normally.
	ErrQuit = errors.New("quit requested")

	// ErrAlreadyRunning indicates the application is already running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNoBackend indicates Run was called without a terminal backend.
	ErrNoBackend = errors.New("no backend")

	// ErrOutlineBusy indicates an outline request is already in flight.
	ErrOutlineBusy = errors.New("outline generation in progress")
)

// OperationError represents an error that occurred during a specific operation.
type OperationError struct {
	Op      string // Operation name (e.g., "export", "outline", "script")
	Target  string // Target of the operation (e.g., file path, prompt)
	Context string // Additional context
	Err     error  // Underlying error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{
		Op:     op,
		Target: target,
		Err:    err,
	}
}

// WithContext adds context to the error.
// Safe to call on nil receiver - returns nil.
func (e *OperationError) WithContext(ctx string) *OperationError {
	if e == nil {
		return nil
	}
	e.Context = ctx
	return e
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}

	var msg string
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	} else {
		msg = e.Op
	}

	if e.Context != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Context)
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// RecoveredPanicError wraps a panic value as an error. Error reports only
// the value; Stack is kept for logging.
type RecoveredPanicError struct {
	Value any
	Stack string
}

// NewRecoveredPanicError creates a new RecoveredPanicError.
func NewRecoveredPanicError(value any, stack string) *RecoveredPanicError {
	return &RecoveredPanicError{
		Value: value,
		Stack: stack,
	}
}

func (e *RecoveredPanicError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorList collects multiple errors.
// NOTE: ErrorList is NOT safe for concurrent use.
type ErrorList struct {
	errors []error
}

// Add adds an error to the list. Nil errors are ignored.
func (e *ErrorList) Add(err error) {
	if err != nil {
		e.errors = append(e.errors, err)
	}
}

// Len returns the number of errors.
func (e *ErrorList) Len() int {
	return len(e.errors)
}

// Error returns a combined error message.
func (e *ErrorList) Error() string {
	if e == nil || len(e.errors) == 0 {
		return ""
	}
	if len(e.errors) == 1 {
		return e.errors[0].Error()
	}
	return fmt.Sprintf("%d errors: first: %v", len(e.errors), e.errors[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *ErrorList) Unwrap() []error {
	return e.errors
}

// AsError returns nil if there are no errors, otherwise returns the ErrorList.
func (e *ErrorList) AsError() error {
	if len(e.errors) == 0 {
		return nil
	}
	return e
}
