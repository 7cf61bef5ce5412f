package config

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by configuration operations.
var (
	// ErrValidationFailed indicates a setting is out of range.
	ErrValidationFailed = errors.New("validation failed")

	// ErrNoConfigFile is returned when watching without a file.
	ErrNoConfigFile = errors.New("no config file")
)

// FieldError describes one invalid setting.
type FieldError struct {
	// Path is the dotted setting path, e.g. canvas.width.
	Path    string
	Message string
	Value   any
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Path, e.Message, e.Value)
}

// ValidationError collects every invalid setting found by Validate.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Is matches ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
