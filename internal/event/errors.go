package event

import "errors"

// Sentinel errors for the event bus.
var (
	// ErrInvalidTopic is returned when a topic is empty or malformed.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrSubscriptionNotFound is returned when trying to unsubscribe a non-existent subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// HandlerError wraps an error from a handler with additional context.
type HandlerError struct {
	// SubscriptionID is the ID of the subscription whose handler failed.
	SubscriptionID string

	// Topic is the topic being published.
	Topic Topic

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "handler error for subscription " + e.SubscriptionID + " on topic " + string(e.Topic) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic value as an error.
type PanicError struct {
	SubscriptionID string
	Topic          Topic
	Value          any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "handler panic for subscription " + e.SubscriptionID + " on topic " + string(e.Topic)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
