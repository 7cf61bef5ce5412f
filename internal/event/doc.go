// Package event provides the in-process event bus for inkwell.
//
// # Topic Format
//
// Topics use dot-notation to create hierarchical namespaces:
//
//	history.changed
//	outline.completed
//	config.reloaded
//
// # Wildcards
//
// Subscriptions may use patterns:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// Examples:
//
//	outline.*     matches outline.completed, outline.failed
//	**            matches everything
//
// # Delivery
//
// Publish delivers synchronously to every matching subscription in the order
// subscriptions were made. A panicking handler is recovered and reported as
// a PanicError; remaining handlers still run.
package event
