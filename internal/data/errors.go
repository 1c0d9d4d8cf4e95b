package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrCompletionNotFound is returned when no completion record matches a lookup.
	ErrCompletionNotFound = errors.New("completion not found")
	// ErrInvalidTransition is returned when a status change would move a record backwards
	// or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid completion status transition")
	// ErrEnqueueRequired is returned when CreatePending is called without an enqueue step.
	ErrEnqueueRequired = errors.New("enqueue func is required")
)
