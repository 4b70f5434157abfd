package approval

import "errors"

// Service errors.
var (
	// ErrInvalidDecision is returned when a resolution status is not
	// approved or rejected.
	ErrInvalidDecision = errors.New("approval: decision must be approved or rejected")

	// ErrAwaitTimeout is returned when AwaitResolution gives up waiting.
	// The ticket stays pending; only the expiry sweep times tickets out.
	ErrAwaitTimeout = errors.New("approval: timed out waiting for resolution")

	// ErrServiceClosed is returned after Close.
	ErrServiceClosed = errors.New("approval: service closed")
)
