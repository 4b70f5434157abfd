package ticket

import "errors"

// Domain errors for ticket store operations.
var (
	// ErrTicketNotFound is returned when a ticket does not exist.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrTicketExists is returned when creating a ticket whose id is
	// already present in the store.
	ErrTicketExists = errors.New("ticket already exists")

	// ErrAlreadyResolved is returned when a transition is attempted on a
	// ticket that is no longer in the expected state.
	ErrAlreadyResolved = errors.New("ticket already resolved")

	// ErrInvalidID is returned when a ticket id is invalid (e.g. empty).
	ErrInvalidID = errors.New("invalid ticket ID")

	// ErrInvalidStatus is returned when a status value is not a known
	// lifecycle state or a transition is not permitted.
	ErrInvalidStatus = errors.New("invalid ticket status")

	// ErrStoreClosed is returned when the store has been closed.
	ErrStoreClosed = errors.New("ticket store closed")
)
