package ticket

import (
	"context"
	"time"
)

// Store defines the interface for ticket persistence.
// Implementations may be in-memory, BadgerDB, SQLite, or any other backend
// that can serialize concurrent writers without lost updates.
type Store interface {
	// Create persists a new ticket. It fails with ErrTicketExists if the
	// id is already present and ErrInvalidID if the id is empty.
	Create(ctx context.Context, t *Ticket) error

	// Get retrieves a ticket by id, or ErrTicketNotFound.
	Get(ctx context.Context, id string) (*Ticket, error)

	// CompareAndTransition atomically reads the ticket, verifies its
	// current status equals from, applies mutate, advances UpdatedAt and
	// writes the record back. It fails with ErrTicketNotFound for unknown
	// ids and ErrAlreadyResolved when the current status differs from
	// the expected one. Every status change funnels through this method;
	// it is the single synchronization point for resolve semantics.
	CompareAndTransition(ctx context.Context, id string, from, to Status, mutate func(*Ticket)) (*Ticket, error)

	// ListByStatus returns a snapshot of tickets in the given status.
	// Ordering is unspecified.
	ListByStatus(ctx context.Context, status Status) ([]*Ticket, error)

	// SweepOlderThan deletes tickets in one of the given statuses whose
	// UpdatedAt is older than maxAge, returning the number removed.
	// Callers pass terminal statuses only; pending tickets are never the
	// target of a retention sweep.
	SweepOlderThan(ctx context.Context, maxAge time.Duration, statuses ...Status) (int, error)

	// Close releases store resources.
	Close() error
}
