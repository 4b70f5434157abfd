// Package memory provides an in-memory implementation of ticket.Store.
//
// The store is safe for concurrent use within a single process but keeps
// no state across restarts; it exists for tests and demo runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
)

// TicketStore is an in-memory implementation of ticket.Store.
type TicketStore struct {
	tickets map[string]*ticket.Ticket
	mu      sync.RWMutex
	closed  bool
}

// NewTicketStore creates a new in-memory ticket store.
func NewTicketStore() *TicketStore {
	return &TicketStore{
		tickets: make(map[string]*ticket.Ticket),
	}
}

// Create persists a new ticket.
func (s *TicketStore) Create(ctx context.Context, t *ticket.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" {
		return ticket.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ticket.ErrStoreClosed
	}
	if _, exists := s.tickets[t.ID]; exists {
		return ticket.ErrTicketExists
	}

	s.tickets[t.ID] = t.Clone()
	return nil
}

// Get retrieves a ticket by id.
func (s *TicketStore) Get(ctx context.Context, id string) (*ticket.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ticket.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ticket.ErrStoreClosed
	}
	t, ok := s.tickets[id]
	if !ok {
		return nil, ticket.ErrTicketNotFound
	}
	return t.Clone(), nil
}

// CompareAndTransition atomically applies a status transition.
func (s *TicketStore) CompareAndTransition(ctx context.Context, id string, from, to ticket.Status, mutate func(*ticket.Ticket)) (*ticket.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ticket.ErrInvalidID
	}
	if !ticket.ValidTransition(from, to) {
		return nil, ticket.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ticket.ErrStoreClosed
	}
	t, ok := s.tickets[id]
	if !ok {
		return nil, ticket.ErrTicketNotFound
	}
	if t.Status != from {
		return nil, ticket.ErrAlreadyResolved
	}

	updated := t.Clone()
	updated.Status = to
	updated.UpdatedAt = time.Now().UTC()
	if mutate != nil {
		mutate(updated)
	}

	s.tickets[id] = updated
	return updated.Clone(), nil
}

// ListByStatus returns a snapshot of tickets in the given status.
func (s *TicketStore) ListByStatus(ctx context.Context, status ticket.Status) ([]*ticket.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ticket.ErrStoreClosed
	}
	var out []*ticket.Ticket
	for _, t := range s.tickets {
		if t.Status == status {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// SweepOlderThan deletes aged tickets in the given statuses.
func (s *TicketStore) SweepOlderThan(ctx context.Context, maxAge time.Duration, statuses ...ticket.Status) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ticket.ErrStoreClosed
	}
	removed := 0
	for id, t := range s.tickets {
		if !t.UpdatedAt.Before(cutoff) {
			continue
		}
		for _, status := range statuses {
			if t.Status == status {
				delete(s.tickets, id)
				removed++
				break
			}
		}
	}
	return removed, nil
}

// Len returns the number of stored tickets.
func (s *TicketStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tickets)
}

// Close marks the store closed.
func (s *TicketStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ ticket.Store = (*TicketStore)(nil)
