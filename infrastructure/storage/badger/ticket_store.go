package badger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
)

// TicketStore is a BadgerDB-backed implementation of ticket.Store.
//
// Each ticket is one JSON record keyed by id. All status changes run inside
// a single read-modify-write transaction, which gives the compare-and-
// transition guarantee without any locking discipline on the callers.
type TicketStore struct {
	db        *badger.DB
	keyPrefix string
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
}

// NewTicketStore opens a BadgerDB ticket store with the given configuration.
func NewTicketStore(cfg Config, opts ...Option) (*TicketStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &TicketStore{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		gcStop:    make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

// NewTicketStoreFromDB creates a ticket store from an existing database.
func NewTicketStoreFromDB(db *badger.DB, keyPrefix string) *TicketStore {
	return &TicketStore{
		db:        db,
		keyPrefix: keyPrefix,
		gcStop:    make(chan struct{}),
	}
}

func (s *TicketStore) startGC(interval time.Duration, discardRatio float64) {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				// ErrNoRewrite is the normal no-op outcome.
				_ = s.db.RunValueLogGC(discardRatio)
			case <-s.gcStop:
				return
			}
		}
	}()
}

func (s *TicketStore) key(id string) []byte {
	return []byte(s.keyPrefix + "tickets:" + id)
}

// update runs fn in a read-write transaction, retrying on optimistic
// concurrency conflicts. A retried resolver re-reads the record and so
// observes the winner's write.
func (s *TicketStore) update(fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
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

	key := s.key(t.ID)
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	err = s.update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ticket.ErrTicketExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if isClosed(err) {
		return ticket.ErrStoreClosed
	}
	return err
}

// Get retrieves a ticket by id.
func (s *TicketStore) Get(ctx context.Context, id string) (*ticket.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ticket.ErrInvalidID
	}

	var t ticket.Ticket
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ticket.ErrTicketNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	if isClosed(err) {
		return nil, ticket.ErrStoreClosed
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
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

	var updated ticket.Ticket
	err := s.update(func(txn *badger.Txn) error {
		key := s.key(id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ticket.ErrTicketNotFound
		}
		if err != nil {
			return err
		}

		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &updated)
		}); err != nil {
			return err
		}

		if updated.Status != from {
			return ticket.ErrAlreadyResolved
		}

		updated.Status = to
		updated.UpdatedAt = time.Now().UTC()
		if mutate != nil {
			mutate(&updated)
		}

		data, err := json.Marshal(&updated)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if isClosed(err) {
		return nil, ticket.ErrStoreClosed
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListByStatus returns a snapshot of tickets in the given status.
func (s *TicketStore) ListByStatus(ctx context.Context, status ticket.Status) ([]*ticket.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(s.keyPrefix + "tickets:")
	var out []*ticket.Ticket

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var t ticket.Ticket
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			})
			if err != nil {
				continue // skip malformed entries
			}
			if t.Status == status {
				out = append(out, t.Clone())
			}
		}
		return nil
	})
	if isClosed(err) {
		return nil, ticket.ErrStoreClosed
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SweepOlderThan deletes aged tickets in the given statuses.
func (s *TicketStore) SweepOlderThan(ctx context.Context, maxAge time.Duration, statuses ...ticket.Status) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	prefix := []byte(s.keyPrefix + "tickets:")
	removed := 0

	err := s.update(func(txn *badger.Txn) error {
		removed = 0 // the transaction may retry after a conflict

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			var t ticket.Ticket
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			})
			if err != nil {
				continue
			}
			if !t.UpdatedAt.Before(cutoff) {
				continue
			}
			for _, status := range statuses {
				if t.Status == status {
					stale = append(stale, it.Item().KeyCopy(nil))
					break
				}
			}
		}

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if isClosed(err) {
		return 0, ticket.ErrStoreClosed
	}
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Close stops GC and closes the database.
func (s *TicketStore) Close() error {
	close(s.gcStop)
	s.gcWg.Wait()
	return s.db.Close()
}

// DB returns the underlying BadgerDB database.
func (s *TicketStore) DB() *badger.DB {
	return s.db
}

func isClosed(err error) bool {
	return errors.Is(err, badger.ErrDBClosed)
}

var _ ticket.Store = (*TicketStore)(nil)
