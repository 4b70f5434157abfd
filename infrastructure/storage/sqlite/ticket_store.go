package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
)

// TicketStore is a SQLite-backed implementation of ticket.Store.
type TicketStore struct {
	db *sql.DB
}

// NewTicketStore creates a new SQLite ticket store with the given configuration.
func NewTicketStore(cfg Config, opts ...Option) (*TicketStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &TicketStore{db: db}

	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// NewTicketStoreFromDB creates a ticket store from an existing connection.
func NewTicketStoreFromDB(db *sql.DB) (*TicketStore, error) {
	s := &TicketStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// migrate creates the tickets table if it doesn't exist.
func (s *TicketStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			data BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_updated_at ON tickets(updated_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Create persists a new ticket.
func (s *TicketStore) Create(ctx context.Context, t *ticket.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" {
		return ticket.ErrInvalidID
	}

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, status, updated_at, data) VALUES (?, ?, ?, ?)`,
		t.ID, string(t.Status), t.UpdatedAt.UnixNano(), data,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ticket.ErrTicketExists
		}
		return err
	}
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

	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tickets WHERE id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticket.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}

	var t ticket.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CompareAndTransition atomically applies a status transition.
//
// The whole read-modify-write runs in one transaction; the conditional
// UPDATE on (id, status) is what makes concurrent resolvers yield exactly
// one winner even across independent processes sharing the database file.
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var data []byte
	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status, data FROM tickets WHERE id = ?`, id,
	).Scan(&current, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticket.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	if ticket.Status(current) != from {
		return nil, ticket.ErrAlreadyResolved
	}

	var t ticket.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	if mutate != nil {
		mutate(&t)
	}

	updated, err := json.Marshal(&t)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ?, data = ? WHERE id = ? AND status = ?`,
		string(to), t.UpdatedAt.UnixNano(), updated, id, string(from),
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ticket.ErrAlreadyResolved
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByStatus returns a snapshot of tickets in the given status.
func (s *TicketStore) ListByStatus(ctx context.Context, status ticket.Status) ([]*ticket.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM tickets WHERE status = ?`, string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ticket.Ticket
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t ticket.Ticket
		if err := json.Unmarshal(data, &t); err != nil {
			continue // skip malformed entries
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// SweepOlderThan deletes aged tickets in the given statuses.
func (s *TicketStore) SweepOlderThan(ctx context.Context, maxAge time.Duration, statuses ...ticket.Status) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(statuses) == 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-maxAge).UnixNano()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses)+1)
	args = append(args, cutoff)
	for _, status := range statuses {
		args = append(args, string(status))
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tickets WHERE updated_at < ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// Close closes the database.
func (s *TicketStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation checks if the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ ticket.Store = (*TicketStore)(nil)
