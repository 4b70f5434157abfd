package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
	"github.com/felixgeelhaar/hitl-go/infrastructure/storage/memory"
)

func newTicket() *ticket.Ticket {
	return ticket.New("CLM-001", "customer@example.com", "claim_verification", ticket.ResumeContext{
		AppName:   "insurance_agent",
		UserID:    "user-1",
		SessionID: "sess-1",
		CallID:    "call-1",
	})
}

func TestNewTicketStore(t *testing.T) {
	t.Parallel()

	store := memory.NewTicketStore()
	if store == nil {
		t.Fatal("NewTicketStore() returned nil")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for new store", store.Len())
	}
}

func TestTicketStore_Create(t *testing.T) {
	t.Parallel()

	t.Run("creates new ticket", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTicketStore()
		ctx := context.Background()

		tk := newTicket()
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := store.Get(ctx, tk.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.SubjectID != tk.SubjectID || got.Status != ticket.StatusPending {
			t.Errorf("Get() = %+v, want a pending copy of the created ticket", got)
		}
	})

	t.Run("returns error for empty id", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTicketStore()
		tk := newTicket()
		tk.ID = ""

		if err := store.Create(context.Background(), tk); !errors.Is(err, ticket.ErrInvalidID) {
			t.Errorf("Create() error = %v, want ErrInvalidID", err)
		}
	})

	t.Run("returns error for duplicate id", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTicketStore()
		ctx := context.Background()

		tk := newTicket()
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := store.Create(ctx, tk); !errors.Is(err, ticket.ErrTicketExists) {
			t.Errorf("Create() error = %v, want ErrTicketExists", err)
		}
	})

	t.Run("stores a copy, not the caller's pointer", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTicketStore()
		ctx := context.Background()

		tk := newTicket()
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		tk.Status = ticket.StatusApproved

		got, err := store.Get(ctx, tk.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != ticket.StatusPending {
			t.Error("mutating the caller's ticket leaked into the store")
		}
	})
}

func TestTicketStore_Get(t *testing.T) {
	t.Parallel()

	store := memory.NewTicketStore()

	if _, err := store.Get(context.Background(), "APR-DEADBEEF"); !errors.Is(err, ticket.ErrTicketNotFound) {
		t.Errorf("Get() error = %v, want ErrTicketNotFound", err)
	}
}

func TestTicketStore_CompareAndTransition(t *testing.T) {
	t.Parallel()

	t.Run("resolves a pending ticket", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTicketStore()
		ctx := context.Background()

		tk := newTicket()
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := store.CompareAndTransition(ctx, tk.ID, ticket.StatusPending, ticket.StatusApproved, func(t *ticket.Ticket) {
			t.ResolutionNote = "looks good"
		})
		if err != nil {
			t.Fatalf("CompareAndTransition() error = %v", err)
		}
		if got.Status != ticket.StatusApproved {
			t.Errorf("Status = %q, want approved", got.Status)
		}
		if got.ResolutionNote != "looks good" {
			t.Errorf("ResolutionNote = %q", got.ResolutionNote)
		}
		if got.UpdatedAt.Before(tk.UpdatedAt) {
			t.Error("UpdatedAt went backwards")
		}
	})

	t.Run("second resolution fails", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTicketStore()
		ctx := context.Background()

		tk := newTicket()
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := store.CompareAndTransition(ctx, tk.ID, ticket.StatusPending, ticket.StatusApproved, nil); err != nil {
			t.Fatalf("first CompareAndTransition() error = %v", err)
		}

		_, err := store.CompareAndTransition(ctx, tk.ID, ticket.StatusPending, ticket.StatusRejected, nil)
		if !errors.Is(err, ticket.ErrAlreadyResolved) {
			t.Errorf("second CompareAndTransition() error = %v, want ErrAlreadyResolved", err)
		}

		got, err := store.Get(ctx, tk.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != ticket.StatusApproved {
			t.Errorf("Status = %q, losing attempt must not change the record", got.Status)
		}
	})

	t.Run("rejects illegal transitions", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTicketStore()
		ctx := context.Background()

		tk := newTicket()
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		_, err := store.CompareAndTransition(ctx, tk.ID, ticket.StatusApproved, ticket.StatusPending, nil)
		if !errors.Is(err, ticket.ErrInvalidStatus) {
			t.Errorf("CompareAndTransition() error = %v, want ErrInvalidStatus", err)
		}
	})

	t.Run("unknown ticket", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTicketStore()
		_, err := store.CompareAndTransition(context.Background(), "APR-DEADBEEF", ticket.StatusPending, ticket.StatusApproved, nil)
		if !errors.Is(err, ticket.ErrTicketNotFound) {
			t.Errorf("CompareAndTransition() error = %v, want ErrTicketNotFound", err)
		}
	})

	t.Run("exactly one concurrent resolver wins", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTicketStore()
		ctx := context.Background()

		tk := newTicket()
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		const attempts = 32
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		conflicts := 0

		for i := range attempts {
			decision := ticket.StatusApproved
			if i%2 == 1 {
				decision = ticket.StatusRejected
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.CompareAndTransition(ctx, tk.ID, ticket.StatusPending, decision, nil)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, ticket.ErrAlreadyResolved):
					conflicts++
				default:
					t.Errorf("unexpected error %v", err)
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("wins = %d, want exactly 1", wins)
		}
		if conflicts != attempts-1 {
			t.Errorf("conflicts = %d, want %d", conflicts, attempts-1)
		}
	})
}

func TestTicketStore_ListByStatus(t *testing.T) {
	t.Parallel()

	store := memory.NewTicketStore()
	ctx := context.Background()

	for range 3 {
		if err := store.Create(ctx, newTicket()); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	resolved := newTicket()
	if err := store.Create(ctx, resolved); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.CompareAndTransition(ctx, resolved.ID, ticket.StatusPending, ticket.StatusApproved, nil); err != nil {
		t.Fatalf("CompareAndTransition() error = %v", err)
	}

	pending, err := store.ListByStatus(ctx, ticket.StatusPending)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("ListByStatus(pending) = %d tickets, want 3", len(pending))
	}

	approved, err := store.ListByStatus(ctx, ticket.StatusApproved)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(approved) != 1 {
		t.Errorf("ListByStatus(approved) = %d tickets, want 1", len(approved))
	}
}

func TestTicketStore_SweepOlderThan(t *testing.T) {
	t.Parallel()

	store := memory.NewTicketStore()
	ctx := context.Background()

	oldResolved := newTicket()
	oldResolved.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	oldResolved.UpdatedAt = oldResolved.CreatedAt
	oldResolved.Status = ticket.StatusApproved

	oldPending := newTicket()
	oldPending.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	oldPending.UpdatedAt = oldPending.CreatedAt

	fresh := newTicket()

	for _, tk := range []*ticket.Ticket{oldResolved, oldPending, fresh} {
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	removed, err := store.SweepOlderThan(ctx, 24*time.Hour,
		ticket.StatusApproved, ticket.StatusRejected, ticket.StatusTimedOut)
	if err != nil {
		t.Fatalf("SweepOlderThan() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("SweepOlderThan() = %d, want 1", removed)
	}

	if _, err := store.Get(ctx, oldResolved.ID); !errors.Is(err, ticket.ErrTicketNotFound) {
		t.Error("aged terminal ticket survived the sweep")
	}
	if _, err := store.Get(ctx, oldPending.ID); err != nil {
		t.Error("aged pending ticket must never be swept")
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Error("fresh ticket must survive the sweep")
	}
}

func TestTicketStore_Close(t *testing.T) {
	t.Parallel()

	store := memory.NewTicketStore()
	ctx := context.Background()

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := store.Create(ctx, newTicket()); !errors.Is(err, ticket.ErrStoreClosed) {
		t.Errorf("Create() after Close error = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Get(ctx, "APR-DEADBEEF"); !errors.Is(err, ticket.ErrStoreClosed) {
		t.Errorf("Get() after Close error = %v, want ErrStoreClosed", err)
	}
}
