// Package approval provides the application service for human approval
// tickets: creation, exactly-once resolution, blocking awaits and the
// background expiry and retention sweeps.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
	"github.com/felixgeelhaar/hitl-go/infrastructure/dispatch"
	"github.com/felixgeelhaar/hitl-go/infrastructure/logging"
	"github.com/felixgeelhaar/hitl-go/infrastructure/telemetry"
)

// Dispatcher delivers a decision on a resolved ticket to the agent runtime.
type Dispatcher interface {
	Dispatch(ctx context.Context, t *ticket.Ticket) error
}

// Notifier sends the approval request to the requester contact.
type Notifier interface {
	Notify(ctx context.Context, t *ticket.Ticket) error
}

// Config contains tunables for the approval service.
type Config struct {
	// PendingTTL is how long a ticket may stay pending before the sweep
	// times it out. Zero disables expiry.
	PendingTTL time.Duration
	// Retention is how long terminal tickets are kept before deletion.
	// Zero disables the retention sweep.
	Retention time.Duration
	// SweepInterval is how often Run performs the sweeps.
	SweepInterval time.Duration
	// DispatchTimeout bounds each decision delivery attempt.
	DispatchTimeout time.Duration
	// AwaitTimeout is the default AwaitResolution timeout.
	AwaitTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PendingTTL:      24 * time.Hour,
		Retention:       7 * 24 * time.Hour,
		SweepInterval:   time.Minute,
		DispatchTimeout: 15 * time.Second,
		AwaitTimeout:    5 * time.Minute,
	}
}

// Service coordinates the approval ticket lifecycle.
//
// All status changes funnel through the store's CompareAndTransition, so
// concurrent resolution attempts are decided by the store: exactly one
// caller wins, everyone else observes the already-resolved error.
type Service struct {
	store      ticket.Store
	dispatcher Dispatcher
	notifier   Notifier
	metrics    telemetry.Metrics
	config     Config

	waiters *waiters

	mu       sync.Mutex
	closed   bool
	done     chan struct{}
	inflight sync.WaitGroup
}

// Option configures the service.
type Option func(*Service)

// WithDispatcher sets the decision dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

// WithNotifier sets the approval request notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConfig replaces the service configuration.
func WithConfig(c Config) Option {
	return func(s *Service) {
		s.config = c
	}
}

// NewService creates an approval service backed by the given store.
func NewService(store ticket.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}

	s := &Service{
		store:   store,
		metrics: &telemetry.NoopMetricsProvider{},
		config:  DefaultConfig(),
		waiters: newWaiters(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInput describes a new approval request.
type CreateInput struct {
	// SubjectID identifies the thing being approved. Opaque.
	SubjectID string
	// Contact is where the approval request is sent. Opaque.
	Contact string
	// Kind tags the request type.
	Kind string
	// Resume identifies the paused invocation to resume on resolution.
	Resume ticket.ResumeContext
}

// CreateRequest opens a pending ticket and sends the approval request to
// the contact. A notification failure does not fail the create: the
// ticket is already durable and can still be resolved through the API.
func (s *Service) CreateRequest(ctx context.Context, in CreateInput) (*ticket.Ticket, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	if in.SubjectID == "" {
		return nil, fmt.Errorf("%w: empty subject id", ticket.ErrInvalidID)
	}

	t := ticket.New(in.SubjectID, in.Contact, in.Kind, in.Resume)
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	s.metrics.RecordTicketCreated(ctx, t.Kind)

	logging.Info().
		Add(logging.TicketID(t.ID)).
		Add(logging.SubjectID(t.SubjectID)).
		Add(logging.Str("kind", t.Kind)).
		Msg("approval ticket created")

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, t); err != nil {
			s.metrics.RecordError(ctx, "notify", map[string]string{"ticket_id": t.ID})
			logging.Warn().
				Add(logging.TicketID(t.ID)).
				Add(logging.Recipient(t.RequesterContact)).
				Add(logging.ErrorField(err)).
				Msg("approval notification failed")
		}
	}

	return t, nil
}

// Get retrieves a ticket by id.
func (s *Service) Get(ctx context.Context, id string) (*ticket.Ticket, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// ListPending returns a snapshot of tickets awaiting a decision.
func (s *Service) ListPending(ctx context.Context) ([]*ticket.Ticket, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	return s.store.ListByStatus(ctx, ticket.StatusPending)
}

// Resolve records a decision on a pending ticket.
//
// Exactly one resolution wins; later attempts fail with
// ticket.ErrAlreadyResolved and change nothing. After the ticket is
// durably resolved the decision is pushed to the agent runtime in the
// background. Delivery failure never rolls the resolution back and is
// never retried here; it is surfaced through logs and metrics.
func (s *Service) Resolve(ctx context.Context, id string, decision ticket.Status, note string) (*ticket.Ticket, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	if decision != ticket.StatusApproved && decision != ticket.StatusRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	t, err := s.store.CompareAndTransition(ctx, id, ticket.StatusPending, decision, func(t *ticket.Ticket) {
		t.ResolutionNote = note
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTicketResolved(ctx, string(decision), time.Since(t.CreatedAt))
	logging.Info().
		Add(logging.TicketID(t.ID)).
		Add(logging.Decision(decision)).
		Msg("approval ticket resolved")

	s.waiters.notify(t)
	s.dispatchAsync(t)

	return t, nil
}

// AwaitResolution blocks until the ticket is resolved, the timeout
// elapses or ctx is cancelled. On timeout the ticket stays pending and a
// later resolution still succeeds; the abandoned waiter is simply gone.
func (s *Service) AwaitResolution(ctx context.Context, id string, timeout time.Duration) (*ticket.Ticket, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.config.AwaitTimeout
	}

	// Register before reading so a resolution landing between the read
	// and the wait cannot be missed.
	ch := s.waiters.register(id)
	defer s.waiters.deregister(id, ch)

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return t, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resolved := <-ch:
		return resolved, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrAwaitTimeout, id)
	case <-s.done:
		return nil, ErrServiceClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ExpirePending times out tickets that have been pending longer than the
// configured TTL. It returns the number of tickets expired. Races with
// concurrent resolutions are benign: the loser of the transition just
// skips the ticket.
func (s *Service) ExpirePending(ctx context.Context) (int, error) {
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}
	if s.config.PendingTTL <= 0 {
		return 0, nil
	}

	pending, err := s.store.ListByStatus(ctx, ticket.StatusPending)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-s.config.PendingTTL)
	expired := 0
	for _, p := range pending {
		if !p.CreatedAt.Before(cutoff) {
			continue
		}
		t, err := s.store.CompareAndTransition(ctx, p.ID, ticket.StatusPending, ticket.StatusTimedOut, nil)
		if err != nil {
			if errors.Is(err, ticket.ErrAlreadyResolved) || errors.Is(err, ticket.ErrTicketNotFound) {
				continue
			}
			return expired, err
		}
		expired++

		logging.Info().
			Add(logging.TicketID(t.ID)).
			Msg("approval ticket timed out")

		s.waiters.notify(t)
		s.dispatchAsync(t)
	}

	s.metrics.RecordTicketsExpired(ctx, int64(expired))
	return expired, nil
}

// PurgeExpired deletes terminal tickets older than the retention window
// and returns the number removed. Pending tickets are never purged.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}
	if s.config.Retention <= 0 {
		return 0, nil
	}

	removed, err := s.store.SweepOlderThan(ctx, s.config.Retention,
		ticket.StatusApproved, ticket.StatusRejected, ticket.StatusTimedOut)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logging.Info().
			Add(logging.Count(removed)).
			Msg("terminal tickets purged")
	}
	s.metrics.RecordTicketsSwept(ctx, int64(removed))
	return removed, nil
}

// Run performs the expiry and retention sweeps on a fixed interval until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	interval := s.config.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.ExpirePending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().
					Add(logging.ErrorField(err)).
					Msg("expiry sweep failed")
			}
			if _, err := s.PurgeExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().
					Add(logging.ErrorField(err)).
					Msg("retention sweep failed")
			}
		}
	}
}

// Close stops accepting work, wakes blocked waiters with
// ErrServiceClosed and waits for in-flight decision deliveries to
// finish. It does not close the underlying store.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.inflight.Wait()
	return nil
}

func (s *Service) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServiceClosed
	}
	return nil
}

// dispatchAsync pushes the decision to the runtime without holding up the
// caller. The resolution is already durable; delivery is best effort.
func (s *Service) dispatchAsync(t *ticket.Ticket) {
	if s.dispatcher == nil {
		return
	}

	// The closed check and Add must be one critical section: Close flips
	// closed before it waits, so an Add racing the Wait cannot slip in.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	t = t.Clone()
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.DispatchTimeout)
		defer cancel()

		start := time.Now()
		err := s.dispatcher.Dispatch(ctx, t)
		if errors.Is(err, dispatch.ErrMissingResumeContext) {
			// Nothing is paused on this ticket; not a delivery failure.
			logging.Debug().
				Add(logging.TicketID(t.ID)).
				Msg("no resume context, dispatch skipped")
			return
		}

		s.metrics.RecordDispatch(ctx, err == nil, time.Since(start))
		if err != nil {
			logging.Warn().
				Add(logging.TicketID(t.ID)).
				Add(logging.CallID(t.Resume.CallID)).
				Add(logging.ErrorField(err)).
				Msg("decision delivery failed")
			return
		}

		logging.Info().
			Add(logging.TicketID(t.ID)).
			Add(logging.Session(t.Resume.UserID, t.Resume.SessionID)).
			Msg("decision delivered to runtime")
	}()
}
