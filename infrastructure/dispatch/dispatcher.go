package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
)

// Dispatch errors.
var (
	// ErrMissingResumeContext indicates the ticket has no complete resume
	// context, so there is no paused invocation to notify.
	ErrMissingResumeContext = errors.New("dispatch: missing resume context")
	// ErrRuntimeUnavailable indicates the runtime could not be reached.
	ErrRuntimeUnavailable = errors.New("dispatch: runtime unavailable")
	// ErrRuntimeRejected indicates the runtime refused the resume message.
	ErrRuntimeRejected = errors.New("dispatch: runtime rejected message")
)

// Config configures the resume dispatcher.
type Config struct {
	// BaseURL is the agent runtime base URL, e.g. "http://localhost:8000".
	BaseURL string
	// AppName is the registered agent application, used when a ticket's
	// resume context does not carry one.
	AppName string
	// FunctionName is the long-running function being answered.
	FunctionName string
	// Timeout is the HTTP request timeout.
	Timeout time.Duration
	// CircuitBreakerThreshold is consecutive failures before opening.
	CircuitBreakerThreshold int
	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration
	// UserAgent is the User-Agent header value.
	UserAgent string
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		FunctionName:            "request_human_approval",
		Timeout:                 10 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		UserAgent:               "hitl-go-dispatch/1.0",
	}
}

// Dispatcher posts reviewer decisions to the agent runtime's run endpoint.
//
// Delivery is at-most-once: a failed delivery is reported to the caller
// and never retried here. The circuit breaker only sheds load from a
// runtime that is already refusing traffic.
type Dispatcher struct {
	config  Config
	client  *http.Client
	breaker circuitbreaker.CircuitBreaker[*http.Response]
}

// NewDispatcher creates a new dispatcher for the given runtime.
func NewDispatcher(config Config) *Dispatcher {
	if config.FunctionName == "" {
		config.FunctionName = "request_human_approval"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "hitl-go-dispatch/1.0"
	}

	threshold := config.CircuitBreakerThreshold

	return &Dispatcher{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		breaker: circuitbreaker.New[*http.Response](circuitbreaker.Config{
			MaxRequests: 10,
			Interval:    config.CircuitBreakerTimeout,
			Timeout:     config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is validated
			},
		}),
	}
}

// Dispatch delivers the decision on a resolved ticket to the runtime.
//
// Tickets without a complete resume context are skipped with
// ErrMissingResumeContext; swept timeouts commonly have none left to wake.
func (d *Dispatcher) Dispatch(ctx context.Context, t *ticket.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil {
		return ErrMissingResumeContext
	}
	if t.Resume.AppName == "" && d.config.AppName != "" {
		t = t.Clone()
		t.Resume.AppName = d.config.AppName
	}
	if !t.Resume.Complete() {
		return ErrMissingResumeContext
	}
	if d.config.BaseURL == "" {
		return fmt.Errorf("%w: no runtime base URL configured", ErrRuntimeUnavailable)
	}

	msg := NewResumeMessage(t, d.config.FunctionName)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize resume message: %w", err)
	}

	url := strings.TrimRight(d.config.BaseURL, "/") + "/run"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.config.UserAgent)

	_, err = d.breaker.Execute(ctx, func(ctx context.Context) (*http.Response, error) {
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
		}
		defer resp.Body.Close()

		// Read a little of the body for error messages.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrRuntimeUnavailable, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrRuntimeRejected, resp.StatusCode, string(body))
	})
	return err
}

// BreakerState returns the current circuit breaker state.
func (d *Dispatcher) BreakerState() string {
	return d.breaker.State().String()
}
