package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
	"github.com/felixgeelhaar/hitl-go/infrastructure/dispatch"
)

func resolvedTicket() *ticket.Ticket {
	t := ticket.New("CLM-001", "customer@example.com", "claim_verification", ticket.ResumeContext{
		AppName:   "insurance_agent",
		UserID:    "user-1",
		SessionID: "sess-1",
		CallID:    "call-1",
	})
	t.Status = ticket.StatusApproved
	t.ResolutionNote = "Approved via email link"
	return t
}

func TestDispatcher_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("posts the resume message to the run endpoint", func(t *testing.T) {
		t.Parallel()

		var got dispatch.ResumeMessage
		var gotPath, gotContentType string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotContentType = r.Header.Get("Content-Type")
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decoding resume message: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		cfg := dispatch.DefaultConfig()
		cfg.BaseURL = server.URL
		d := dispatch.NewDispatcher(cfg)

		tk := resolvedTicket()
		if err := d.Dispatch(context.Background(), tk); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}

		if gotPath != "/run" {
			t.Errorf("path = %q, want /run", gotPath)
		}
		if gotContentType != "application/json" {
			t.Errorf("Content-Type = %q", gotContentType)
		}
		if got.AppName != "insurance_agent" || got.UserID != "user-1" || got.SessionID != "sess-1" {
			t.Errorf("session routing = %+v", got)
		}
		if got.ResumePayload.Name != "request_human_approval" {
			t.Errorf("function name = %q", got.ResumePayload.Name)
		}
		if got.ResumePayload.ID != "call-1" {
			t.Errorf("call id = %q", got.ResumePayload.ID)
		}
		resp := got.ResumePayload.Response
		if resp.Status != "completed" {
			t.Errorf("response status = %q, want completed", resp.Status)
		}
		if resp.Decision != "approved" || resp.TicketID != tk.ID || resp.Note != "Approved via email link" {
			t.Errorf("decision response = %+v", resp)
		}
	})

	t.Run("delivers at most once", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		cfg := dispatch.DefaultConfig()
		cfg.BaseURL = server.URL
		d := dispatch.NewDispatcher(cfg)

		err := d.Dispatch(context.Background(), resolvedTicket())
		if !errors.Is(err, dispatch.ErrRuntimeUnavailable) {
			t.Fatalf("Dispatch() error = %v, want ErrRuntimeUnavailable", err)
		}
		if n := requests.Load(); n != 1 {
			t.Errorf("runtime saw %d requests, want exactly 1", n)
		}
	})

	t.Run("client errors are reported as rejections", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unknown session", http.StatusBadRequest)
		}))
		defer server.Close()

		cfg := dispatch.DefaultConfig()
		cfg.BaseURL = server.URL
		d := dispatch.NewDispatcher(cfg)

		if err := d.Dispatch(context.Background(), resolvedTicket()); !errors.Is(err, dispatch.ErrRuntimeRejected) {
			t.Errorf("Dispatch() error = %v, want ErrRuntimeRejected", err)
		}
	})

	t.Run("unreachable runtime", func(t *testing.T) {
		t.Parallel()

		cfg := dispatch.DefaultConfig()
		cfg.BaseURL = "http://127.0.0.1:1"
		cfg.Timeout = time.Second
		d := dispatch.NewDispatcher(cfg)

		if err := d.Dispatch(context.Background(), resolvedTicket()); !errors.Is(err, dispatch.ErrRuntimeUnavailable) {
			t.Errorf("Dispatch() error = %v, want ErrRuntimeUnavailable", err)
		}
	})

	t.Run("configured app name fills a missing one", func(t *testing.T) {
		t.Parallel()

		var got dispatch.ResumeMessage
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decoding resume message: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		cfg := dispatch.DefaultConfig()
		cfg.BaseURL = server.URL
		cfg.AppName = "insurance_agent"
		d := dispatch.NewDispatcher(cfg)

		tk := resolvedTicket()
		tk.Resume.AppName = ""
		if err := d.Dispatch(context.Background(), tk); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if got.AppName != "insurance_agent" {
			t.Errorf("app_name = %q, want the configured fallback", got.AppName)
		}
		if tk.Resume.AppName != "" {
			t.Error("the caller's ticket must not be mutated")
		}
	})

	t.Run("missing resume context", func(t *testing.T) {
		t.Parallel()

		cfg := dispatch.DefaultConfig()
		cfg.BaseURL = "http://localhost:8000"
		d := dispatch.NewDispatcher(cfg)

		tk := resolvedTicket()
		tk.Resume.SessionID = ""
		if err := d.Dispatch(context.Background(), tk); !errors.Is(err, dispatch.ErrMissingResumeContext) {
			t.Errorf("Dispatch() error = %v, want ErrMissingResumeContext", err)
		}
		if err := d.Dispatch(context.Background(), nil); !errors.Is(err, dispatch.ErrMissingResumeContext) {
			t.Errorf("Dispatch(nil) error = %v, want ErrMissingResumeContext", err)
		}
	})

	t.Run("no base URL configured", func(t *testing.T) {
		t.Parallel()

		d := dispatch.NewDispatcher(dispatch.DefaultConfig())
		if err := d.Dispatch(context.Background(), resolvedTicket()); !errors.Is(err, dispatch.ErrRuntimeUnavailable) {
			t.Errorf("Dispatch() error = %v, want ErrRuntimeUnavailable", err)
		}
	})

	t.Run("honors a cancelled context", func(t *testing.T) {
		t.Parallel()

		cfg := dispatch.DefaultConfig()
		cfg.BaseURL = "http://localhost:8000"
		d := dispatch.NewDispatcher(cfg)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := d.Dispatch(ctx, resolvedTicket()); !errors.Is(err, context.Canceled) {
			t.Errorf("Dispatch() error = %v, want context.Canceled", err)
		}
	})
}

func TestDispatcher_CircuitBreaker(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := dispatch.DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.CircuitBreakerThreshold = 3
	d := dispatch.NewDispatcher(cfg)

	initial := d.BreakerState()
	if initial == "" {
		t.Fatal("BreakerState() should not be empty")
	}

	// Trip the breaker, then confirm it sheds the next call without
	// reaching the runtime.
	for range cfg.CircuitBreakerThreshold {
		if err := d.Dispatch(context.Background(), resolvedTicket()); err == nil {
			t.Fatal("Dispatch() should fail against a failing runtime")
		}
	}

	if state := d.BreakerState(); state == initial {
		t.Errorf("breaker state still %q after %d consecutive failures", state, cfg.CircuitBreakerThreshold)
	}
}

func TestNewResumeMessage(t *testing.T) {
	t.Parallel()

	tk := resolvedTicket()
	tk.Status = ticket.StatusTimedOut
	tk.ResolutionNote = ""

	msg := dispatch.NewResumeMessage(tk, "request_human_approval")
	if msg.ResumePayload.Response.Decision != "timed_out" {
		t.Errorf("Decision = %q, want timed_out", msg.ResumePayload.Response.Decision)
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := decoded["function_response"]; !ok {
		t.Error("wire message missing function_response field")
	}
	fr := decoded["function_response"].(map[string]any)
	resp := fr["response"].(map[string]any)
	if _, ok := resp["note"]; ok {
		t.Error("empty note should be omitted from the wire message")
	}
}
