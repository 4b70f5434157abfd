package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/hitl-go/application/approval"
	"github.com/felixgeelhaar/hitl-go/domain/ticket"
	"github.com/felixgeelhaar/hitl-go/infrastructure/notification"
	"github.com/felixgeelhaar/hitl-go/infrastructure/storage/memory"
	"github.com/felixgeelhaar/hitl-go/interfaces/api"
)

// newGateway wires a gateway over a fresh in-memory service.
func newGateway(t *testing.T, cfg api.Config) (*approval.Service, http.Handler) {
	t.Helper()

	svc, err := approval.NewService(memory.NewTicketStore())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	cfg.Service = svc
	return svc, api.New(cfg).Handler()
}

func createTicket(t *testing.T, svc *approval.Service) *ticket.Ticket {
	t.Helper()

	tk, err := svc.CreateRequest(context.Background(), approval.CreateInput{
		SubjectID: "CLM-001",
		Contact:   "customer@example.com",
		Kind:      "claim_verification",
		Resume: ticket.ResumeContext{
			AppName:   "insurance_agent",
			UserID:    "user-1",
			SessionID: "sess-1",
			CallID:    "call-1",
		},
	})
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	return tk
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGateway_Approve(t *testing.T) {
	t.Parallel()

	svc, handler := newGateway(t, api.Config{})
	tk := createTicket(t, svc)

	rec := get(handler, "/api/approve/"+tk.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want html", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, tk.ID) || !strings.Contains(body, "Approved") {
		t.Errorf("confirmation page missing ticket id or decision: %s", body)
	}

	got, err := svc.Get(context.Background(), tk.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != ticket.StatusApproved {
		t.Errorf("Status = %q, want approved", got.Status)
	}
	if got.ResolutionNote != "Approved via email link" {
		t.Errorf("ResolutionNote = %q", got.ResolutionNote)
	}
}

func TestGateway_Reject(t *testing.T) {
	t.Parallel()

	svc, handler := newGateway(t, api.Config{})
	tk := createTicket(t, svc)

	rec := get(handler, "/api/reject/"+tk.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	got, _ := svc.Get(context.Background(), tk.ID)
	if got.Status != ticket.StatusRejected || got.ResolutionNote != "Rejected via email link" {
		t.Errorf("ticket = %+v", got)
	}
}

func TestGateway_RepeatClick(t *testing.T) {
	t.Parallel()

	svc, handler := newGateway(t, api.Config{})
	tk := createTicket(t, svc)

	if rec := get(handler, "/api/approve/"+tk.ID); rec.Code != http.StatusOK {
		t.Fatalf("first click status = %d", rec.Code)
	}

	// A second click, even on the other link, must not change the outcome.
	rec := get(handler, "/api/reject/"+tk.ID)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second click status = %d, want 409", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "Already Processed") {
		t.Errorf("conflict page body: %s", body)
	}

	got, _ := svc.Get(context.Background(), tk.ID)
	if got.Status != ticket.StatusApproved {
		t.Errorf("Status = %q, the first decision must stand", got.Status)
	}
}

func TestGateway_UnknownTicket(t *testing.T) {
	t.Parallel()

	_, handler := newGateway(t, api.Config{})

	for _, path := range []string{"/api/approve/APR-DEADBEEF", "/api/reject/APR-DEADBEEF"} {
		rec := get(handler, path)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Not Found") {
			t.Errorf("GET %s should render a not-found page", path)
		}
	}

	rec := get(handler, "/api/status/APR-DEADBEEF")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status endpoint = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("status error body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("status error body missing error field")
	}
}

func TestGateway_Status(t *testing.T) {
	t.Parallel()

	svc, handler := newGateway(t, api.Config{})
	tk := createTicket(t, svc)

	rec := get(handler, "/api/status/"+tk.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		TicketID  string `json:"ticket_id"`
		SubjectID string `json:"subject_id"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body.TicketID != tk.ID || body.SubjectID != "CLM-001" || body.Status != "pending" {
		t.Errorf("status body = %+v", body)
	}
}

func TestGateway_Pending(t *testing.T) {
	t.Parallel()

	svc, handler := newGateway(t, api.Config{})
	first := createTicket(t, svc)
	second := createTicket(t, svc)

	if _, err := svc.Resolve(context.Background(), second.ID, ticket.StatusApproved, ""); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	rec := get(handler, "/api/approvals/pending")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Count   int `json:"count"`
		Pending []struct {
			TicketID string `json:"ticket_id"`
			Contact  string `json:"contact"`
		} `json:"pending_approvals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body.Count != 1 || len(body.Pending) != 1 {
		t.Fatalf("count = %d, pending = %d, want 1 each", body.Count, len(body.Pending))
	}
	if body.Pending[0].TicketID != first.ID {
		t.Errorf("pending ticket = %q, want %q", body.Pending[0].TicketID, first.ID)
	}
}

func TestGateway_Create(t *testing.T) {
	t.Parallel()

	t.Run("creates a ticket and returns decision links", func(t *testing.T) {
		t.Parallel()

		links := notification.NewApprovalNotifier(notification.NewMailer(notification.MailerConfig{}), "http://localhost:8086")
		svc, handler := newGateway(t, api.Config{Links: links})

		payload := `{
			"subject_id": "CLM-002",
			"contact": "customer@example.com",
			"request_kind": "claim_verification",
			"resume_context": {"app_name": "insurance_agent", "user_id": "u", "session_id": "s", "call_id": "c"}
		}`
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/approvals", strings.NewReader(payload)))
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}

		var body struct {
			Ticket struct {
				TicketID string `json:"ticket_id"`
				Status   string `json:"status"`
			} `json:"ticket"`
			ApproveURL string `json:"approve_url"`
			RejectURL  string `json:"reject_url"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if !strings.HasPrefix(body.Ticket.TicketID, "APR-") || body.Ticket.Status != "pending" {
			t.Errorf("ticket = %+v", body.Ticket)
		}
		if body.ApproveURL != "http://localhost:8086/api/approve/"+body.Ticket.TicketID {
			t.Errorf("approve_url = %q", body.ApproveURL)
		}
		if body.RejectURL != "http://localhost:8086/api/reject/"+body.Ticket.TicketID {
			t.Errorf("reject_url = %q", body.RejectURL)
		}

		if _, err := svc.Get(context.Background(), body.Ticket.TicketID); err != nil {
			t.Errorf("created ticket not retrievable: %v", err)
		}
	})

	t.Run("rejects malformed and incomplete bodies", func(t *testing.T) {
		t.Parallel()

		_, handler := newGateway(t, api.Config{})

		for name, payload := range map[string]string{
			"not json":        "{",
			"missing subject": `{"contact": "a@b.c"}`,
			"missing contact": `{"subject_id": "CLM-001"}`,
		} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/approvals", strings.NewReader(payload)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d, want 400", name, rec.Code)
			}
		}
	})
}

func TestGateway_Wait(t *testing.T) {
	t.Parallel()

	t.Run("returns the resolved ticket", func(t *testing.T) {
		t.Parallel()

		svc, handler := newGateway(t, api.Config{})
		tk := createTicket(t, svc)

		go func() {
			time.Sleep(50 * time.Millisecond)
			_, _ = svc.Resolve(context.Background(), tk.ID, ticket.StatusApproved, "ok")
		}()

		rec := get(handler, "/api/approvals/"+tk.ID+"/wait?timeout=5s")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var body struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if body.Status != "approved" {
			t.Errorf("status = %q, want approved", body.Status)
		}
	})

	t.Run("times out with 408", func(t *testing.T) {
		t.Parallel()

		svc, handler := newGateway(t, api.Config{})
		tk := createTicket(t, svc)

		rec := get(handler, "/api/approvals/"+tk.ID+"/wait?timeout=30ms")
		if rec.Code != http.StatusRequestTimeout {
			t.Errorf("status = %d, want 408", rec.Code)
		}
	})

	t.Run("rejects bad timeouts", func(t *testing.T) {
		t.Parallel()

		svc, handler := newGateway(t, api.Config{})
		tk := createTicket(t, svc)

		rec := get(handler, "/api/approvals/"+tk.ID+"/wait?timeout=soon")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGateway_Health(t *testing.T) {
	t.Parallel()

	_, handler := newGateway(t, api.Config{})

	rec := get(handler, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body api.HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("health = %+v", body)
	}
}

func TestGateway_CORS(t *testing.T) {
	t.Parallel()

	_, handler := newGateway(t, api.Config{EnableCORS: true})

	rec := get(handler, "/health")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/approvals", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
}

func TestGateway_Index(t *testing.T) {
	t.Parallel()

	_, handler := newGateway(t, api.Config{})

	rec := get(handler, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/approve/") {
		t.Error("index should list the approve endpoint")
	}
}
