package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/felixgeelhaar/hitl-go/application/approval"
	"github.com/felixgeelhaar/hitl-go/domain/ticket"
	"github.com/felixgeelhaar/hitl-go/infrastructure/logging"
)

const (
	approveNote = "Approved via email link"
	rejectNote  = "Rejected via email link"
)

// errorBody is the JSON error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// ticketBody is the JSON representation of a ticket for status responses.
type ticketBody struct {
	TicketID       string    `json:"ticket_id"`
	SubjectID      string    `json:"subject_id"`
	Status         string    `json:"status"`
	RequestKind    string    `json:"request_kind"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ResolutionNote string    `json:"resolution_note,omitempty"`
}

func toTicketBody(t *ticket.Ticket) ticketBody {
	return ticketBody{
		TicketID:       t.ID,
		SubjectID:      t.SubjectID,
		Status:         string(t.Status),
		RequestKind:    t.Kind,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		ResolutionNote: t.ResolutionNote,
	}
}

// handleApprove resolves a ticket as approved and renders a confirmation
// page. Repeat clicks on an already resolved ticket get a conflict page,
// not a second resolution.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, ticket.StatusApproved, approveNote)
}

// handleReject resolves a ticket as rejected and renders a confirmation page.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, ticket.StatusRejected, rejectNote)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, decision ticket.Status, note string) {
	id := r.PathValue("ticket")

	t, err := s.config.Service.Resolve(r.Context(), id, decision, note)
	if err != nil {
		switch {
		case errors.Is(err, ticket.ErrTicketNotFound):
			s.renderPage(w, http.StatusNotFound, notFoundPageData(id))
		case errors.Is(err, ticket.ErrAlreadyResolved):
			current, getErr := s.config.Service.Get(r.Context(), id)
			status := ticket.Status("")
			if getErr == nil {
				status = current.Status
			}
			s.renderPage(w, http.StatusConflict, alreadyResolvedPageData(id, status))
		default:
			logging.Error().
				Add(logging.TicketID(id)).
				Add(logging.ErrorField(err)).
				Msg("resolve failed")
			s.renderPage(w, http.StatusInternalServerError, errorPageData(id))
		}
		return
	}

	if decision == ticket.StatusApproved {
		s.renderPage(w, http.StatusOK, approvedPageData(t))
	} else {
		s.renderPage(w, http.StatusOK, rejectedPageData(t))
	}
}

// handleStatus reports the current state of a ticket.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("ticket")

	t, err := s.config.Service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ticket.ErrTicketNotFound) {
			s.writeJSON(w, http.StatusNotFound, errorBody{Error: "ticket " + id + " not found"})
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to load ticket"})
		return
	}

	s.writeJSON(w, http.StatusOK, toTicketBody(t))
}

// pendingItem is one entry in the pending approvals listing.
type pendingItem struct {
	TicketID    string    `json:"ticket_id"`
	SubjectID   string    `json:"subject_id"`
	Contact     string    `json:"contact"`
	RequestKind string    `json:"request_kind"`
	CreatedAt   time.Time `json:"created_at"`
}

// handlePending lists tickets awaiting a decision.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.config.Service.ListPending(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to list pending approvals"})
		return
	}

	items := make([]pendingItem, 0, len(pending))
	for _, t := range pending {
		items = append(items, pendingItem{
			TicketID:    t.ID,
			SubjectID:   t.SubjectID,
			Contact:     t.RequesterContact,
			RequestKind: t.Kind,
			CreatedAt:   t.CreatedAt,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":             len(items),
		"pending_approvals": items,
	})
}

// createRequest is the POST /api/approvals request body.
type createRequest struct {
	SubjectID   string               `json:"subject_id"`
	Contact     string               `json:"contact"`
	RequestKind string               `json:"request_kind"`
	Resume      ticket.ResumeContext `json:"resume_context"`
}

// createResponse echoes the created ticket plus the one-click links.
type createResponse struct {
	Ticket     ticketBody `json:"ticket"`
	ApproveURL string     `json:"approve_url,omitempty"`
	RejectURL  string     `json:"reject_url,omitempty"`
}

// handleCreate opens a new approval ticket and emails the request.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.SubjectID == "" || req.Contact == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "subject_id and contact are required"})
		return
	}

	t, err := s.config.Service.CreateRequest(r.Context(), approval.CreateInput{
		SubjectID: req.SubjectID,
		Contact:   req.Contact,
		Kind:      req.RequestKind,
		Resume:    req.Resume,
	})
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to create approval request"})
		return
	}

	resp := createResponse{Ticket: toTicketBody(t)}
	if s.config.Links != nil {
		resp.ApproveURL = s.config.Links.ApproveURL(t.ID)
		resp.RejectURL = s.config.Links.RejectURL(t.ID)
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

// handleWait blocks until the ticket is resolved or the timeout elapses.
// On timeout it responds 408 so pollers can distinguish "no decision
// yet" from an error; the ticket itself stays pending.
func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("ticket")

	var timeout time.Duration
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid timeout"})
			return
		}
		timeout = parsed
	}

	t, err := s.config.Service.AwaitResolution(r.Context(), id, timeout)
	if err != nil {
		switch {
		case errors.Is(err, ticket.ErrTicketNotFound):
			s.writeJSON(w, http.StatusNotFound, errorBody{Error: "ticket " + id + " not found"})
		case errors.Is(err, approval.ErrAwaitTimeout):
			s.writeJSON(w, http.StatusRequestTimeout, errorBody{Error: "no decision yet"})
		default:
			s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "wait failed"})
		}
		return
	}

	s.writeJSON(w, http.StatusOK, toTicketBody(t))
}
