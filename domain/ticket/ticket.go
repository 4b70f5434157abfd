// Package ticket provides the domain model for approval tickets.
//
// A ticket represents a single human approval request raised by a paused
// agent invocation. It is created in the pending state, resolved exactly
// once to a terminal state, and eventually removed by a retention sweep.
package ticket

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a ticket.
type Status string

// Ticket lifecycle states. Pending is the only non-terminal state.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusTimedOut Status = "timed_out"
)

// Terminal reports whether the status is a terminal state.
// No transition out of a terminal state is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusTimedOut:
		return true
	}
	return false
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusTimedOut:
		return true
	}
	return false
}

// ValidTransition reports whether a transition from one status to another
// is allowed. The only legal transitions are pending to a terminal state.
func ValidTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// ResumeContext identifies the paused agent invocation that raised a ticket.
// It is captured verbatim at creation time because it cannot be
// reconstructed later, and is never mutated afterwards.
type ResumeContext struct {
	// AppName is the agent application name registered with the runtime.
	AppName string `json:"app_name"`

	// UserID is the runtime user the invocation belongs to.
	UserID string `json:"user_id"`

	// SessionID is the runtime session the invocation belongs to.
	SessionID string `json:"session_id"`

	// CallID is the correlation id of the long-running function call.
	CallID string `json:"call_id"`
}

// Complete reports whether the context carries everything the runtime
// needs to resume the paused invocation.
func (c ResumeContext) Complete() bool {
	return c.AppName != "" && c.UserID != "" && c.SessionID != "" && c.CallID != ""
}

// Ticket is a single approval request and its lifecycle state.
type Ticket struct {
	// ID is the opaque unique ticket identifier, immutable after creation.
	ID string `json:"ticket_id"`

	// SubjectID identifies the thing being approved (e.g. a claim id).
	// It is opaque to this component.
	SubjectID string `json:"subject_id"`

	// RequesterContact is the contact the approval request was sent to
	// (e.g. an email address). Opaque, passed through uninterpreted.
	RequesterContact string `json:"requester_contact"`

	// Kind tags the request type (e.g. "verification").
	Kind string `json:"request_kind"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// CreatedAt is when the ticket was created (UTC).
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt advances on every status change (UTC).
	UpdatedAt time.Time `json:"updated_at"`

	// ResolutionNote is the approver note or rejection reason, empty
	// until resolved.
	ResolutionNote string `json:"resolution_note,omitempty"`

	// Resume identifies the paused invocation to resume on resolution.
	Resume ResumeContext `json:"resume_context"`
}

// Clone returns a deep copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// idPrefix is stable so operators can recognise ticket ids in links and logs.
const idPrefix = "APR-"

// NewID generates a fresh ticket id. Eight hex characters of a random UUID
// give enough entropy for the store-side duplicate check to be a formality.
func NewID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return idPrefix + strings.ToUpper(raw[:8])
}

// New creates a pending ticket with a fresh id and UTC timestamps.
func New(subjectID, contact, kind string, resume ResumeContext) *Ticket {
	now := time.Now().UTC()
	return &Ticket{
		ID:               NewID(),
		SubjectID:        subjectID,
		RequesterContact: contact,
		Kind:             kind,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		Resume:           resume,
	}
}
