package notification

import (
	"context"
	"errors"
	"strings"

	"github.com/felixgeelhaar/hitl-go/domain/claim"
	"github.com/felixgeelhaar/hitl-go/domain/ticket"
)

// ApprovalNotifier emails approval requests with one-click decision links.
type ApprovalNotifier struct {
	mailer  *Mailer
	baseURL string
}

// NewApprovalNotifier creates a notifier that links back to the callback
// server at baseURL.
func NewApprovalNotifier(mailer *Mailer, baseURL string) *ApprovalNotifier {
	return &ApprovalNotifier{
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ApproveURL returns the one-click approval link for a ticket.
func (n *ApprovalNotifier) ApproveURL(ticketID string) string {
	return n.baseURL + "/api/approve/" + ticketID
}

// RejectURL returns the one-click rejection link for a ticket.
func (n *ApprovalNotifier) RejectURL(ticketID string) string {
	return n.baseURL + "/api/reject/" + ticketID
}

// Notify sends the approval request email for a freshly created ticket.
func (n *ApprovalNotifier) Notify(ctx context.Context, t *ticket.Ticket) error {
	c, err := claim.Lookup(t.SubjectID)
	if err != nil {
		if !errors.Is(err, claim.ErrClaimNotFound) {
			return err
		}
		// The subject is opaque to us; unknown ids still get an email,
		// just without claim detail.
		c = claim.Claim{ID: t.SubjectID}
	}

	body, err := RenderApprovalEmail(ApprovalEmail{
		Ticket:     t,
		Claim:      c,
		ApproveURL: n.ApproveURL(t.ID),
		RejectURL:  n.RejectURL(t.ID),
	})
	if err != nil {
		return err
	}

	return n.mailer.Send(ctx, t.RequesterContact, ApprovalSubject(c.ID), body)
}
