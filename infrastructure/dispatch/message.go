// Package dispatch delivers reviewer decisions back to the agent runtime
// that paused on an approval request.
package dispatch

import "github.com/felixgeelhaar/hitl-go/domain/ticket"

// DecisionResponse is the function response body the runtime resumes with.
type DecisionResponse struct {
	Status    string `json:"status"`
	Decision  string `json:"decision"`
	TicketID  string `json:"ticket_id"`
	SubjectID string `json:"subject_id"`
	Note      string `json:"note,omitempty"`
}

// ResumePayload identifies the paused function call being answered.
type ResumePayload struct {
	Name     string           `json:"name"`
	ID       string           `json:"id"`
	Response DecisionResponse `json:"response"`
}

// ResumeMessage is the wire format posted to the runtime's run endpoint.
type ResumeMessage struct {
	AppName       string        `json:"app_name"`
	UserID        string        `json:"user_id"`
	SessionID     string        `json:"session_id"`
	ResumePayload ResumePayload `json:"function_response"`
}

// NewResumeMessage builds the resume message for a resolved ticket.
func NewResumeMessage(t *ticket.Ticket, functionName string) ResumeMessage {
	return ResumeMessage{
		AppName:   t.Resume.AppName,
		UserID:    t.Resume.UserID,
		SessionID: t.Resume.SessionID,
		ResumePayload: ResumePayload{
			Name: functionName,
			ID:   t.Resume.CallID,
			Response: DecisionResponse{
				Status:    "completed",
				Decision:  string(t.Status),
				TicketID:  t.ID,
				SubjectID: t.SubjectID,
				Note:      t.ResolutionNote,
			},
		},
	}
}
