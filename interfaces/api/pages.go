package api

import (
	"html/template"
	"net/http"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
	"github.com/felixgeelhaar/hitl-go/infrastructure/logging"
)

// pageData drives the confirmation page template rendered after a click
// on an email link.
type pageData struct {
	Title     string
	Mark      string
	MarkColor string
	BoxClass  string
	Heading   string
	Message   string
	TicketID  string
	SubjectID string
	Status    string
	NextSteps string
	Footer    string
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: Arial, sans-serif;
            max-width: 600px;
            margin: 50px auto;
            padding: 20px;
            text-align: center;
        }
        .success {
            background-color: #d4edda;
            border: 1px solid #c3e6cb;
            color: #155724;
            padding: 20px;
            border-radius: 5px;
            margin: 20px 0;
        }
        .warning {
            background-color: #f8d7da;
            border: 1px solid #f5c6cb;
            color: #721c24;
            padding: 20px;
            border-radius: 5px;
            margin: 20px 0;
        }
        .mark {
            font-size: 48px;
            color: {{.MarkColor}};
        }
        .details {
            background-color: #f8f9fa;
            padding: 15px;
            border-radius: 5px;
            margin-top: 20px;
            text-align: left;
        }
    </style>
</head>
<body>
    <div class="mark">{{.Mark}}</div>
    <div class="{{.BoxClass}}">
        <h2>{{.Heading}}</h2>
        <p>{{.Message}}</p>
    </div>
    <div class="details">
        <p><strong>Ticket ID:</strong> {{.TicketID}}</p>
        {{if .SubjectID}}<p><strong>Claim ID:</strong> {{.SubjectID}}</p>{{end}}
        {{if .Status}}<p><strong>Status:</strong> {{.Status}}</p>{{end}}
        {{if .NextSteps}}<p><strong>Next Steps:</strong> {{.NextSteps}}</p>{{end}}
    </div>
    <p style="color: #666; margin-top: 30px;">{{.Footer}}</p>
</body>
</html>`))

// renderPage writes a confirmation page with the given status code.
func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, data); err != nil {
		logging.Error().
			Add(logging.ErrorField(err)).
			Msg("failed to render page")
	}
}

func approvedPageData(t *ticket.Ticket) pageData {
	return pageData{
		Title:     "Claim Approved",
		Mark:      "✓",
		MarkColor: "#28a745",
		BoxClass:  "success",
		Heading:   "Claim Approved Successfully",
		Message:   "Thank you for verifying your claim submission.",
		TicketID:  t.ID,
		SubjectID: t.SubjectID,
		Status:    "Approved",
		NextSteps: "You will receive a confirmation email shortly with the claim processing details.",
		Footer:    "You may now close this window.",
	}
}

func rejectedPageData(t *ticket.Ticket) pageData {
	return pageData{
		Title:     "Claim Rejected",
		Mark:      "✗",
		MarkColor: "#dc3545",
		BoxClass:  "warning",
		Heading:   "Claim Submission Rejected",
		Message:   "You have indicated that you did not submit this claim.",
		TicketID:  t.ID,
		SubjectID: t.SubjectID,
		Status:    "Rejected",
		NextSteps: "Our security team will investigate this matter. You will receive a follow-up email within 24 hours.",
		Footer:    "You may now close this window.",
	}
}

func alreadyResolvedPageData(id string, status ticket.Status) pageData {
	return pageData{
		Title:     "Already Processed",
		Mark:      "!",
		MarkColor: "#856404",
		BoxClass:  "warning",
		Heading:   "This Request Was Already Processed",
		Message:   "A decision has already been recorded for this ticket and cannot be changed.",
		TicketID:  id,
		Status:    string(status),
		Footer:    "You may now close this window.",
	}
}

func notFoundPageData(id string) pageData {
	return pageData{
		Title:     "Ticket Not Found",
		Mark:      "?",
		MarkColor: "#6c757d",
		BoxClass:  "warning",
		Heading:   "Ticket Not Found",
		Message:   "This approval link is invalid or the request has been removed.",
		TicketID:  id,
		Footer:    "If you believe this is an error, please contact customer service.",
	}
}

func errorPageData(id string) pageData {
	return pageData{
		Title:     "Something Went Wrong",
		Mark:      "!",
		MarkColor: "#dc3545",
		BoxClass:  "warning",
		Heading:   "Something Went Wrong",
		Message:   "We could not process your response. Please try again in a moment.",
		TicketID:  id,
		Footer:    "If the problem persists, please contact customer service.",
	}
}
