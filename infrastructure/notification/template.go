package notification

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/felixgeelhaar/hitl-go/domain/claim"
	"github.com/felixgeelhaar/hitl-go/domain/ticket"
)

// ApprovalEmail holds everything the approval request template needs.
type ApprovalEmail struct {
	Ticket     *ticket.Ticket
	Claim      claim.Claim
	ApproveURL string
	RejectURL  string
}

var approvalTmpl = template.Must(template.New("approval").Funcs(template.FuncMap{
	"title": titleCase,
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
}).Parse(`<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <div style="background-color: #0066cc; color: white; padding: 20px; border-radius: 5px 5px 0 0;">
        <h2 style="margin: 0;">Insurance Notification</h2>
      </div>
      <div style="border: 1px solid #ddd; padding: 20px; border-radius: 0 0 5px 5px;">
        <h3>Claim Verification Required</h3>

        <p>We received a request related to claim <strong>{{.Claim.ID}}</strong>.</p>

        <p><strong>Claim Details:</strong></p>
        <ul>
          <li>Claim ID: {{.Claim.ID}}</li>
          <li>Type: {{title .Claim.Type}}</li>
          <li>Amount: {{money .Claim.Amount}}</li>
          <li>Status: {{title .Claim.Status}}</li>
          <li>Filed Date: {{.Claim.FiledDate}}</li>
        </ul>

        <p><strong>Please confirm:</strong> Did you submit this claim via mail?</p>

        <div style="margin: 30px 0; text-align: center;">
          <a href="{{.ApproveURL}}"
             style="background-color: #28a745; color: white; padding: 12px 30px; text-decoration: none;
                    border-radius: 5px; margin: 10px; display: inline-block; font-weight: bold;">
            YES, I SUBMITTED THIS CLAIM
          </a>

          <a href="{{.RejectURL}}"
             style="background-color: #dc3545; color: white; padding: 12px 30px; text-decoration: none;
                    border-radius: 5px; margin: 10px; display: inline-block; font-weight: bold;">
            NO, I DID NOT SUBMIT THIS
          </a>
        </div>

        <p style="margin-top: 30px; color: #666; font-size: 12px;">
          <strong>Ticket ID:</strong> {{.Ticket.ID}}<br>
          Click one of the buttons above to confirm. This is a one-time action and cannot be undone.
        </p>
      </div>
    </div>
  </body>
</html>`))

// RenderApprovalEmail renders the approve/reject request email body.
func RenderApprovalEmail(data ApprovalEmail) (string, error) {
	var b strings.Builder
	if err := approvalTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render approval email: %w", err)
	}
	return b.String(), nil
}

// ApprovalSubject returns the subject line for an approval request email.
func ApprovalSubject(claimID string) string {
	return "Action Required: Verify Claim Submission - " + claimID
}

// titleCase turns snake_case tags into display text, e.g. "auto_accident"
// into "Auto Accident".
func titleCase(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
