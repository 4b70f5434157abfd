// Package notification delivers approval request emails to requesters.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/felixgeelhaar/hitl-go/infrastructure/logging"
)

// Mailer errors.
var (
	// ErrInvalidRecipient indicates the recipient address is malformed.
	ErrInvalidRecipient = errors.New("notification: invalid recipient address")
	// ErrSendFailed indicates the SMTP delivery failed.
	ErrSendFailed = errors.New("notification: send failed")
)

// MailerConfig configures the SMTP mailer.
type MailerConfig struct {
	// Host is the SMTP server host.
	Host string
	// Port is the SMTP server port.
	Port int
	// Username authenticates with the SMTP server.
	Username string
	// Password authenticates with the SMTP server. When empty the mailer
	// runs in demo mode: messages are logged instead of sent.
	Password string
	// From is the sender address.
	From string
}

// DefaultMailerConfig returns defaults matching a typical STARTTLS setup.
func DefaultMailerConfig() MailerConfig {
	return MailerConfig{
		Host: "smtp.gmail.com",
		Port: 587,
		From: "noreply@insurance.com",
	}
}

// Mailer sends HTML email over SMTP.
//
// Without a password it operates in demo mode. Demo sends are reported as
// successful so the approval flow can be exercised end to end without an
// SMTP account.
type Mailer struct {
	config MailerConfig

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a mailer from the given configuration.
func NewMailer(config MailerConfig) *Mailer {
	if config.Host == "" {
		config.Host = "smtp.gmail.com"
	}
	if config.Port <= 0 {
		config.Port = 587
	}
	if config.From == "" {
		config.From = "noreply@insurance.com"
	}
	return &Mailer{
		config:   config,
		sendMail: smtp.SendMail,
	}
}

// DemoMode reports whether sends are logged rather than delivered.
func (m *Mailer) DemoMode() bool {
	return m.config.Password == ""
}

// Send delivers an HTML message to the recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.Contains(to, "@") {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
	}

	if m.DemoMode() {
		logging.Info().
			Add(logging.Recipient(to)).
			Add(logging.Str("subject", subject)).
			Msg("email not sent, demo mode")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)

	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	if err := m.sendMail(addr, auth, m.config.From, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	logging.Info().
		Add(logging.Recipient(to)).
		Add(logging.Str("subject", subject)).
		Msg("email sent")
	return nil
}
