package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/servdesk-io/servdesk/internal/config"
)

// EmailMessage is one outbound email.
type EmailMessage struct {
	To      []string
	Subject string
	Body    string
}

// EmailProvider sends email. Implementations must be safe for concurrent use.
type EmailProvider interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPProvider delivers mail over plain SMTP with optional AUTH.
type SMTPProvider struct {
	cfg *config.NotificationsConfig
}

// NewSMTPProvider creates a provider from configuration. Sending is a no-op
// while notifications are disabled.
func NewSMTPProvider(cfg *config.NotificationsConfig) EmailProvider {
	return &SMTPProvider{cfg: cfg}
}

// Send implements EmailProvider.
func (s *SMTPProvider) Send(_ context.Context, msg EmailMessage) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return nil
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("notifications: no recipients specified")
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.SMTP.User
	}
	if from == "" {
		from = "noreply@localhost"
	}

	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", strings.Join(msg.To, ", ")),
		fmt.Sprintf("Subject: %s", msg.Subject),
		"Content-Type: text/plain; charset=UTF-8",
	}
	body := strings.Join(headers, "\r\n") + "\r\n\r\n" + msg.Body

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTP.Host, s.cfg.SMTP.Port)
	var auth smtp.Auth
	if s.cfg.SMTP.User != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTP.User, s.cfg.SMTP.Password, s.cfg.SMTP.Host)
	}
	if err := smtp.SendMail(addr, auth, from, msg.To, []byte(body)); err != nil {
		return fmt.Errorf("notifications: send via %s: %w", addr, err)
	}
	return nil
}
