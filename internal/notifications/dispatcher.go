// Package notifications decides what outbound email to send and to whom.
// Delivery is best-effort: failures are logged and never block the ticket
// mutation that triggered them.
package notifications

import (
	"context"
	"fmt"
	"log"

	"github.com/servdesk-io/servdesk/internal/mailparse"
	"github.com/servdesk-io/servdesk/internal/models"
)

// Dispatcher composes and sends ticket lifecycle notifications.
type Dispatcher struct {
	provider    EmailProvider
	adminEmails []string
	logger      *log.Logger
}

// NewDispatcher creates a dispatcher. A nil provider yields a dispatcher
// whose sends are silently dropped, which keeps call sites unconditional.
func NewDispatcher(provider EmailProvider, adminEmails []string, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{provider: provider, adminEmails: adminEmails, logger: logger}
}

// SendTicketCreatedEmail confirms receipt to the customer. The subject
// carries the bracketed ticket reference so replies thread back.
func (d *Dispatcher) SendTicketCreatedEmail(ctx context.Context, ticket *models.Ticket, customer *models.Customer) error {
	if d == nil || d.provider == nil || ticket == nil || customer == nil {
		return nil
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nWe have received your request and created ticket %s.\n\n"+
			"Subject: %s\n\nYou can follow progress at any time using your tracking token:\n%s\n\n"+
			"Reply to this email to add information to your ticket.\n",
		customer.DisplayName(), ticket.Number, ticket.Subject, ticket.TrackingToken)
	msg := EmailMessage{
		To:      []string{customer.Email},
		Subject: mailparse.FormatReference(ticket.Number, ticket.Subject),
		Body:    body,
	}
	if err := d.provider.Send(ctx, msg); err != nil {
		d.logger.Printf("notifications: ticket created email for %s failed: %v", ticket.Number, err)
		return err
	}
	return nil
}

// SendAdminNotificationEmail alerts staff about a new ticket.
func (d *Dispatcher) SendAdminNotificationEmail(ctx context.Context, ticket *models.Ticket, customer *models.Customer, initialMessage string) error {
	if d == nil || d.provider == nil || ticket == nil || len(d.adminEmails) == 0 {
		return nil
	}
	sender := ""
	if customer != nil {
		sender = customer.Email
	}
	body := fmt.Sprintf(
		"New ticket %s\n\nFrom: %s\nSubject: %s\nPriority: %s\n\n%s\n",
		ticket.Number, sender, ticket.Subject, ticket.Priority, initialMessage)
	msg := EmailMessage{
		To:      d.adminEmails,
		Subject: fmt.Sprintf("New ticket %s: %s", ticket.Number, ticket.Subject),
		Body:    body,
	}
	if err := d.provider.Send(ctx, msg); err != nil {
		d.logger.Printf("notifications: admin notification for %s failed: %v", ticket.Number, err)
		return err
	}
	return nil
}
