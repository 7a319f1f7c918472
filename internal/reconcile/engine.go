// Package reconcile implements the inbound-email reconciliation engine: the
// decision process mapping one inbound email to either a new ticket or a
// reply on an existing one, with at-most-once semantics supplied by the
// idempotency ledger.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/servdesk-io/servdesk/internal/audit"
	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/ledger"
	"github.com/servdesk-io/servdesk/internal/mailparse"
	"github.com/servdesk-io/servdesk/internal/metrics"
	"github.com/servdesk-io/servdesk/internal/models"
	"github.com/servdesk-io/servdesk/internal/status"
	"github.com/servdesk-io/servdesk/internal/ticketnumber"
)

// InboundEmail is the normalized input both ingress paths deliver.
type InboundEmail struct {
	MessageID  string
	FromEmail  string
	FromName   string
	Subject    string
	TextBody   string
	HTMLBody   string
	Date       time.Time
	RawSize    int64
	RawPayload []byte
}

// Result reports what processing did with the email.
type Result struct {
	TicketID    int64
	IsNewTicket bool
	Duplicate   bool
}

type ledgerAPI interface {
	BeginProcessing(ctx context.Context, providerMessageID string, rawPayload []byte) (*ledger.BeginResult, error)
	MarkProcessed(ctx context.Context, eventID, ticketID int64, providerMessageID string) error
	MarkFailed(ctx context.Context, eventID int64, processingErr error)
}

type customerResolver interface {
	Resolve(ctx context.Context, email, name string) (*models.Customer, error)
}

type customerCounter interface {
	IncrementTicketCount(ctx context.Context, id int64) error
}

type ticketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByNumber(ctx context.Context, number string) (*models.Ticket, error)
	ApplyStatusChange(ctx context.Context, id int64, change *status.Change) error
	Touch(ctx context.Context, id int64) error
}

type messageStore interface {
	Create(ctx context.Context, msg *models.Message) error
}

type notifier interface {
	SendTicketCreatedEmail(ctx context.Context, ticket *models.Ticket, customer *models.Customer) error
	SendAdminNotificationEmail(ctx context.Context, ticket *models.Ticket, customer *models.Customer, initialMessage string) error
}

// Engine orchestrates inbound-email processing.
type Engine struct {
	ledger    ledgerAPI
	customers customerResolver
	counters  customerCounter
	tickets   ticketStore
	messages  messageStore
	subjects  *mailparse.SubjectParser
	generator ticketnumber.Generator
	counter   ticketnumber.CounterStore
	auditor   *audit.Recorder
	notify    notifier
	sanitizer *bluemonday.Policy
	logger    *log.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger overrides the diagnostics logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNotifier wires the outbound notification dispatcher.
func WithNotifier(n notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notify = n
		}
	}
}

// WithAuditor wires the audit recorder.
func WithAuditor(a *audit.Recorder) Option {
	return func(e *Engine) {
		e.auditor = a
	}
}

// New builds the reconciliation engine.
func New(
	ldg ledgerAPI,
	resolver customerResolver,
	counters customerCounter,
	tickets ticketStore,
	messages messageStore,
	subjects *mailparse.SubjectParser,
	generator ticketnumber.Generator,
	counter ticketnumber.CounterStore,
	opts ...Option,
) *Engine {
	e := &Engine{
		ledger:    ldg,
		customers: resolver,
		counters:  counters,
		tickets:   tickets,
		messages:  messages,
		subjects:  subjects,
		generator: generator,
		counter:   counter,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// ProcessInboundEmail runs the reconciliation algorithm: idempotency check,
// subject parsing, then either attach-to-existing or create-new. An email
// referencing a stale or unknown ticket number falls back to new-ticket
// creation; it is support input either way.
//
// On internal failure the ledger row is marked failed but left unprocessed,
// so a provider retry of the same message id re-attempts from scratch.
func (e *Engine) ProcessInboundEmail(ctx context.Context, email *InboundEmail) (*Result, error) {
	if email == nil {
		return nil, errors.New("reconcile: email required")
	}
	if strings.TrimSpace(email.FromEmail) == "" {
		return nil, errors.New("reconcile: sender email required")
	}

	begin, err := e.ledger.BeginProcessing(ctx, email.MessageID, email.RawPayload)
	if err != nil {
		return nil, fmt.Errorf("reconcile: ledger: %w", err)
	}
	if begin.IsDuplicate {
		e.logf("reconcile: duplicate delivery of %s (ticket %d)", email.MessageID, begin.TicketID)
		metrics.InboundProcessed.WithLabelValues("duplicate").Inc()
		return &Result{TicketID: begin.TicketID, Duplicate: true}, nil
	}

	result, err := e.process(ctx, email)
	if err != nil {
		e.ledger.MarkFailed(ctx, begin.EventID, err)
		metrics.InboundProcessed.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := e.ledger.MarkProcessed(ctx, begin.EventID, result.TicketID, email.MessageID); err != nil {
		// The mutation succeeded; a failed bookkeeping write only risks a
		// redundant retry, which the ledger absorbs.
		e.logf("reconcile: mark processed failed for %s: %v", email.MessageID, err)
	}
	if result.IsNewTicket {
		metrics.InboundProcessed.WithLabelValues("new_ticket").Inc()
	} else {
		metrics.InboundProcessed.WithLabelValues("follow_up").Inc()
	}
	return result, nil
}

func (e *Engine) process(ctx context.Context, email *InboundEmail) (*Result, error) {
	number := e.subjects.ExtractTicketNumber(email.Subject)
	if number != "" {
		ticket, err := e.tickets.GetByNumber(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("reconcile: lookup %s: %w", number, err)
		}
		if ticket != nil {
			return e.appendReply(ctx, ticket, email)
		}
		e.logf("reconcile: subject references unknown ticket %s, creating new ticket", number)
	}
	return e.createTicket(ctx, email)
}

// appendReply attaches the email to an existing ticket.
func (e *Engine) appendReply(ctx context.Context, ticket *models.Ticket, email *InboundEmail) (*Result, error) {
	customer, err := e.customers.Resolve(ctx, email.FromEmail, email.FromName)
	if err != nil {
		return nil, err
	}

	msg := e.buildInboundMessage(ticket.ID, customer, email, true)
	if err := e.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("reconcile: store reply on %s: %w", ticket.Number, err)
	}

	if ticket.Status == models.StatusPendingCustomer {
		// The customer responded; the ticket is actionable again. This
		// system transition bypasses the legality table.
		change := status.ApplySystem(ticket.Status, models.StatusOpen, time.Now().UTC())
		if err := e.tickets.ApplyStatusChange(ctx, ticket.ID, change); err != nil {
			return nil, fmt.Errorf("reconcile: auto-reopen %s: %w", ticket.Number, err)
		}
		e.auditor.RecordFieldChange(ctx, ticket.ID, audit.ActionStatusChanged, "status",
			string(ticket.Status), string(models.StatusOpen), audit.EmailActor(customer.Email))
		metrics.StatusTransitions.WithLabelValues(string(models.StatusOpen)).Inc()
	} else {
		if err := e.tickets.Touch(ctx, ticket.ID); err != nil {
			return nil, fmt.Errorf("reconcile: touch %s: %w", ticket.Number, err)
		}
	}

	e.auditor.Record(ctx, ticket.ID, audit.EntityMessage, msg.ID, audit.ActionMessageAdded, audit.EmailActor(customer.Email))
	return &Result{TicketID: ticket.ID}, nil
}

// createTicket runs the new-ticket branch.
func (e *Engine) createTicket(ctx context.Context, email *InboundEmail) (*Result, error) {
	customer, err := e.customers.Resolve(ctx, email.FromEmail, email.FromName)
	if err != nil {
		return nil, err
	}

	subject := e.subjects.Normalize(email.Subject)
	ticket, err := e.insertTicketWithRetry(ctx, customer.ID, subject)
	if err != nil {
		return nil, err
	}

	msg := e.buildInboundMessage(ticket.ID, customer, email, false)
	if err := e.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("reconcile: store initial message on %s: %w", ticket.Number, err)
	}

	if err := e.counters.IncrementTicketCount(ctx, customer.ID); err != nil {
		// The counter has a scheduled recount repair path; log and move on.
		e.logf("reconcile: ticket count bump failed for customer %d: %v", customer.ID, err)
	}

	e.auditor.Record(ctx, ticket.ID, audit.EntityTicket, ticket.ID, audit.ActionCreated, audit.EmailActor(customer.Email))
	e.auditor.Record(ctx, ticket.ID, audit.EntityMessage, msg.ID, audit.ActionMessageAdded, audit.EmailActor(customer.Email))

	e.dispatchCreated(ctx, ticket, customer, msg.Content)
	return &Result{TicketID: ticket.ID, IsNewTicket: true}, nil
}

// insertTicketWithRetry creates the ticket row, regenerating number and token
// on a unique-constraint collision. The database constraints are the final
// arbiter of uniqueness.
func (e *Engine) insertTicketWithRetry(ctx context.Context, customerID int64, subject string) (*models.Ticket, error) {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		number, err := e.generator.Next(ctx, e.counter)
		if err != nil {
			return nil, fmt.Errorf("reconcile: ticket number: %w", err)
		}
		ticket := &models.Ticket{
			Number:        number,
			Subject:       subject,
			Status:        models.StatusNew,
			Priority:      models.PriorityNormal,
			TrackingToken: ticketnumber.NewTrackingToken(),
			CustomerID:    customerID,
		}
		if err := e.tickets.Create(ctx, ticket); err != nil {
			if database.IsUniqueViolation(err) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("reconcile: create ticket: %w", err)
		}
		return ticket, nil
	}
	return nil, fmt.Errorf("reconcile: create ticket after %d attempts: %w", attempts, lastErr)
}

func (e *Engine) buildInboundMessage(ticketID int64, customer *models.Customer, email *InboundEmail, isReply bool) *models.Message {
	content := email.TextBody
	if isReply {
		content = mailparse.ExtractReplyContent(email.TextBody)
		if content == "" {
			content = strings.TrimSpace(email.TextBody)
		}
	} else {
		content = strings.TrimSpace(content)
	}

	msg := &models.Message{
		TicketID: ticketID,
		Type:     models.MessageInbound,
		Content:  content,
	}
	senderEmail := customer.Email
	msg.SenderEmail = &senderEmail
	if email.FromName != "" {
		name := strings.TrimSpace(email.FromName)
		msg.SenderName = &name
	}
	if email.MessageID != "" {
		id := email.MessageID
		msg.ProviderMessageID = &id
	}
	if email.HTMLBody != "" {
		sanitized := e.sanitizer.Sanitize(email.HTMLBody)
		if sanitized != "" {
			msg.ContentHTML = &sanitized
		}
	}
	return msg
}

// dispatchCreated sends the customer confirmation and staff alert.
// Notification failure never rolls back ticket creation.
func (e *Engine) dispatchCreated(ctx context.Context, ticket *models.Ticket, customer *models.Customer, initialMessage string) {
	if e.notify == nil {
		return
	}
	if err := e.notify.SendTicketCreatedEmail(ctx, ticket, customer); err != nil {
		metrics.NotificationFailures.Inc()
	}
	if err := e.notify.SendAdminNotificationEmail(ctx, ticket, customer, initialMessage); err != nil {
		metrics.NotificationFailures.Inc()
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}
