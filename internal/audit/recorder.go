// Package audit provides the append-only audit trail writer used by the
// ticket engine and the agent-facing endpoints.
package audit

import (
	"context"
	"log"

	"github.com/servdesk-io/servdesk/internal/models"
)

// Action constants for common state-affecting events.
const (
	ActionCreated       = "created"
	ActionMessageAdded  = "message_added"
	ActionStatusChanged = "status_changed"
	ActionAssigned      = "assigned"
)

// Entity type constants.
const (
	EntityTicket  = "ticket"
	EntityMessage = "message"
)

// Inserter is the repository surface the recorder needs.
type Inserter interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
}

// Actor identifies who performed an action. A zero Actor means the system;
// email-originated actions carry only Email.
type Actor struct {
	ID    *int64
	Email string
	IP    string
}

// SystemActor is the zero actor for system-triggered events.
var SystemActor = Actor{}

// EmailActor attributes an action to an inbound email sender.
func EmailActor(email string) Actor {
	return Actor{Email: email}
}

// PrincipalActor attributes an action to an authenticated principal.
func PrincipalActor(id int64, email, ip string) Actor {
	return Actor{ID: &id, Email: email, IP: ip}
}

// Recorder writes audit entries. Failures are logged, never propagated: a
// broken audit sink must not roll back the mutation it describes.
type Recorder struct {
	repo   Inserter
	logger *log.Logger
}

// NewRecorder creates a recorder over the given repository. Returns nil if
// repo is nil; a nil recorder silently drops entries.
func NewRecorder(repo Inserter, logger *log.Logger) *Recorder {
	if repo == nil {
		return nil
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{repo: repo, logger: logger}
}

// Record appends one audit row for a ticket-scoped action.
func (r *Recorder) Record(ctx context.Context, ticketID int64, entityType string, entityID int64, action string, actor Actor) {
	r.record(ctx, &models.AuditLog{
		TicketID:   &ticketID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
	}, actor)
}

// RecordFieldChange appends one audit row capturing an old/new value pair.
func (r *Recorder) RecordFieldChange(ctx context.Context, ticketID int64, action, field, oldValue, newValue string, actor Actor) {
	r.record(ctx, &models.AuditLog{
		TicketID:   &ticketID,
		EntityType: EntityTicket,
		EntityID:   ticketID,
		Action:     action,
		Field:      &field,
		OldValue:   &oldValue,
		NewValue:   &newValue,
	}, actor)
}

func (r *Recorder) record(ctx context.Context, entry *models.AuditLog, actor Actor) {
	if r == nil || r.repo == nil {
		return
	}
	entry.ActorID = actor.ID
	if actor.Email != "" {
		email := actor.Email
		entry.ActorEmail = &email
	}
	if actor.IP != "" {
		ip := actor.IP
		entry.IP = &ip
	}
	if err := r.repo.Insert(ctx, entry); err != nil {
		r.logger.Printf("audit: insert failed for %s/%d action %s: %v",
			entry.EntityType, entry.EntityID, entry.Action, err)
	}
}
