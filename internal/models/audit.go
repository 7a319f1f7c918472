package models

import "time"

// AuditLog is one append-only record of a state-affecting action. Rows are
// never updated or deleted. ActorID/ActorEmail are nil for system-originated
// actions; email-originated actions carry the sender's address in ActorEmail.
type AuditLog struct {
	ID         int64     `json:"id" db:"id"`
	TicketID   *int64    `json:"ticket_id,omitempty" db:"ticket_id"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   int64     `json:"entity_id" db:"entity_id"`
	Action     string    `json:"action" db:"action"`
	Field      *string   `json:"field,omitempty" db:"field"`
	OldValue   *string   `json:"old_value,omitempty" db:"old_value"`
	NewValue   *string   `json:"new_value,omitempty" db:"new_value"`
	Metadata   *string   `json:"metadata,omitempty" db:"metadata"`
	ActorID    *int64    `json:"actor_id,omitempty" db:"actor_id"`
	ActorEmail *string   `json:"actor_email,omitempty" db:"actor_email"`
	IP         *string   `json:"ip,omitempty" db:"ip"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
