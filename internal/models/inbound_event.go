package models

import "time"

// InboundEvent is one row of the idempotency ledger: a record of one attempted
// processing of one externally-delivered email, keyed by the provider's
// message id. Exactly one row exists per provider message id; only rows with
// Processed=true suppress reprocessing, so an interrupted attempt stays
// retryable.
type InboundEvent struct {
	ID                int64      `json:"id" db:"id"`
	ProviderMessageID string     `json:"provider_message_id" db:"provider_message_id"`
	RawPayload        []byte     `json:"-" db:"raw_payload"`
	Processed         bool       `json:"processed" db:"processed"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	TicketID          *int64     `json:"ticket_id,omitempty" db:"ticket_id"`
	Error             *string    `json:"error,omitempty" db:"error"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}
