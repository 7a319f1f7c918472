package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/models"
)

// ErrDuplicateEvent signals that a ledger row already exists for the provider
// message id. The unique constraint on provider_message_id is the
// authoritative duplicate arbiter under concurrent delivery.
var ErrDuplicateEvent = errors.New("repository: inbound event already recorded")

// InboundEventRepository handles database operations for the idempotency
// ledger.
type InboundEventRepository struct {
	db *sql.DB
}

// NewInboundEventRepository creates a new inbound event repository.
func NewInboundEventRepository(db *sql.DB) *InboundEventRepository {
	return &InboundEventRepository{db: db}
}

const inboundEventColumns = `id, provider_message_id, raw_payload, processed, processed_at, ticket_id, error, created_at`

// Insert records a new unprocessed ledger row. Returns ErrDuplicateEvent when
// the provider message id is already present; the caller then reads the
// existing row to decide whether processing was completed or interrupted.
func (r *InboundEventRepository) Insert(ctx context.Context, event *models.InboundEvent) error {
	now := time.Now().UTC()
	event.CreatedAt = now
	id, err := insertReturningID(ctx, r.db, `
		INSERT INTO inbound_events (provider_message_id, raw_payload, processed, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		event.ProviderMessageID, event.RawPayload, false, now)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return err
	}
	event.ID = id
	return nil
}

// GetByProviderMessageID returns the ledger row for a provider message id, or
// (nil, nil) when absent.
func (r *InboundEventRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*models.InboundEvent, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+inboundEventColumns+` FROM inbound_events WHERE provider_message_id = $1`), providerMessageID)
	return scanInboundEvent(row)
}

// MarkProcessed sets processed=true with the resulting ticket id. Only after
// this write does the ledger row suppress reprocessing.
func (r *InboundEventRepository) MarkProcessed(ctx context.Context, eventID, ticketID int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE inbound_events SET processed = $1, processed_at = $2, ticket_id = $3, error = NULL WHERE id = $4`),
		true, now, ticketID, eventID)
	return err
}

// MarkFailed records a processing failure on the ledger row. The row stays
// processed=false so a provider retry re-attempts from scratch.
func (r *InboundEventRepository) MarkFailed(ctx context.Context, eventID int64, processingErr string) error {
	_, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE inbound_events SET error = $1 WHERE id = $2`), processingErr, eventID)
	return err
}

func scanInboundEvent(row *sql.Row) (*models.InboundEvent, error) {
	var e models.InboundEvent
	var processedAt sql.NullTime
	var ticketID sql.NullInt64
	var errMsg sql.NullString
	err := row.Scan(&e.ID, &e.ProviderMessageID, &e.RawPayload, &e.Processed,
		&processedAt, &ticketID, &errMsg, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ProcessedAt = timePtr(processedAt)
	e.TicketID = int64Ptr(ticketID)
	e.Error = strPtr(errMsg)
	return &e, nil
}
