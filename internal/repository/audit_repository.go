package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/models"
)

// AuditRepository appends to and reads from the append-only audit log. There
// are deliberately no update or delete methods.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit row.
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditLog) error {
	now := time.Now().UTC()
	entry.CreatedAt = now
	id, err := insertReturningID(ctx, r.db, `
		INSERT INTO audit_logs (ticket_id, entity_type, entity_id, action, field, old_value,
			new_value, metadata, actor_id, actor_email, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		nullInt64(entry.TicketID), entry.EntityType, entry.EntityID, entry.Action,
		nullString(entry.Field), nullString(entry.OldValue), nullString(entry.NewValue),
		nullString(entry.Metadata), nullInt64(entry.ActorID), nullString(entry.ActorEmail),
		nullString(entry.IP), now)
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

// ListByTicket returns a ticket's audit entries in write order.
func (r *AuditRepository) ListByTicket(ctx context.Context, ticketID int64) ([]models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, database.ConvertPlaceholders(`
		SELECT id, ticket_id, entity_type, entity_id, action, field, old_value, new_value,
			metadata, actor_id, actor_email, ip, created_at
		FROM audit_logs WHERE ticket_id = $1 ORDER BY id`), ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		var ticketID, actorID sql.NullInt64
		var field, oldValue, newValue, metadata, actorEmail, ip sql.NullString
		if err := rows.Scan(&e.ID, &ticketID, &e.EntityType, &e.EntityID, &e.Action,
			&field, &oldValue, &newValue, &metadata, &actorID, &actorEmail, &ip, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TicketID = int64Ptr(ticketID)
		e.Field = strPtr(field)
		e.OldValue = strPtr(oldValue)
		e.NewValue = strPtr(newValue)
		e.Metadata = strPtr(metadata)
		e.ActorID = int64Ptr(actorID)
		e.ActorEmail = strPtr(actorEmail)
		e.IP = strPtr(ip)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
