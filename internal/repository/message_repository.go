package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/models"
)

// MessageRepository handles database operations for ticket messages.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, ticket_id, type, content, content_html, sender_email, sender_name,
	recipient_email, provider_message_id, author_id, created_at`

// Create inserts a message. Messages are immutable after creation.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	now := time.Now().UTC()
	msg.CreatedAt = now
	id, err := insertReturningID(ctx, r.db, `
		INSERT INTO messages (ticket_id, type, content, content_html, sender_email, sender_name,
			recipient_email, provider_message_id, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		msg.TicketID, string(msg.Type), msg.Content, nullString(msg.ContentHTML),
		nullString(msg.SenderEmail), nullString(msg.SenderName), nullString(msg.RecipientEmail),
		nullString(msg.ProviderMessageID), nullInt64(msg.AuthorID), now)
	if err != nil {
		return err
	}
	msg.ID = id
	return nil
}

// ListByTicket returns a ticket's messages ordered by creation time. When
// includeInternal is false, INTERNAL messages are filtered out (customer
// tracking view).
func (r *MessageRepository) ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE ticket_id = $1`
	if !includeInternal {
		query += ` AND type != '` + string(models.MessageInternal) + `'`
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, database.ConvertPlaceholders(query), ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var typeStr string
		var contentHTML, senderEmail, senderName, recipientEmail, providerID sql.NullString
		var authorID sql.NullInt64
		if err := rows.Scan(&m.ID, &m.TicketID, &typeStr, &m.Content, &contentHTML,
			&senderEmail, &senderName, &recipientEmail, &providerID, &authorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = models.MessageType(typeStr)
		m.ContentHTML = strPtr(contentHTML)
		m.SenderEmail = strPtr(senderEmail)
		m.SenderName = strPtr(senderName)
		m.RecipientEmail = strPtr(recipientEmail)
		m.ProviderMessageID = strPtr(providerID)
		m.AuthorID = int64Ptr(authorID)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
