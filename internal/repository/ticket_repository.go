package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/models"
	"github.com/servdesk-io/servdesk/internal/status"
)

// TicketRepository handles database operations for tickets.
type TicketRepository struct {
	db *sql.DB
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, number, subject, status, priority, tracking_token, customer_id,
	assignee_id, thread_id, first_response_at, resolved_at, closed_at, created_at, updated_at`

// Create inserts a new ticket. Number and tracking token uniqueness is
// enforced by the database constraints; violations surface to the caller.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	id, err := insertReturningID(ctx, r.db, `
		INSERT INTO tickets (number, subject, status, priority, tracking_token, customer_id,
			assignee_id, thread_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		ticket.Number, ticket.Subject, string(ticket.Status), string(ticket.Priority),
		ticket.TrackingToken, ticket.CustomerID, nullInt64(ticket.AssigneeID),
		nullString(ticket.ThreadID), now, now)
	if err != nil {
		return err
	}
	ticket.ID = id
	return nil
}

// GetByID returns the ticket with the given id, or (nil, nil) when absent.
func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`), id)
	return scanTicket(row)
}

// GetByNumber returns the ticket with the given human-readable number, or
// (nil, nil) when absent. Lookup is case-insensitive on the stored number.
func (r *TicketRepository) GetByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+ticketColumns+` FROM tickets WHERE UPPER(number) = UPPER($1)`), number)
	return scanTicket(row)
}

// GetByTrackingToken returns the ticket for an unauthenticated customer
// lookup, or (nil, nil) when the token matches nothing.
func (r *TicketRepository) GetByTrackingToken(ctx context.Context, token string) (*models.Ticket, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+ticketColumns+` FROM tickets WHERE tracking_token = $1`), token)
	return scanTicket(row)
}

// ApplyStatusChange persists a computed status transition together with its
// derived timestamps in a single UPDATE, keeping the status write and its
// side effects atomic.
func (r *TicketRepository) ApplyStatusChange(ctx context.Context, id int64, change *status.Change) error {
	if change == nil {
		return errors.New("repository: status change required")
	}
	now := time.Now().UTC()
	sets := []string{"status = $1", "updated_at = $2"}
	args := []any{string(change.Status), now}
	n := 3
	if change.ResolvedAt != nil {
		sets = append(sets, fmt.Sprintf("resolved_at = $%d", n))
		args = append(args, *change.ResolvedAt)
		n++
	}
	if change.ClosedAt != nil {
		sets = append(sets, fmt.Sprintf("closed_at = $%d", n))
		args = append(args, *change.ClosedAt)
		n++
	}
	if change.ClearResolvedAt {
		sets = append(sets, "resolved_at = NULL")
	}
	if change.ClearClosedAt {
		sets = append(sets, "closed_at = NULL")
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE tickets SET %s WHERE id = $%d", strings.Join(sets, ", "), n)
	_, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(query), args...)
	return err
}

// Touch bumps updated_at. Last write wins under concurrent inbound replies.
func (r *TicketRepository) Touch(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE tickets SET updated_at = $1 WHERE id = $2`), now, id)
	return err
}

// SetFirstResponseAt records the first outbound reply time. The guard in the
// WHERE clause makes the write idempotent under concurrent replies.
func (r *TicketRepository) SetFirstResponseAt(ctx context.Context, id int64, t time.Time) error {
	_, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE tickets SET first_response_at = $1, updated_at = $2 WHERE id = $3 AND first_response_at IS NULL`),
		t, time.Now().UTC(), id)
	return err
}

// UpdateAssignee reassigns the ticket; nil clears the assignment.
func (r *TicketRepository) UpdateAssignee(ctx context.Context, id int64, assigneeID *int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE tickets SET assignee_id = $1, updated_at = $2 WHERE id = $3`),
		nullInt64(assigneeID), now, id)
	return err
}

func scanTicket(row *sql.Row) (*models.Ticket, error) {
	var t models.Ticket
	var statusStr, priorityStr string
	var assignee sql.NullInt64
	var thread sql.NullString
	var firstResponse, resolved, closed sql.NullTime
	err := row.Scan(&t.ID, &t.Number, &t.Subject, &statusStr, &priorityStr, &t.TrackingToken,
		&t.CustomerID, &assignee, &thread, &firstResponse, &resolved, &closed,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Status = models.TicketStatus(statusStr)
	t.Priority = models.TicketPriority(priorityStr)
	t.AssigneeID = int64Ptr(assignee)
	t.ThreadID = strPtr(thread)
	t.FirstResponseAt = timePtr(firstResponse)
	t.ResolvedAt = timePtr(resolved)
	t.ClosedAt = timePtr(closed)
	return &t, nil
}
