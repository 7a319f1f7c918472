package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/models"
)

// CustomerRepository handles database operations for customers.
type CustomerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `id, email, name, organization, ticket_count, created_at, updated_at`

// GetByEmail looks up a customer by normalized email. Returns (nil, nil) when
// no row exists.
func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*models.Customer, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+customerColumns+` FROM customers WHERE email = $1`), email)
	return scanCustomer(row)
}

// GetByID looks up a customer by id. Returns (nil, nil) when no row exists.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*models.Customer, error) {
	row := r.db.QueryRowContext(ctx, database.ConvertPlaceholders(
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`), id)
	return scanCustomer(row)
}

// Insert creates a new customer row. A unique-constraint violation on email
// surfaces to the caller, which retries with a fresh lookup.
func (r *CustomerRepository) Insert(ctx context.Context, customer *models.Customer) error {
	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	id, err := insertReturningID(ctx, r.db, `
		INSERT INTO customers (email, name, organization, ticket_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		customer.Email, nullString(customer.Name), nullString(customer.Organization),
		customer.TicketCount, now, now)
	if err != nil {
		return err
	}
	customer.ID = id
	return nil
}

// UpdateName back-fills the display name on a customer that has none.
func (r *CustomerRepository) UpdateName(ctx context.Context, id int64, name string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE customers SET name = $1, updated_at = $2 WHERE id = $3`), name, now, id)
	return err
}

// IncrementTicketCount bumps the denormalized ticket counter.
func (r *CustomerRepository) IncrementTicketCount(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, database.ConvertPlaceholders(
		`UPDATE customers SET ticket_count = ticket_count + 1, updated_at = $1 WHERE id = $2`), now, id)
	return err
}

// RecountTicketTotals recomputes every customer's ticket_count from the
// tickets table. Idempotent; this is the repair path for the denormalized
// counter, invoked by the maintenance scheduler and the recount CLI command.
func (r *CustomerRepository) RecountTicketTotals(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE customers SET ticket_count = (
			SELECT COUNT(*) FROM tickets WHERE tickets.customer_id = customers.id
		)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanCustomer(row *sql.Row) (*models.Customer, error) {
	var c models.Customer
	var name, org sql.NullString
	err := row.Scan(&c.ID, &c.Email, &name, &org, &c.TicketCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Name = strPtr(name)
	c.Organization = strPtr(org)
	return &c, nil
}
