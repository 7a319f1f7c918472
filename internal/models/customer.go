package models

import "time"

// Customer is the identity of an external email sender. The normalized email
// address is the sole identity key; no two rows may share one. Customers are
// created lazily on first contact and never deleted.
type Customer struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         *string   `json:"name,omitempty" db:"name"`
	Organization *string   `json:"organization,omitempty" db:"organization"`
	TicketCount  int       `json:"ticket_count" db:"ticket_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the customer's name when set, falling back to the email.
func (c *Customer) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	return c.Email
}
