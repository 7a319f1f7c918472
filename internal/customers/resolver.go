// Package customers maps inbound email addresses to stable customer records.
package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/models"
)

// Store is the repository surface the resolver needs.
type Store interface {
	GetByEmail(ctx context.Context, email string) (*models.Customer, error)
	Insert(ctx context.Context, customer *models.Customer) error
	UpdateName(ctx context.Context, id int64, name string) error
}

// Resolver finds or creates the customer for an email address.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// NormalizeEmail lowercases and trims an address; the normalized form is the
// sole customer identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Resolve returns the customer for email, creating one when absent. When an
// existing customer has no display name and one is supplied, the name is
// back-filled; that is the only mutating path on an existing row. Concurrent
// calls for the same address are safe: the unique constraint on email is the
// arbiter, and a losing insert retries with a fresh lookup.
func (r *Resolver) Resolve(ctx context.Context, email, name string) (*models.Customer, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, fmt.Errorf("customers: email required")
	}
	name = strings.TrimSpace(name)

	existing, err := r.store.GetByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("customers: lookup %s: %w", normalized, err)
	}
	if existing != nil {
		return r.backfillName(ctx, existing, name)
	}

	customer := &models.Customer{Email: normalized}
	if name != "" {
		customer.Name = &name
	}
	if err := r.store.Insert(ctx, customer); err != nil {
		if database.IsUniqueViolation(err) {
			// Lost the race to a concurrent insert; the winner's row is
			// authoritative.
			existing, lookupErr := r.store.GetByEmail(ctx, normalized)
			if lookupErr != nil {
				return nil, fmt.Errorf("customers: refetch %s: %w", normalized, lookupErr)
			}
			if existing == nil {
				return nil, fmt.Errorf("customers: insert conflict but no row for %s", normalized)
			}
			return r.backfillName(ctx, existing, name)
		}
		return nil, fmt.Errorf("customers: insert %s: %w", normalized, err)
	}
	return customer, nil
}

func (r *Resolver) backfillName(ctx context.Context, customer *models.Customer, name string) (*models.Customer, error) {
	if name == "" || (customer.Name != nil && *customer.Name != "") {
		return customer, nil
	}
	if err := r.store.UpdateName(ctx, customer.ID, name); err != nil {
		return nil, fmt.Errorf("customers: backfill name for %s: %w", customer.Email, err)
	}
	customer.Name = &name
	return customer, nil
}
