// Package ledger implements the idempotency ledger guaranteeing at-most-once
// ticket mutation per physical inbound email.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/servdesk-io/servdesk/internal/models"
	"github.com/servdesk-io/servdesk/internal/repository"
)

// Store is the repository surface the ledger needs.
type Store interface {
	Insert(ctx context.Context, event *models.InboundEvent) error
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*models.InboundEvent, error)
	MarkProcessed(ctx context.Context, eventID, ticketID int64) error
	MarkFailed(ctx context.Context, eventID int64, processingErr string) error
}

// BeginResult is the outcome of a BeginProcessing call.
type BeginResult struct {
	// IsDuplicate is true when a previous delivery of the same provider
	// message id completed processing; the caller must perform no further
	// mutation and must acknowledge success upstream.
	IsDuplicate bool
	// TicketID is the ticket produced by the completed earlier attempt.
	// Only meaningful when IsDuplicate is true.
	TicketID int64
	// EventID identifies the ledger row the caller marks processed or
	// failed after its branch completes.
	EventID int64
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithLogger overrides the diagnostics logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithCache wires an optional duplicate-check fast path. The database unique
// constraint stays authoritative; the cache only short-circuits lookups for
// recently processed ids.
func WithCache(cache *Cache) Option {
	return func(l *Ledger) {
		l.cache = cache
	}
}

// Ledger records inbound processing attempts keyed by provider message id.
type Ledger struct {
	store  Store
	cache  *Cache
	logger *log.Logger
}

// New creates a ledger over the given store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, logger: log.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// BeginProcessing registers an inbound delivery before any side-effecting
// work. The insert is attempted first and a unique-constraint conflict is the
// authoritative duplicate signal, closing the lookup-then-insert race window
// under concurrent delivery of the same message id.
//
// A conflicting row that is still processed=false comes from an interrupted
// attempt: it is NOT treated as a duplicate, and the caller re-attempts
// processing from scratch against the existing ledger row.
func (l *Ledger) BeginProcessing(ctx context.Context, providerMessageID string, rawPayload []byte) (*BeginResult, error) {
	if providerMessageID == "" {
		return nil, fmt.Errorf("ledger: provider message id required")
	}

	if ticketID, ok := l.cachedTicket(ctx, providerMessageID); ok {
		return &BeginResult{IsDuplicate: true, TicketID: ticketID}, nil
	}

	event := &models.InboundEvent{
		ProviderMessageID: providerMessageID,
		RawPayload:        rawPayload,
	}
	err := l.store.Insert(ctx, event)
	if err == nil {
		return &BeginResult{EventID: event.ID}, nil
	}
	if !errors.Is(err, repository.ErrDuplicateEvent) {
		return nil, fmt.Errorf("ledger: insert %s: %w", providerMessageID, err)
	}

	existing, lookupErr := l.store.GetByProviderMessageID(ctx, providerMessageID)
	if lookupErr != nil {
		return nil, fmt.Errorf("ledger: refetch %s: %w", providerMessageID, lookupErr)
	}
	if existing == nil {
		return nil, fmt.Errorf("ledger: insert conflict but no row for %s", providerMessageID)
	}
	if existing.Processed {
		var ticketID int64
		if existing.TicketID != nil {
			ticketID = *existing.TicketID
		}
		return &BeginResult{IsDuplicate: true, TicketID: ticketID, EventID: existing.ID}, nil
	}
	// Interrupted earlier attempt; retry against the same row.
	return &BeginResult{EventID: existing.ID}, nil
}

// MarkProcessed completes the ledger row for a successful branch.
func (l *Ledger) MarkProcessed(ctx context.Context, eventID, ticketID int64, providerMessageID string) error {
	if err := l.store.MarkProcessed(ctx, eventID, ticketID); err != nil {
		return fmt.Errorf("ledger: mark processed %d: %w", eventID, err)
	}
	l.cacheTicket(ctx, providerMessageID, ticketID)
	return nil
}

// MarkFailed records a failure without consuming the idempotency key; the
// row stays retryable.
func (l *Ledger) MarkFailed(ctx context.Context, eventID int64, processingErr error) {
	if eventID == 0 || processingErr == nil {
		return
	}
	if err := l.store.MarkFailed(ctx, eventID, processingErr.Error()); err != nil {
		l.logger.Printf("ledger: mark failed for event %d: %v", eventID, err)
	}
}

func (l *Ledger) cachedTicket(ctx context.Context, providerMessageID string) (int64, bool) {
	if l.cache == nil {
		return 0, false
	}
	ticketID, ok, err := l.cache.Get(ctx, providerMessageID)
	if err != nil {
		l.logger.Printf("ledger: cache lookup failed for %s: %v", providerMessageID, err)
		return 0, false
	}
	return ticketID, ok
}

func (l *Ledger) cacheTicket(ctx context.Context, providerMessageID string, ticketID int64) {
	if l.cache == nil || providerMessageID == "" {
		return
	}
	if err := l.cache.Set(ctx, providerMessageID, ticketID); err != nil {
		l.logger.Printf("ledger: cache store failed for %s: %v", providerMessageID, err)
	}
}
