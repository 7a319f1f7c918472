// Package ticketnumber produces human-readable ticket numbers and
// unguessable tracking tokens.
package ticketnumber

import "context"

// Generator defines the contract for ticket number generators.
type Generator interface {
	Name() string
	Next(ctx context.Context, store CounterStore) (string, error)
	IsDateBased() bool
}

// CounterStore is the abstraction over the ticket_number_counters table.
type CounterStore interface {
	// Add atomically increments the counter by offset (>=1) and returns the
	// new value. dateScoped selects a per-day counter row.
	Add(ctx context.Context, dateScoped bool, offset int64) (int64, error)
}

// Config needed by generators.
type Config struct {
	Prefix         string
	MinCounterSize int
}

// Clock allows deterministic testing of date-based generators.
type Clock interface{ Now() TimeParts }

// TimeParts holds the minimal date parts generators need.
type TimeParts struct {
	Year  int
	Month int
	Day   int
}
