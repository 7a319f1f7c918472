// Package status validates and executes ticket status transitions. The legal
// transition table is enforced identically on the read (preview) and write
// paths; derived timestamps (resolvedAt, closedAt) are applied atomically
// with the status write by the repository layer.
package status

import (
	"fmt"
	"time"

	"github.com/servdesk-io/servdesk/internal/models"
)

// legalTransitions is the agent-facing transition table. NEW is an entry
// state only and never a legal target. System-triggered transitions (the
// PENDING_CUSTOMER auto-reopen on an inbound reply) bypass this table.
var legalTransitions = map[models.TicketStatus][]models.TicketStatus{
	models.StatusNew:             {models.StatusOpen, models.StatusPendingCustomer, models.StatusOnHold, models.StatusResolved, models.StatusClosed},
	models.StatusOpen:            {models.StatusPendingCustomer, models.StatusOnHold, models.StatusResolved, models.StatusClosed},
	models.StatusPendingCustomer: {models.StatusOpen, models.StatusOnHold, models.StatusResolved, models.StatusClosed},
	models.StatusOnHold:          {models.StatusOpen, models.StatusPendingCustomer, models.StatusResolved, models.StatusClosed},
	models.StatusResolved:        {models.StatusOpen, models.StatusClosed},
	models.StatusClosed:          {models.StatusOpen},
}

// InvalidTransitionError describes a rejected transition and carries the set
// of currently valid targets for client-side hints.
type InvalidTransitionError struct {
	Current models.TicketStatus
	Target  models.TicketStatus
	Valid   []models.TicketStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("status: transition %s -> %s is not allowed", e.Current, e.Target)
}

// ValidNextStatuses returns the legal targets from current.
func ValidNextStatuses(current models.TicketStatus) []models.TicketStatus {
	next := legalTransitions[current]
	out := make([]models.TicketStatus, len(next))
	copy(out, next)
	return out
}

// ValidateTransition checks transition legality without executing it.
func ValidateTransition(current, target models.TicketStatus) error {
	if !target.Valid() {
		return &InvalidTransitionError{Current: current, Target: target, Valid: ValidNextStatuses(current)}
	}
	for _, allowed := range legalTransitions[current] {
		if allowed == target {
			return nil
		}
	}
	return &InvalidTransitionError{Current: current, Target: target, Valid: ValidNextStatuses(current)}
}

// Change is the computed outcome of a transition: the new status plus the
// timestamp side effects to persist with it. A nil pointer field means
// "leave unchanged"; the Clear flags null the column.
type Change struct {
	Status          models.TicketStatus
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	ClearResolvedAt bool
	ClearClosedAt   bool
}

// Apply validates current -> target and computes the derived timestamps:
// entering RESOLVED sets resolvedAt, entering CLOSED sets closedAt, and
// reopening to OPEN from RESOLVED or CLOSED clears both. firstResponseAt is
// untouched; it does not participate in reopen semantics.
func Apply(current, target models.TicketStatus, now time.Time) (*Change, error) {
	if err := ValidateTransition(current, target); err != nil {
		return nil, err
	}
	return computeChange(current, target, now), nil
}

// ApplySystem computes a system-triggered transition without consulting the
// legality table. Used for the PENDING_CUSTOMER -> OPEN auto-reopen when the
// customer replies; that transition is always legal by construction.
func ApplySystem(current, target models.TicketStatus, now time.Time) *Change {
	return computeChange(current, target, now)
}

func computeChange(current, target models.TicketStatus, now time.Time) *Change {
	change := &Change{Status: target}
	switch target {
	case models.StatusResolved:
		if current != models.StatusResolved {
			t := now
			change.ResolvedAt = &t
		}
	case models.StatusClosed:
		if current != models.StatusClosed {
			t := now
			change.ClosedAt = &t
		}
	case models.StatusOpen:
		if current == models.StatusResolved || current == models.StatusClosed {
			change.ClearResolvedAt = true
			change.ClearClosedAt = true
		}
	}
	return change
}
