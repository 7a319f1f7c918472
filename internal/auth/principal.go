// Package auth models the authenticated principal and centralizes the
// role/assignment authorization gate consulted by every mutating endpoint.
package auth

import (
	"github.com/servdesk-io/servdesk/internal/models"
)

// Role is a closed enum with a total order: Customer < Agent < Lead < Admin.
type Role int

const (
	RoleCustomer Role = iota
	RoleAgent
	RoleLead
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleCustomer: "customer",
	RoleAgent:    "agent",
	RoleLead:     "lead",
	RoleAdmin:    "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole maps a role string to its enum value; unknown strings map to the
// lowest privilege.
func ParseRole(s string) Role {
	for role, name := range roleNames {
		if name == s {
			return role
		}
	}
	return RoleCustomer
}

// AtLeast reports whether r carries at least the privileges of other.
func (r Role) AtLeast(other Role) bool { return r >= other }

// Principal is the opaque "current user" the ticket engine consults. How it
// was authenticated is not this package's concern.
type Principal struct {
	ID     int64
	Email  string
	Role   Role
	Active bool
}

// CanReply reports whether the principal may add a reply to the ticket.
// Plain agents may only reply on tickets currently assigned to them; higher
// tiers may reply anywhere.
func CanReply(p *Principal, ticket *models.Ticket) bool {
	if p == nil || !p.Active || ticket == nil {
		return false
	}
	if !p.Role.AtLeast(RoleAgent) {
		return false
	}
	if p.Role == RoleAgent {
		return ticket.AssigneeID != nil && *ticket.AssigneeID == p.ID
	}
	return true
}

// CanChangeStatus reports whether the principal may execute status
// transitions. Requires the lead tier or above.
func CanChangeStatus(p *Principal) bool {
	return p != nil && p.Active && p.Role.AtLeast(RoleLead)
}

// CanAssign reports whether the principal may reassign tickets.
func CanAssign(p *Principal) bool {
	return p != nil && p.Active && p.Role.AtLeast(RoleLead)
}
