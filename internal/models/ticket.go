package models

import "time"

// TicketStatus enumerates the lifecycle states of a ticket.
type TicketStatus string

const (
	StatusNew             TicketStatus = "NEW"
	StatusOpen            TicketStatus = "OPEN"
	StatusPendingCustomer TicketStatus = "PENDING_CUSTOMER"
	StatusOnHold          TicketStatus = "ON_HOLD"
	StatusResolved        TicketStatus = "RESOLVED"
	StatusClosed          TicketStatus = "CLOSED"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusNew, StatusOpen, StatusPendingCustomer, StatusOnHold, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates ticket priorities.
type TicketPriority string

const (
	PriorityNormal TicketPriority = "NORMAL"
	PriorityHigh   TicketPriority = "HIGH"
	PriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Ticket is the central work item tracked from intake to closure.
//
// Number and TrackingToken are immutable once generated and globally unique.
// ResolvedAt/ClosedAt are set by the status state machine and cleared again
// when the ticket is reopened.
type Ticket struct {
	ID              int64          `json:"id" db:"id"`
	Number          string         `json:"number" db:"number"`
	Subject         string         `json:"subject" db:"subject"`
	Status          TicketStatus   `json:"status" db:"status"`
	Priority        TicketPriority `json:"priority" db:"priority"`
	TrackingToken   string         `json:"tracking_token" db:"tracking_token"`
	CustomerID      int64          `json:"customer_id" db:"customer_id"`
	AssigneeID      *int64         `json:"assignee_id,omitempty" db:"assignee_id"`
	ThreadID        *string        `json:"thread_id,omitempty" db:"thread_id"`
	FirstResponseAt *time.Time     `json:"first_response_at,omitempty" db:"first_response_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty" db:"closed_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`

	// Joined fields (populated when needed)
	Customer *Customer `json:"customer,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// MessageType enumerates the direction/visibility of a ticket message.
type MessageType string

const (
	MessageInbound  MessageType = "INBOUND"
	MessageOutbound MessageType = "OUTBOUND"
	MessageInternal MessageType = "INTERNAL"
	MessageSystem   MessageType = "SYSTEM"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageInbound, MessageOutbound, MessageInternal, MessageSystem:
		return true
	}
	return false
}

// Message is one unit of conversation attached to a ticket. Messages are
// immutable after creation; ordering within a ticket follows CreatedAt.
type Message struct {
	ID                int64       `json:"id" db:"id"`
	TicketID          int64       `json:"ticket_id" db:"ticket_id"`
	Type              MessageType `json:"type" db:"type"`
	Content           string      `json:"content" db:"content"`
	ContentHTML       *string     `json:"content_html,omitempty" db:"content_html"`
	SenderEmail       *string     `json:"sender_email,omitempty" db:"sender_email"`
	SenderName        *string     `json:"sender_name,omitempty" db:"sender_name"`
	RecipientEmail    *string     `json:"recipient_email,omitempty" db:"recipient_email"`
	ProviderMessageID *string     `json:"provider_message_id,omitempty" db:"provider_message_id"`
	AuthorID          *int64      `json:"author_id,omitempty" db:"author_id"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}
