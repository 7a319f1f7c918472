package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/servdesk-io/servdesk/internal/audit"
	"github.com/servdesk-io/servdesk/internal/auth"
	"github.com/servdesk-io/servdesk/internal/metrics"
	"github.com/servdesk-io/servdesk/internal/middleware"
	"github.com/servdesk-io/servdesk/internal/models"
	"github.com/servdesk-io/servdesk/internal/repository"
	"github.com/servdesk-io/servdesk/internal/status"
)

// TicketHandler serves the agent-facing ticket endpoints.
type TicketHandler struct {
	tickets   *repository.TicketRepository
	messages  *repository.MessageRepository
	customers *repository.CustomerRepository
	auditor   *audit.Recorder
	logger    *log.Logger
}

// NewTicketHandler creates the handler.
func NewTicketHandler(tickets *repository.TicketRepository, messages *repository.MessageRepository,
	customers *repository.CustomerRepository, auditor *audit.Recorder, logger *log.Logger) *TicketHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &TicketHandler{
		tickets:   tickets,
		messages:  messages,
		customers: customers,
		auditor:   auditor,
		logger:    logger,
	}
}

// GetTicket handles GET /api/v1/tickets/:id.
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ticket, ok := h.loadTicket(c)
	if !ok {
		return
	}
	msgs, err := h.messages.ListByTicket(c.Request.Context(), ticket.ID, true)
	if err != nil {
		internalError(c, h.logger, "list messages", err)
		return
	}
	ticket.Messages = msgs
	c.JSON(http.StatusOK, gin.H{"success": true, "ticket": ticket})
}

type statusChangeRequest struct {
	Status string `json:"status" binding:"required"`
}

// ChangeStatus handles PATCH /api/v1/tickets/:id/status. Illegal transitions
// are rejected with the current status and the set of legal targets, so
// clients can render the choice without a second round trip.
func (h *TicketHandler) ChangeStatus(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	if !auth.CanChangeStatus(principal) {
		forbidden(c, "Status changes require the lead role")
		return
	}
	ticket, ok := h.loadTicket(c)
	if !ok {
		return
	}
	var req statusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	target := models.TicketStatus(req.Status)
	change, err := status.Apply(ticket.Status, target, time.Now().UTC())
	if err != nil {
		var invalid *status.InvalidTransitionError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":           false,
				"error":             invalid.Error(),
				"currentStatus":     invalid.Current,
				"validNextStatuses": invalid.Valid,
			})
			return
		}
		badRequest(c, err.Error())
		return
	}
	if err := h.tickets.ApplyStatusChange(c.Request.Context(), ticket.ID, change); err != nil {
		internalError(c, h.logger, "apply status change", err)
		return
	}
	h.auditor.RecordFieldChange(c.Request.Context(), ticket.ID, audit.ActionStatusChanged,
		"status", string(ticket.Status), string(target), actorFrom(c, principal))
	metrics.StatusTransitions.WithLabelValues(string(target)).Inc()

	updated, err := h.tickets.GetByID(c.Request.Context(), ticket.ID)
	if err != nil || updated == nil {
		internalError(c, h.logger, "reload ticket", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"ticket":         updated,
		"previousStatus": ticket.Status,
	})
}

type replyRequest struct {
	Content string `json:"content" binding:"required"`
	Type    string `json:"type"`
}

// AddReply handles POST /api/v1/tickets/:id/replies. Type defaults to
// OUTBOUND; INTERNAL notes never reach the customer view. The first OUTBOUND
// reply stamps firstResponseAt.
func (h *TicketHandler) AddReply(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	ticket, ok := h.loadTicket(c)
	if !ok {
		return
	}
	if !auth.CanReply(principal, ticket) {
		forbidden(c, "You may only reply on tickets assigned to you")
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	msgType := models.MessageOutbound
	if req.Type != "" {
		msgType = models.MessageType(req.Type)
	}
	if msgType != models.MessageOutbound && msgType != models.MessageInternal {
		badRequest(c, "Reply type must be OUTBOUND or INTERNAL")
		return
	}

	msg := &models.Message{
		TicketID: ticket.ID,
		Type:     msgType,
		Content:  req.Content,
		AuthorID: &principal.ID,
	}
	if msgType == models.MessageOutbound {
		customer, err := h.customers.GetByID(c.Request.Context(), ticket.CustomerID)
		if err != nil {
			internalError(c, h.logger, "load customer", err)
			return
		}
		if customer != nil {
			email := customer.Email
			msg.RecipientEmail = &email
		}
	}
	if err := h.messages.Create(c.Request.Context(), msg); err != nil {
		internalError(c, h.logger, "create message", err)
		return
	}
	if msgType == models.MessageOutbound && ticket.FirstResponseAt == nil {
		if err := h.tickets.SetFirstResponseAt(c.Request.Context(), ticket.ID, msg.CreatedAt); err != nil {
			h.logger.Printf("tickets: first response stamp on %d failed: %v", ticket.ID, err)
		}
	}
	if err := h.tickets.Touch(c.Request.Context(), ticket.ID); err != nil {
		h.logger.Printf("tickets: touch on %d failed: %v", ticket.ID, err)
	}
	h.auditor.Record(c.Request.Context(), ticket.ID, audit.EntityMessage, msg.ID,
		audit.ActionMessageAdded, actorFrom(c, principal))
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

type assignRequest struct {
	AssigneeID *int64 `json:"assigneeId"`
}

// Assign handles PATCH /api/v1/tickets/:id/assignee. A null assigneeId clears
// the assignment.
func (h *TicketHandler) Assign(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	if !auth.CanAssign(principal) {
		forbidden(c, "Assignment changes require the lead role")
		return
	}
	ticket, ok := h.loadTicket(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if err := h.tickets.UpdateAssignee(c.Request.Context(), ticket.ID, req.AssigneeID); err != nil {
		internalError(c, h.logger, "update assignee", err)
		return
	}
	h.auditor.RecordFieldChange(c.Request.Context(), ticket.ID, audit.ActionAssigned,
		"assignee_id", formatID(ticket.AssigneeID), formatID(req.AssigneeID), actorFrom(c, principal))
	c.JSON(http.StatusOK, gin.H{"success": true, "assigneeId": req.AssigneeID})
}

func (h *TicketHandler) loadTicket(c *gin.Context) (*models.Ticket, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid ticket id")
		return nil, false
	}
	ticket, err := h.tickets.GetByID(c.Request.Context(), id)
	if err != nil {
		internalError(c, h.logger, "load ticket", err)
		return nil, false
	}
	if ticket == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Ticket not found"})
		return nil, false
	}
	return ticket, true
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
