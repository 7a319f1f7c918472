package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/servdesk-io/servdesk/internal/repository"
)

// TrackingHandler serves the unauthenticated customer tracking view. The
// tracking token is the only credential; internal notes are never included.
type TrackingHandler struct {
	tickets  *repository.TicketRepository
	messages *repository.MessageRepository
	logger   *log.Logger
}

// NewTrackingHandler creates the handler.
func NewTrackingHandler(tickets *repository.TicketRepository, messages *repository.MessageRepository, logger *log.Logger) *TrackingHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &TrackingHandler{tickets: tickets, messages: messages, logger: logger}
}

// Track handles GET /api/v1/track/:token.
func (h *TrackingHandler) Track(c *gin.Context) {
	token := c.Param("token")
	ticket, err := h.tickets.GetByTrackingToken(c.Request.Context(), token)
	if err != nil {
		internalError(c, h.logger, "tracking lookup", err)
		return
	}
	if ticket == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Unknown tracking token"})
		return
	}
	msgs, err := h.messages.ListByTicket(c.Request.Context(), ticket.ID, false)
	if err != nil {
		internalError(c, h.logger, "tracking messages", err)
		return
	}
	ticket.Messages = msgs
	c.JSON(http.StatusOK, gin.H{"success": true, "ticket": ticket})
}
