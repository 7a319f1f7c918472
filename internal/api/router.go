// Package api wires the HTTP surface: inbound email ingress, agent ticket
// operations, the customer tracking view, and operational endpoints.
package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/servdesk-io/servdesk/internal/middleware"
)

// Handlers bundles everything RegisterRoutes needs.
type Handlers struct {
	Inbound  *InboundHandler
	Tickets  *TicketHandler
	Tracking *TrackingHandler
	Auth     *middleware.AuthMiddleware
	DB       *sql.DB
}

// RegisterRoutes mounts all routes on the engine.
func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.Use(middleware.RequestID())

	r.GET("/healthz", healthz(h.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	inbound := v1.Group("/inbound")
	inbound.POST("/forward", h.Inbound.HandleForward)
	inbound.POST("/webhook", h.Inbound.HandleProviderWebhook)

	v1.GET("/track/:token", h.Tracking.Track)

	tickets := v1.Group("/tickets")
	tickets.Use(h.Auth.RequireAuth())
	tickets.GET("/:id", h.Tickets.GetTicket)
	tickets.PATCH("/:id/status", h.Tickets.ChangeStatus)
	tickets.POST("/:id/replies", h.Tickets.AddReply)
	tickets.PATCH("/:id/assignee", h.Tickets.Assign)
}

func healthz(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
