package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/servdesk-io/servdesk/internal/audit"
	"github.com/servdesk-io/servdesk/internal/auth"
)

func bindJSON(body []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	return dec.Decode(out)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

func forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, gin.H{"success": false, "error": message})
}

func internalError(c *gin.Context, logger *log.Logger, op string, err error) {
	if logger != nil {
		logger.Printf("api: %s failed: %v", op, err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
}

func actorFrom(c *gin.Context, p *auth.Principal) audit.Actor {
	if p == nil {
		return audit.SystemActor
	}
	return audit.PrincipalActor(p.ID, p.Email, c.ClientIP())
}
