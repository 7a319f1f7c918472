package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/servdesk-io/servdesk/internal/mailparse"
	"github.com/servdesk-io/servdesk/internal/reconcile"
)

// InboundPayload is the JSON body both ingress paths accept. The forwarding
// worker may alternatively deliver the original message base64-encoded in
// Raw, in which case the envelope fields are recovered by MIME parsing.
type InboundPayload struct {
	MessageID string `json:"messageId"`
	From      struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	Subject  string    `json:"subject"`
	TextBody string    `json:"textBody"`
	HTMLBody string    `json:"htmlBody"`
	Date     time.Time `json:"date"`
	RawSize  int64     `json:"rawSize"`
	Raw      string    `json:"raw"`
}

// InboundHandler exposes the two authentication front-ends over the single
// reconciliation engine: a raw forwarding-worker path gated by a shared
// secret header and a provider-webhook path gated by an HMAC signature.
type InboundHandler struct {
	engine        *reconcile.Engine
	forwardSecret string
	webhookSecret string
	logger        *log.Logger
}

// NewInboundHandler creates the handler.
func NewInboundHandler(engine *reconcile.Engine, forwardSecret, webhookSecret string, logger *log.Logger) *InboundHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &InboundHandler{
		engine:        engine,
		forwardSecret: forwardSecret,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// HandleForward handles POST /api/v1/inbound/forward. Authentication uses
// the X-Forward-Secret shared secret; a failure here is the only inbound
// outcome that legitimately invites an upstream retry, since no ledger row
// has been written yet.
func (h *InboundHandler) HandleForward(c *gin.Context) {
	if h.forwardSecret == "" || !secureEquals(c.GetHeader("X-Forward-Secret"), h.forwardSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid forward secret"})
		return
	}
	h.ingest(c, nil)
}

// HandleProviderWebhook handles POST /api/v1/inbound/webhook. The body is
// authenticated by a hex HMAC-SHA256 signature in X-Webhook-Signature.
func (h *InboundHandler) HandleProviderWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Unreadable request body"})
		return
	}
	if !h.verifySignature(body, c.GetHeader("X-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid webhook signature"})
		return
	}
	h.ingest(c, body)
}

// ingest converges both front-ends on the reconciliation engine.
func (h *InboundHandler) ingest(c *gin.Context, rawBody []byte) {
	var payload InboundPayload
	var err error
	if rawBody != nil {
		err = bindJSON(rawBody, &payload)
	} else {
		rawBody, err = io.ReadAll(c.Request.Body)
		if err == nil {
			err = bindJSON(rawBody, &payload)
		}
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body: " + err.Error()})
		return
	}

	email, err := h.buildEmail(&payload, rawBody)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := h.engine.ProcessInboundEmail(c.Request.Context(), email)
	if err != nil {
		// The failure is recorded on the ledger row server-side; the
		// response stays JSON so the provider never sees a raw error
		// page, and a retry of the same message id is safe.
		h.logger.Printf("inbound: processing %s failed: %v", payload.MessageID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal processing failure"})
		return
	}
	if result.Duplicate {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"duplicate": true,
			"ticketId":  result.TicketID,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"ticketId":    result.TicketID,
		"isNewTicket": result.IsNewTicket,
	})
}

// buildEmail normalizes the payload into the engine's input, decoding a raw
// RFC 822 message when the worker delivered one.
func (h *InboundHandler) buildEmail(payload *InboundPayload, rawBody []byte) (*reconcile.InboundEmail, error) {
	email := &reconcile.InboundEmail{
		MessageID:  strings.TrimSpace(payload.MessageID),
		FromEmail:  payload.From.Email,
		FromName:   payload.From.Name,
		Subject:    payload.Subject,
		TextBody:   payload.TextBody,
		HTMLBody:   payload.HTMLBody,
		Date:       payload.Date,
		RawSize:    payload.RawSize,
		RawPayload: rawBody,
	}
	if payload.Raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(payload.Raw)
		if err != nil {
			return nil, errors.New("raw message is not valid base64")
		}
		parsed, err := mailparse.ParseRaw(decoded)
		if err != nil {
			return nil, errors.New("raw message could not be parsed")
		}
		if email.MessageID == "" {
			email.MessageID = parsed.MessageID
		}
		if email.FromEmail == "" {
			email.FromEmail = parsed.FromEmail
			email.FromName = parsed.FromName
		}
		if email.Subject == "" {
			email.Subject = parsed.Subject
		}
		if email.TextBody == "" {
			email.TextBody = parsed.TextBody
		}
		if email.HTMLBody == "" {
			email.HTMLBody = parsed.HTMLBody
		}
		if email.RawSize == 0 {
			email.RawSize = parsed.RawSize
		}
	}
	if email.MessageID == "" {
		return nil, errors.New("messageId is required")
	}
	if strings.TrimSpace(email.FromEmail) == "" {
		return nil, errors.New("from.email is required")
	}
	return email, nil
}

func (h *InboundHandler) verifySignature(body []byte, signature string) bool {
	if h.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

func secureEquals(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
