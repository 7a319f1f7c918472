package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servdesk-io/servdesk/internal/audit"
	"github.com/servdesk-io/servdesk/internal/auth"
	"github.com/servdesk-io/servdesk/internal/customers"
	"github.com/servdesk-io/servdesk/internal/database"
	"github.com/servdesk-io/servdesk/internal/ledger"
	"github.com/servdesk-io/servdesk/internal/mailparse"
	"github.com/servdesk-io/servdesk/internal/middleware"
	"github.com/servdesk-io/servdesk/internal/models"
	"github.com/servdesk-io/servdesk/internal/reconcile"
	"github.com/servdesk-io/servdesk/internal/repository"
	"github.com/servdesk-io/servdesk/internal/ticketnumber"
)

const (
	testForwardSecret = "forward-secret"
	testWebhookSecret = "webhook-secret"
	testJWTSecret     = "jwt-secret"
)

type apiFixture struct {
	router  *gin.Engine
	db      *sql.DB
	tickets *repository.TicketRepository
	jwt     *auth.JWTManager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenForTest()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ticketRepo := repository.NewTicketRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	eventRepo := repository.NewInboundEventRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	generator, err := ticketnumber.Resolve("sequential", "SD", 5, nil)
	require.NoError(t, err)

	engine := reconcile.New(
		ledger.New(eventRepo),
		customers.NewResolver(customerRepo),
		customerRepo,
		ticketRepo,
		messageRepo,
		mailparse.NewSubjectParser("SD", 255),
		generator,
		ticketnumber.NewDBStore(db),
		reconcile.WithAuditor(audit.NewRecorder(auditRepo, nil)),
	)

	jwtManager := auth.NewJWTManager(testJWTSecret, time.Hour)
	auditor := audit.NewRecorder(auditRepo, nil)

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Inbound:  NewInboundHandler(engine, testForwardSecret, testWebhookSecret, nil),
		Tickets:  NewTicketHandler(ticketRepo, messageRepo, customerRepo, auditor, nil),
		Tracking: NewTrackingHandler(ticketRepo, messageRepo, nil),
		Auth:     middleware.NewAuthMiddleware(jwtManager),
		DB:       db,
	})
	return &apiFixture{router: router, db: db, tickets: ticketRepo, jwt: jwtManager}
}

func (f *apiFixture) token(t *testing.T, id int64, role auth.Role) string {
	t.Helper()
	token, err := f.jwt.Generate(&auth.Principal{ID: id, Email: fmt.Sprintf("agent%d@desk.example", id), Role: role, Active: true})
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func forwardRequest(t *testing.T, body any, secret string) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbound/forward", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Forward-Secret", secret)
	}
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func samplePayload(messageID string) map[string]any {
	return map[string]any{
		"messageId": messageID,
		"from":      map[string]any{"email": "A@Ex.com", "name": "Alice"},
		"subject":   "Printer broken",
		"textBody":  "It makes a sad noise.",
	}
}

func TestForwardCreatesTicket(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(forwardRequest(t, samplePayload("abc123"), testForwardSecret))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["isNewTicket"])
	require.NotNil(t, resp["ticketId"])

	ticket, err := f.tickets.GetByID(context.Background(), int64(resp["ticketId"].(float64)))
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, "SD-00001", ticket.Number)
	assert.Equal(t, models.StatusNew, ticket.Status)
}

func TestForwardDuplicateDelivery(t *testing.T) {
	f := newAPIFixture(t)

	first := decode(t, f.do(forwardRequest(t, samplePayload("abc123"), testForwardSecret)))
	w := f.do(forwardRequest(t, samplePayload("abc123"), testForwardSecret))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["duplicate"])
	assert.Equal(t, first["ticketId"], resp["ticketId"])
}

func TestForwardRejectsBadSecret(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(forwardRequest(t, samplePayload("abc123"), "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(forwardRequest(t, samplePayload("abc123"), ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForwardRejectsMissingFields(t *testing.T) {
	f := newAPIFixture(t)

	payload := samplePayload("")
	w := f.do(forwardRequest(t, payload, testForwardSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	payload = samplePayload("abc123")
	payload["from"] = map[string]any{"email": ""}
	w = f.do(forwardRequest(t, payload, testForwardSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForwardRawMessage(t *testing.T) {
	f := newAPIFixture(t)

	raw := strings.Join([]string{
		"Message-Id: <raw-1@mail.example.com>",
		"From: Jane Doe <jane@example.com>",
		"Subject: Coffee machine leaking",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"There is a puddle forming.",
		"",
	}, "\r\n")

	payload := map[string]any{"raw": base64.StdEncoding.EncodeToString([]byte(raw))}
	w := f.do(forwardRequest(t, payload, testForwardSecret))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, true, resp["isNewTicket"])

	ticket, err := f.tickets.GetByID(context.Background(), int64(resp["ticketId"].(float64)))
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, "Coffee machine leaking", ticket.Subject)
}

func TestForwardRejectsBadBase64(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(forwardRequest(t, map[string]any{"raw": "%%%not-base64%%%"}, testForwardSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookSignature(t *testing.T) {
	f := newAPIFixture(t)
	raw, err := json.Marshal(samplePayload("hook-1"))
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(raw)
	signature := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbound/webhook", bytes.NewReader(raw))
	req.Header.Set("X-Webhook-Signature", signature)
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["isNewTicket"])

	// Same body, tampered signature.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/inbound/webhook", bytes.NewReader(raw))
	req.Header.Set("X-Webhook-Signature", "deadbeef")
	w = f.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatusChange(t *testing.T) {
	f := newAPIFixture(t)
	created := decode(t, f.do(forwardRequest(t, samplePayload("m1"), testForwardSecret)))
	ticketID := int64(created["ticketId"].(float64))

	w := f.patchJSON(t, fmt.Sprintf("/api/v1/tickets/%d/status", ticketID),
		map[string]any{"status": "OPEN"}, f.token(t, 1, auth.RoleLead))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "NEW", resp["previousStatus"])

	ticket, err := f.tickets.GetByID(context.Background(), ticketID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, ticket.Status)
}

func TestStatusChangeRejectsIllegalTransition(t *testing.T) {
	f := newAPIFixture(t)
	created := decode(t, f.do(forwardRequest(t, samplePayload("m1"), testForwardSecret)))
	ticketID := int64(created["ticketId"].(float64))
	token := f.token(t, 1, auth.RoleLead)

	w := f.patchJSON(t, fmt.Sprintf("/api/v1/tickets/%d/status", ticketID),
		map[string]any{"status": "CLOSED"}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.patchJSON(t, fmt.Sprintf("/api/v1/tickets/%d/status", ticketID),
		map[string]any{"status": "RESOLVED"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "CLOSED", resp["currentStatus"])
	assert.Equal(t, []any{"OPEN"}, resp["validNextStatuses"])
}

func TestStatusChangeRequiresLead(t *testing.T) {
	f := newAPIFixture(t)
	created := decode(t, f.do(forwardRequest(t, samplePayload("m1"), testForwardSecret)))
	ticketID := int64(created["ticketId"].(float64))

	w := f.patchJSON(t, fmt.Sprintf("/api/v1/tickets/%d/status", ticketID),
		map[string]any{"status": "OPEN"}, f.token(t, 1, auth.RoleAgent))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// No token at all.
	raw, _ := json.Marshal(map[string]any{"status": "OPEN"})
	request := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/api/v1/tickets/%d/status", ticketID), bytes.NewReader(raw))
	w = f.do(request)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReplySetsFirstResponse(t *testing.T) {
	f := newAPIFixture(t)
	created := decode(t, f.do(forwardRequest(t, samplePayload("m1"), testForwardSecret)))
	ticketID := int64(created["ticketId"].(float64))
	token := f.token(t, 1, auth.RoleLead)

	w := f.postJSON(t, fmt.Sprintf("/api/v1/tickets/%d/replies", ticketID),
		map[string]any{"content": "We are on it.", "type": "OUTBOUND"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	ticket, err := f.tickets.GetByID(context.Background(), ticketID)
	require.NoError(t, err)
	assert.NotNil(t, ticket.FirstResponseAt)
}

func TestInternalNoteDoesNotStampFirstResponse(t *testing.T) {
	f := newAPIFixture(t)
	created := decode(t, f.do(forwardRequest(t, samplePayload("m1"), testForwardSecret)))
	ticketID := int64(created["ticketId"].(float64))

	w := f.postJSON(t, fmt.Sprintf("/api/v1/tickets/%d/replies", ticketID),
		map[string]any{"content": "internal note", "type": "INTERNAL"}, f.token(t, 1, auth.RoleLead))
	require.Equal(t, http.StatusCreated, w.Code)

	ticket, err := f.tickets.GetByID(context.Background(), ticketID)
	require.NoError(t, err)
	assert.Nil(t, ticket.FirstResponseAt)
}

func TestAgentReplyRequiresAssignment(t *testing.T) {
	f := newAPIFixture(t)
	created := decode(t, f.do(forwardRequest(t, samplePayload("m1"), testForwardSecret)))
	ticketID := int64(created["ticketId"].(float64))

	w := f.postJSON(t, fmt.Sprintf("/api/v1/tickets/%d/replies", ticketID),
		map[string]any{"content": "hi"}, f.token(t, 9, auth.RoleAgent))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Assign the ticket to agent 9 and retry.
	agent := int64(9)
	require.NoError(t, f.tickets.UpdateAssignee(context.Background(), ticketID, &agent))
	w = f.postJSON(t, fmt.Sprintf("/api/v1/tickets/%d/replies", ticketID),
		map[string]any{"content": "hi"}, f.token(t, 9, auth.RoleAgent))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAssignEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	created := decode(t, f.do(forwardRequest(t, samplePayload("m1"), testForwardSecret)))
	ticketID := int64(created["ticketId"].(float64))

	w := f.patchJSON(t, fmt.Sprintf("/api/v1/tickets/%d/assignee", ticketID),
		map[string]any{"assigneeId": 5}, f.token(t, 1, auth.RoleLead))
	require.Equal(t, http.StatusOK, w.Code)

	ticket, err := f.tickets.GetByID(context.Background(), ticketID)
	require.NoError(t, err)
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, int64(5), *ticket.AssigneeID)
}

func TestTrackingViewHidesInternalNotes(t *testing.T) {
	f := newAPIFixture(t)
	created := decode(t, f.do(forwardRequest(t, samplePayload("m1"), testForwardSecret)))
	ticketID := int64(created["ticketId"].(float64))
	f.postJSON(t, fmt.Sprintf("/api/v1/tickets/%d/replies", ticketID),
		map[string]any{"content": "internal note", "type": "INTERNAL"}, f.token(t, 1, auth.RoleLead))

	ticket, err := f.tickets.GetByID(context.Background(), ticketID)
	require.NoError(t, err)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/track/"+ticket.TrackingToken, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Ticket models.Ticket `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Ticket.Messages, 1)
	assert.Equal(t, models.MessageInbound, resp.Ticket.Messages[0].Type)
}

func TestTrackingUnknownToken(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/track/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func (f *apiFixture) patchJSON(t *testing.T, path string, body any, token string) *httptest.ResponseRecorder {
	return f.jsonRequest(t, http.MethodPatch, path, body, token)
}

func (f *apiFixture) postJSON(t *testing.T, path string, body any, token string) *httptest.ResponseRecorder {
	return f.jsonRequest(t, http.MethodPost, path, body, token)
}

func (f *apiFixture) jsonRequest(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	request := httptest.NewRequest(method, path, bytes.NewReader(raw))
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	return f.do(request)
}
