// Gateway token-refresh HTTP handlers.
//
// This file exposes the server-to-server handshake used by the long-lived
// bridge processes:
//   - POST /gateway/whatsapp/refresh-token  (session-keyed)
//   - POST /gateway/telegram/refresh-token  (user-keyed)
//
// A bridge authenticates with its platform's X-Gateway-Secret header and
// receives a fresh short-lived JWT scoped to the owning user. Handlers are
// transport-thin: they validate input, call application services, and
// translate sentinel errors into the HTTP taxonomy (401 bad secret, 400 bad
// body or disconnected session, 404 unknown session/user, 500 otherwise).
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/positonic/go-message-gateway/internal/services"
)

//
// Service contracts (context-aware)
//

// RefreshService defines the token refresh operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RefreshService interface {
	// RefreshWhatsApp exchanges a connected session id for a fresh token.
	RefreshWhatsApp(ctx context.Context, providedSecret, sessionID string) (*services.RefreshResult, error)
	// RefreshTelegram exchanges a user id for a fresh token.
	RefreshTelegram(ctx context.Context, providedSecret, userID string) (*services.RefreshResult, error)
}

// DispatchService defines the queue and worker operations consumed by HTTP
// handlers.
type DispatchService interface {
	// EnqueueInbound appends one webhook message to the backlog.
	EnqueueInbound(ctx context.Context, platform, senderID, payload string) (string, error)
	// Drain claims and processes up to batchSize due messages.
	Drain(ctx context.Context, batchSize int) (services.DrainResult, error)
	// Status reports queue, cache, and breaker diagnostics.
	Status(ctx context.Context) (services.StatusReport, error)
}

// AnalyticsService defines the scheduled analytics job consumed by the cron
// endpoints.
type AnalyticsService interface {
	// Run aggregates the previous hour and prunes expired aggregates.
	Run(ctx context.Context) (*services.RunReport, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the gateway core. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	refreshSvc   RefreshService
	dispatchSvc  DispatchService
	analyticsSvc AnalyticsService

	// cronSecret optionally protects the /cron endpoints; empty disables the
	// check (local/manual runs).
	cronSecret string
	// drainBatch is the default worker batch size, overridable per request.
	drainBatch int
}

// New constructs a Handlers instance bound to the given services.
func New(refresh RefreshService, dispatch DispatchService, analytics AnalyticsService, cronSecret string, drainBatch int) *Handlers {
	if drainBatch < 1 {
		drainBatch = 25
	}
	return &Handlers{
		refreshSvc:   refresh,
		dispatchSvc:  dispatch,
		analyticsSvc: analytics,
		cronSecret:   cronSecret,
		drainBatch:   drainBatch,
	}
}

//
// DTOs
//

// WhatsAppRefreshRequest is the JSON payload of the session-keyed refresh.
type WhatsAppRefreshRequest struct {
	// SessionID identifies the bridge session acting for a user.
	SessionID string `json:"sessionId" binding:"required" example:"7f0a6d7e-4f9b-4a6e-9a63-0c5f3a6d1e22"`
}

// TelegramRefreshRequest is the JSON payload of the user-keyed refresh.
type TelegramRefreshRequest struct {
	// UserID identifies the user the Telegram bridge acts for.
	UserID string `json:"userId" binding:"required" example:"c0a8012e-1111-2222-3333-444455556666"`
}

//
// Handlers
//

// RefreshWhatsAppToken godoc
// @ID          refreshWhatsAppToken
// @Summary     Refresh the WhatsApp bridge token
// @Description Exchanges a connected session id for a fresh short-lived user JWT. Authenticated by the WhatsApp shared secret.
// @Tags        Gateway
// @Accept      json
// @Produce     json
//
// @Param       X-Gateway-Secret  header  string  true  "WhatsApp bridge shared secret"
// @Param       body              body    handlers.WhatsAppRefreshRequest  true  "Refresh payload"
//
// @Success     200  {object}  services.RefreshResult
// @Failure     400  {object}  handlers.ErrorResponse  "Missing sessionId or session not connected"
// @Failure     401  {object}  handlers.ErrorResponse  "Bad or missing secret"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /gateway/whatsapp/refresh-token [post]
func (h *Handlers) RefreshWhatsAppToken(c *gin.Context) {
	var req WhatsAppRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId is required")
		return
	}

	res, err := h.refreshSvc.RefreshWhatsApp(c.Request.Context(), c.GetHeader("X-Gateway-Secret"), req.SessionID)
	if err != nil {
		failRefresh(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// RefreshTelegramToken godoc
// @ID          refreshTelegramToken
// @Summary     Refresh the Telegram bridge token
// @Description Exchanges a user id for a fresh short-lived user JWT. Authenticated by the Telegram shared secret.
// @Tags        Gateway
// @Accept      json
// @Produce     json
//
// @Param       X-Gateway-Secret  header  string  true  "Telegram bridge shared secret"
// @Param       body              body    handlers.TelegramRefreshRequest  true  "Refresh payload"
//
// @Success     200  {object}  services.RefreshResult
// @Failure     400  {object}  handlers.ErrorResponse  "Missing userId"
// @Failure     401  {object}  handlers.ErrorResponse  "Bad or missing secret"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /gateway/telegram/refresh-token [post]
func (h *Handlers) RefreshTelegramToken(c *gin.Context) {
	var req TelegramRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "userId is required")
		return
	}

	res, err := h.refreshSvc.RefreshTelegram(c.Request.Context(), c.GetHeader("X-Gateway-Secret"), req.UserID)
	if err != nil {
		failRefresh(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// failRefresh maps refresh sentinel errors onto the endpoint taxonomy.
func failRefresh(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrBadSecret):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid gateway secret")
	case errors.Is(err, services.ErrSecretUnconfigured):
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "gateway secret is not configured")
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, services.ErrSessionNotConnected):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session is not connected")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeRefreshFailed, err.Error())
	}
}
