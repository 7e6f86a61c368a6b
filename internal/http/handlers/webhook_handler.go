// Webhook HTTP handlers.
//
// This file exposes the inbound edge of the pipeline:
//   - POST /webhooks/whatsapp
//   - POST /webhooks/telegram
//
// Webhooks only validate and enqueue; all heavy work (AI processing, outbound
// delivery) happens in the worker drain. The platform gets a fast 202 so it
// does not retry deliveries that are already queued.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/positonic/go-message-gateway/internal/domain"
)

// WhatsAppWebhookRequest is the JSON payload delivered by the WhatsApp bridge.
type WhatsAppWebhookRequest struct {
	// SessionID identifies the bridge session (or phone-number-id) the message
	// arrived on.
	SessionID string `json:"sessionId" binding:"required" example:"7f0a6d7e-4f9b-4a6e-9a63-0c5f3a6d1e22"`
	// Message is the raw inbound text.
	Message string `json:"message" binding:"required" example:"what is on my agenda today?"`
}

// TelegramWebhookRequest is the JSON payload delivered by the Telegram bridge.
type TelegramWebhookRequest struct {
	// ChatID identifies the Telegram chat the message arrived on.
	ChatID string `json:"chatId" binding:"required" example:"123456789"`
	// Message is the raw inbound text.
	Message string `json:"message" binding:"required" example:"log a win for today"`
}

// WebhookResponse acknowledges an enqueued message.
type WebhookResponse struct {
	Queued    bool   `json:"queued"`
	MessageID string `json:"messageId"`
}

// WhatsAppWebhook godoc
// @ID          whatsappWebhook
// @Summary     Receive an inbound WhatsApp message
// @Description Validates and enqueues the message for asynchronous dispatch.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.WhatsAppWebhookRequest  true  "Inbound message"
//
// @Success     202  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing sessionId or message"
// @Failure     500  {object}  handlers.ErrorResponse  "Enqueue failed"
// @Router      /webhooks/whatsapp [post]
func (h *Handlers) WhatsAppWebhook(c *gin.Context) {
	var req WhatsAppWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sessionId and message are required")
		return
	}
	h.enqueue(c, domain.PlatformWhatsApp, req.SessionID, req.Message)
}

// TelegramWebhook godoc
// @ID          telegramWebhook
// @Summary     Receive an inbound Telegram message
// @Description Validates and enqueues the message for asynchronous dispatch.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.TelegramWebhookRequest  true  "Inbound message"
//
// @Success     202  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing chatId or message"
// @Failure     500  {object}  handlers.ErrorResponse  "Enqueue failed"
// @Router      /webhooks/telegram [post]
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	var req TelegramWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chatId and message are required")
		return
	}
	h.enqueue(c, domain.PlatformTelegram, req.ChatID, req.Message)
}

// enqueue appends the message to the backlog and acknowledges with 202.
func (h *Handlers) enqueue(c *gin.Context, platform, senderID, payload string) {
	id, err := h.dispatchSvc.EnqueueInbound(c.Request.Context(), platform, senderID, payload)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeEnqueueFailed, err.Error())
		return
	}
	ok(c, http.StatusAccepted, WebhookResponse{Queued: true, MessageID: id})
}
