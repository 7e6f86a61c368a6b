// Package platform delivers outbound replies to the chat platforms (WhatsApp
// Cloud API, Telegram Bot API). Like the agent client it is a plain transport;
// the whatsappApi circuit breaker and all retry policy live in the dispatch
// worker above it.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/positonic/go-message-gateway/internal/domain"
)

// Sender is the outbound delivery contract used by the dispatch worker.
type Sender interface {
	// Send delivers text to recipientID on the given platform.
	Send(ctx context.Context, platform, recipientID, text string) error
}

// Client sends messages through the public platform HTTP APIs.
type Client struct {
	whatsappURL string
	telegramURL string
	httpc       *http.Client
}

// NewClient builds a Client from the two platform base URLs. timeout bounds
// every delivery attempt.
func NewClient(whatsappURL, telegramURL string, timeout time.Duration) *Client {
	return &Client{
		whatsappURL: whatsappURL,
		telegramURL: telegramURL,
		httpc:       &http.Client{Timeout: timeout},
	}
}

// Send implements Sender.
func (c *Client) Send(ctx context.Context, platform, recipientID, text string) error {
	var (
		url  string
		body any
	)
	switch platform {
	case domain.PlatformWhatsApp:
		url = c.whatsappURL + "/messages"
		body = map[string]any{
			"messaging_product": "whatsapp",
			"to":                recipientID,
			"type":              "text",
			"text":              map[string]string{"body": text},
		}
	case domain.PlatformTelegram:
		url = c.telegramURL + "/sendMessage"
		body = map[string]any{
			"chat_id": recipientID,
			"text":    text,
		}
	default:
		return fmt.Errorf("platform: unknown platform %q", platform)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("platform: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("platform: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("platform: send to %s: %w", platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform: %s returned status %d: %s", platform, resp.StatusCode, snippet)
	}
	return nil
}
