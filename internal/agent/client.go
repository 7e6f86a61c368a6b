// Package agent is the HTTP client for the AI agent backend that turns an
// inbound chat message into a reply. The dispatch worker is its only caller;
// every call goes through the aiProcessing circuit breaker at that layer, so
// this package stays a thin, logging-free transport.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is one message handed to the agent for processing.
type Request struct {
	UserID         string `json:"userId"`
	Platform       string `json:"platform"`
	Message        string `json:"message"`
	Model          string `json:"model,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Reply is the agent's answer.
type Reply struct {
	Text           string `json:"reply"`
	Model          string `json:"model,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Processor is the contract the dispatch worker depends on. Tests substitute
// an in-memory fake.
type Processor interface {
	Process(ctx context.Context, token string, req Request) (*Reply, error)
}

// Client calls the agent backend over HTTP.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient builds a Client for the agent at baseURL. timeout bounds every
// call end to end; the dispatch breaker relies on calls failing fast rather
// than hanging.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// Process implements Processor. token is the short-lived agent-context JWT
// minted for the message's user; it authenticates the gateway to the agent.
func (c *Client) Process(ctx context.Context, token string, req Request) (*Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("agent: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/process", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the error carries the agent's own message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("agent: unexpected status %d: %s", resp.StatusCode, snippet)
	}

	var out Reply
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("agent: decode reply: %w", err)
	}
	return &out, nil
}
