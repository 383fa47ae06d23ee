// Package ai provides the chat-completion gateway used to generate replies.
//
// The gateway never fails upward: transport errors, non-2xx responses and
// malformed payloads are logged and converted into fixed user-facing fallback
// text, so a degraded completion provider cannot crash a conversation turn.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/helpdesk/internal/domain"
)

// Fallback replies returned in place of model output when the provider is
// degraded. Callers cannot distinguish these from genuine completions except
// by content; that ambiguity is part of the gateway contract.
const (
	// FallbackEmptyReply is returned when the provider answers successfully
	// but the response carries no usable text.
	FallbackEmptyReply = "I'm having trouble connecting to my brain right now. Please try again."
	// FallbackErrorReply is returned on transport failure, a non-2xx status
	// or an undecodable response body.
	FallbackErrorReply = "An unexpected error occurred while thinking. Please try again."
)

// maxResponseBody caps how much of a completion response is read (1MB).
const maxResponseBody = 1 << 20

// Completer produces best-effort completion text for an ordered message list.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message) string
}

// ClientConfig holds the provider endpoint settings.
type ClientConfig struct {
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Useful for testing with httptest.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a completion gateway client.
func NewClient(cfg ClientConfig, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type completionRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the messages to the completion endpoint and returns the
// generated text, or a fixed fallback string when anything goes wrong.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) string {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	text, err := c.complete(ctx, messages)
	if err != nil {
		slog.Error("Completion request failed", "error", err, "model", c.cfg.Model)
		return FallbackErrorReply
	}
	if text == "" {
		slog.Warn("Completion response carried no content", "model", c.cfg.Model)
		return FallbackEmptyReply
	}
	return text
}

func (c *Client) complete(ctx context.Context, messages []domain.Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("failed to close completion response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("completion request returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded completionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	if len(decoded.Choices) == 0 {
		return "", nil
	}
	return decoded.Choices[0].Message.Content, nil
}
