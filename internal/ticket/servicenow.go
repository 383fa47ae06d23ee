// Package ticket provides the incident-creation gateway.
//
// The gateway never fails upward: any transport or payload failure is logged
// and converted into a sentinel string, so a ticketing outage degrades a turn
// instead of crashing it. Callers recognize failure via IsFailure.
package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Sentinel values returned in place of a ticket number.
const (
	// SentinelMalformed is returned when the ticketing service answered
	// successfully but the response carried no ticket number.
	SentinelMalformed = "TICKET_ERROR"
	// SentinelFailed is returned on transport failure, a non-2xx status or
	// an undecodable response body.
	SentinelFailed = "TICKET_CREATION_FAILED"
)

// maxResponseBody caps how much of a ticketing response is read (1MB).
const maxResponseBody = 1 << 20

// Creator files a ticket and returns its number, or a failure sentinel.
type Creator interface {
	Create(ctx context.Context, shortDescription, description string) string
}

// IsFailure reports whether a Create result is a failure sentinel rather
// than a real ticket number.
func IsFailure(number string) bool {
	return strings.Contains(number, "ERROR") || strings.Contains(number, "FAILED")
}

// ClientConfig holds the ticketing endpoint settings.
type ClientConfig struct {
	// InstanceURL is the full incident table URL, e.g.
	// https://example.service-now.com/api/now/table/incident
	InstanceURL string
	Username    string
	Password    string
	Category    string
	Timeout     time.Duration
}

// ServiceNowClient files incidents against a ServiceNow-style table API.
type ServiceNowClient struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// Option configures a ServiceNowClient.
type Option func(*ServiceNowClient)

// WithHTTPClient sets a custom HTTP client. Useful for testing with httptest.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ServiceNowClient) { c.httpClient = hc }
}

// NewServiceNowClient creates a ticketing gateway client.
func NewServiceNowClient(cfg ClientConfig, opts ...Option) *ServiceNowClient {
	if cfg.Category == "" {
		cfg.Category = "inquiry"
	}
	c := &ServiceNowClient{
		cfg:        cfg,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type incidentRequest struct {
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	Category         string `json:"category"`
}

type incidentResponse struct {
	Result struct {
		Number string `json:"number"`
	} `json:"result"`
}

// Create files an incident and returns its number. On any failure it returns
// a sentinel string instead of an error.
func (c *ServiceNowClient) Create(ctx context.Context, shortDescription, description string) string {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	number, err := c.create(ctx, shortDescription, description)
	if err != nil {
		slog.Error("Ticket creation failed", "error", err, "short_description", shortDescription)
		return SentinelFailed
	}
	if number == "" {
		slog.Warn("Ticketing response carried no ticket number", "short_description", shortDescription)
		return SentinelMalformed
	}
	return number
}

func (c *ServiceNowClient) create(ctx context.Context, shortDescription, description string) (string, error) {
	body, err := json.Marshal(incidentRequest{
		ShortDescription: shortDescription,
		Description:      description,
		Category:         c.cfg.Category,
	})
	if err != nil {
		return "", fmt.Errorf("encode incident request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.InstanceURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build incident request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send incident request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("failed to close incident response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read incident response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("incident request returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded incidentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode incident response: %w", err)
	}

	return decoded.Result.Number, nil
}
