// Package client is a typed HTTP client for the logbook API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/logbook/backend/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout applies when New is given a zero timeout.
const DefaultTimeout = 10 * time.Second

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Title   string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Title)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Message)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Version   string  `json:"version,omitempty"`
}

// UptimeDuration returns the reported uptime as a duration.
func (h *HealthStatus) UptimeDuration() time.Duration {
	return time.Duration(h.Uptime * float64(time.Second))
}

// Client talks to a single logbook server.
type Client struct {
	rest *resty.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL for the logbook server must be set")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{rest: rest}, nil
}

// HTTPClient exposes the underlying transport client, e.g. for mocking.
func (c *Client) HTTPClient() *http.Client {
	return c.rest.GetClient()
}

// FetchLogs returns the entries matching filter, newest first.
func (c *Client) FetchLogs(ctx context.Context, filter models.Filter) ([]models.LogEntry, error) {
	var entries []models.LogEntry

	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(filter.Params()).
		SetResult(&entries).
		Get("/logs")
	if err != nil {
		log.Debug().Err(err).Msg("fetch logs request failed")
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}

	if entries == nil {
		entries = []models.LogEntry{}
	}
	return entries, nil
}

// IngestLog submits one entry and returns the stored copy.
// A nil Metadata map is sent as an empty object.
func (c *Client) IngestLog(ctx context.Context, entry models.LogEntry) (models.LogEntry, error) {
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	return c.ingest(ctx, entry)
}

// IngestRaw submits a JSON body as-is, leaving validation to the server.
func (c *Client) IngestRaw(ctx context.Context, body []byte) (models.LogEntry, error) {
	return c.ingest(ctx, body)
}

func (c *Client) ingest(ctx context.Context, body any) (models.LogEntry, error) {
	var stored models.LogEntry

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&stored).
		Post("/logs")
	if err != nil {
		log.Debug().Err(err).Msg("ingest request failed")
		return models.LogEntry{}, fmt.Errorf("failed to ingest log: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return models.LogEntry{}, decodeError(resp)
	}
	return stored, nil
}

// CheckHealth queries the server's health endpoint.
func (c *Client) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus

	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/health")
	if err != nil {
		return nil, fmt.Errorf("failed to check health: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp)
	}
	return &status, nil
}

func decodeError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Title == "" {
		apiErr.Title = http.StatusText(resp.StatusCode())
		apiErr.Message = strings.TrimSpace(string(resp.Body()))
	}
	return apiErr
}
