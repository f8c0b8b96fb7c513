package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to an expomatch API server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the Bearer token sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search runs a search plan and returns outcomes in plan order.
func (c *Client) Search(ctx context.Context, plan SearchPlan) ([]Outcome, error) {
	var resp struct {
		Outcomes []Outcome `json:"outcomes"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/search", plan, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return resp.Outcomes, nil
}

// UpsertEntity embeds and stores an entity's facet texts.
func (c *Client) UpsertEntity(
	ctx context.Context, table, entityID string, req UpsertEntityRequest,
) (UpsertEntityResponse, error) {
	var resp UpsertEntityResponse
	path := entityPath(table, entityID)
	if err := c.do(ctx, http.MethodPut, path, req, &resp); err != nil {
		return UpsertEntityResponse{}, fmt.Errorf("upsert entity: %w", err)
	}
	return resp, nil
}

// DeleteEntity removes an entity's vectors.
func (c *Client) DeleteEntity(ctx context.Context, table, entityID string) error {
	if err := c.do(ctx, http.MethodDelete, entityPath(table, entityID), nil, nil); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	return nil
}

// Health fetches the server's aggregated health report. A degraded
// server yields an *APIError with status 503.
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var report HealthReport
	if err := c.do(ctx, http.MethodGet, "/health", nil, &report); err != nil {
		return report, fmt.Errorf("health: %w", err)
	}
	return report, nil
}

func entityPath(table, entityID string) string {
	return "/api/v1/tables/" + url.PathEscape(table) + "/entities/" + url.PathEscape(entityID)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var wire struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err == nil {
		apiErr.Code = wire.Code
		apiErr.Message = wire.Message
	}
	return apiErr
}
