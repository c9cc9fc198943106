package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/studiotv/internal/models"
	"github.com/claude/studiotv/internal/progress"
	"github.com/claude/studiotv/internal/records"
)

// HTTPClient implements DataSource by calling the StudioTV REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the engine lives on the studio server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: *HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *HTTPClient) LiveState(ctx context.Context) (*LiveState, error) {
	body, err := c.get(ctx, "/api/v1/tv/state")
	if err != nil {
		return nil, err
	}

	var state LiveState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("httpclient: decode state: %w", err)
	}
	return &state, nil
}

func (c *HTTPClient) PersonalRecords(ctx context.Context) (*records.State, error) {
	body, err := c.get(ctx, "/api/v1/tv/records")
	if err != nil {
		return nil, err
	}

	var state records.State
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("httpclient: decode records: %w", err)
	}
	return &state, nil
}

func (c *HTTPClient) TraineeProgress(ctx context.Context) (*progress.Index, error) {
	body, err := c.get(ctx, "/api/v1/tv/progress")
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Progress *progress.Index `json:"progress"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("httpclient: decode progress: %w", err)
	}
	return wrapper.Progress, nil
}

func (c *HTTPClient) StatusLog(ctx context.Context) ([]models.StatusLogEntry, error) {
	body, err := c.get(ctx, "/api/v1/tv/logs")
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Entries []models.StatusLogEntry `json:"entries"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("httpclient: decode logs: %w", err)
	}
	return wrapper.Entries, nil
}
