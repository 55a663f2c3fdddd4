package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/phasewatch/internal/models"
	"github.com/claude/phasewatch/internal/storage"
)

// HTTPClient implements DataSource by calling the phasewatch REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the archive lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// bucketToAgg maps MCP bucket values to REST API agg parameter values.
func bucketToAgg(bucket string) string {
	switch bucket {
	case "1 day":
		return "daily"
	case "1 month":
		return "monthly"
	default:
		return "weekly"
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	default:
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) QueryNights(ctx context.Context, start, end time.Time, _ int, device string) ([]models.NightRow, error) {
	params := timeParams(start, end)
	if device != "" {
		params.Set("device", device)
	}

	body, err := c.get(ctx, "/api/v1/nights", params)
	if err != nil {
		return nil, err
	}

	var nights []models.NightRow
	if err := json.Unmarshal(body, &nights); err != nil {
		return nil, fmt.Errorf("httpclient: decode nights: %w", err)
	}
	return nights, nil
}

func (c *HTTPClient) LatestExport(ctx context.Context, _ int, device string) (*models.ExportRow, error) {
	params := url.Values{}
	if device != "" {
		params.Set("device", device)
	}

	body, err := c.get(ctx, "/api/v1/exports/latest", params)
	if err != nil {
		return nil, err
	}

	var export models.ExportRow
	if err := json.Unmarshal(body, &export); err != nil {
		return nil, fmt.Errorf("httpclient: decode export: %w", err)
	}
	return &export, nil
}

// GetNightSummary ignores loc; the server reports times of day in its own
// configured timezone.
func (c *HTTPClient) GetNightSummary(ctx context.Context, start, end time.Time, bucket string, _ int, _ *time.Location) ([]storage.NightSummaryPeriod, error) {
	params := timeParams(start, end)
	params.Set("agg", bucketToAgg(bucket))

	body, err := c.get(ctx, "/api/v1/nights/summary", params)
	if err != nil {
		return nil, err
	}

	var periods []storage.NightSummaryPeriod
	if err := json.Unmarshal(body, &periods); err != nil {
		return nil, fmt.Errorf("httpclient: decode night summary: %w", err)
	}
	return periods, nil
}
