package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/phasewatch/internal/ingest"
)

// Export is the upload body accepted by POST /api/v1/exports.
type Export struct {
	Device      string `json:"device"`
	Payload     string `json:"payload"`
	ActiveStart uint16 `json:"active_start"`
	ActiveEnd   uint16 `json:"active_end"`
}

// errRejected marks a response that retrying cannot fix.
var errRejected = errors.New("export rejected")

// Client sends exports to the phasewatch server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the phasewatch server.
func NewClient(serverURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		backoff:    time.Second,
	}
}

// SendExport POSTs an export to the server.
// Retries up to 3 times with exponential backoff on failure. Client errors
// other than 429 are returned immediately.
func (c *Client) SendExport(ctx context.Context, export Export) (*ingest.Result, error) {
	data, err := json.Marshal(export)
	if err != nil {
		return nil, fmt.Errorf("marshaling export: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * c.backoff):
			}
		}

		result, err := c.post(ctx, data)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, errRejected) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (c *Client) post(ctx context.Context, data []byte) (*ingest.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/exports", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusOK:
		var result ingest.Result
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decoding upload result: %w", err)
		}
		return &result, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w (status %d): %s", errRejected, resp.StatusCode, body)
	default:
		return nil, fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, body)
	}
}
