package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/obdstream/pkg/logger"
)

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// get performs a GET request against path.
func (c *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Health checks GET /healthz answers 200.
func (c *HTTPClient) Health(ctx context.Context) error {
	resp, err := c.get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer closeBody(ctx, resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// CountSamples returns the number of rows GET /samples reports.
func (c *HTTPClient) CountSamples(ctx context.Context) (int, error) {
	resp, err := c.get(ctx, "/samples")
	if err != nil {
		return 0, fmt.Errorf("failed to list samples: %w", err)
	}
	defer closeBody(ctx, resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read samples: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to list samples: status %d: %s", resp.StatusCode, body)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode samples: %w", err)
	}
	return len(rows), nil
}

func closeBody(ctx context.Context, resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		logger.Get().Error(ctx, "failed to close response body", logger.Error(err))
	}
}
