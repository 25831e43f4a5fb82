package bureau

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

const maxResponseBytes = 1 << 20

// Client looks up bureau reports over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a bureau client. A zero timeout defaults to 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// LookupReport implements domain.BureauLookup.
// A 404 response means the bureau has no report for the document.
func (c *Client) LookupReport(ctx context.Context, documentNumber string) (*domain.BureauReport, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bureau url: %w", err)
	}
	q := u.Query()
	q.Set("document", documentNumber)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bureau request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected bureau status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read bureau response: %w", err)
	}

	slog.Debug("bureau response received", "bytes", len(body))

	return ParseReport(body)
}
