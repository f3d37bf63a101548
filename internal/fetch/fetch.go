package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// UpstreamError reports an unreachable upstream or a non-success status.
// It aborts the build of the affected legislature.
type UpstreamError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s unreachable: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("upstream %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client downloads initiative dumps, spacing requests to the upstream.
type Client struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient creates a new upstream client. A zero timeout defaults to five
// minutes: full legislature dumps run to hundreds of megabytes.
func NewClient(timeout time.Duration, requestsPerSecond float64, userAgent string) *Client {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: userAgent,
	}
}

// Get downloads url and returns its body with any byte order mark removed.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	log.Printf("Downloaded %d bytes in %s", len(body), time.Since(start).Round(time.Millisecond))
	return bytes.TrimPrefix(body, utf8BOM), nil
}
