package checks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jonwraymond/fastuator/health"
)

// HTTPChecker checks a dependency over HTTP. A 2xx response is UP.
type HTTPChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPChecker creates an HTTP checker issuing GET url. A nil client uses
// http.DefaultClient; the Runner's per-check timeout bounds the request.
func NewHTTPChecker(name, url string, client *http.Client) *HTTPChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPChecker{name: nameOr(name, "http"), url: url, client: client}
}

// Name returns the checker name.
func (c *HTTPChecker) Name() string {
	return c.name
}

// Check performs the request.
func (c *HTTPChecker) Check(ctx context.Context) health.Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return health.Failed(fmt.Errorf("build request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return health.Failed(fmt.Errorf("get %s: %w", c.url, err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	return health.Result{Status: health.StatusFor(ok)}.WithDetails(map[string]any{
		"url":         c.url,
		"status_code": resp.StatusCode,
	})
}
