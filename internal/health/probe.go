// Package health provides the HTTP liveness probe used by the deploy
// pipeline's verify stage.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single probe request.
const DefaultTimeout = 5 * time.Second

// HTTPProbe performs a single GET against a /health endpoint.
type HTTPProbe struct {
	url    string
	client *http.Client
}

// NewHTTPProbe returns a probe for the given base URL. The /health path
// is appended unless the URL already names a path.
func NewHTTPProbe(baseURL string, timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	url := strings.TrimRight(baseURL, "/")
	if !strings.Contains(strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://"), "/") {
		url += "/health"
	}

	return &HTTPProbe{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Check performs one liveness probe. Any transport error or non-2xx
// status is a probe failure.
func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health endpoint returned %s", resp.Status)
	}
	return nil
}
