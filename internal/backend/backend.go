// Package backend implements the read-only query clients for the WaterWallet
// advisory APIs. Each operation performs one HTTP call against a configured
// base URL and returns parsed structured data or a failure signal.
//
// Failures are split into two kinds the conversation engine renders differently:
// ErrUnavailable (network error, timeout, non-2xx status) and an empty result
// set (a valid call that returned zero rows), which is reported through an
// empty slice with a nil error.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable indicates the backend could not be reached or answered with a
// non-success status. Callers should treat this as "try again later".
var ErrUnavailable = errors.New("backend unavailable")

// DefaultTimeout bounds every backend call so a hung backend cannot block a
// user's turn indefinitely.
const DefaultTimeout = 30 * time.Second

// ListOption is one entry of a numbered option list (district, taluka, village,
// survey). Order is authoritative: lists are presented exactly as returned.
type ListOption struct {
	Name string
	Code string
}

// ClientOption configures a query client.
type ClientOption func(*clientOpts)

type clientOpts struct {
	timeout    time.Duration
	httpClient *http.Client
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOpts) { o.timeout = d }
}

// WithHTTPClient injects a custom HTTP client (primarily for tests).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOpts) { o.httpClient = c }
}

func newHTTPClient(opts []ClientOption) *http.Client {
	cfg := clientOpts{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.httpClient != nil {
		return cfg.httpClient
	}
	return &http.Client{Timeout: cfg.timeout}
}

// getJSON issues a GET with query parameters and decodes the JSON response
// into out. Transport errors and non-2xx statuses map to ErrUnavailable.
func getJSON(ctx context.Context, client *http.Client, rawURL string, params url.Values, out interface{}) error {
	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	return doJSON(client, req, out)
}

// postJSON issues a POST with a JSON body and decodes the JSON response into
// out. Transport errors and non-2xx statuses map to ErrUnavailable.
func postJSON(ctx context.Context, client *http.Client, rawURL string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", rawURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(client, req, out)
}

func doJSON(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d from %s", ErrUnavailable, resp.StatusCode, req.URL.Path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// extractNumeric pulls the first numeric value found under any of the
// candidate field names. Backends are inconsistent about balance field naming,
// so the lookup tolerates numbers encoded as JSON numbers or strings.
func extractNumeric(data map[string]interface{}, candidates ...string) (float64, bool) {
	for _, name := range candidates {
		v, ok := data[name]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		case string:
			var f float64
			if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func stringField(data map[string]interface{}, name string) string {
	if v, ok := data[name].(string); ok {
		return v
	}
	return ""
}
