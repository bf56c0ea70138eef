// Upstream HTTP client shared by tools that read third-party endpoints.
//
// Information Hiding:
// - Per-call timeout handling
// - Domain allowlist enforcement
// - Response size bound and status classification

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMaxBodyBytes bounds how much of a response body is read.
const DefaultMaxBodyBytes = 16 << 20

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// HTTPClient issues bounded GET requests. Every call carries its own
// timeout, so cancelling one request never affects a sibling.
type HTTPClient struct {
	client         *http.Client
	timeout        time.Duration
	allowedDomains []string
	userAgent      string
	maxBodyBytes   int64
}

// NewHTTPClient creates a client whose requests time out after timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:       &http.Client{},
		timeout:      timeout,
		userAgent:    "priorauth/1.0 (+coverage lookup)",
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// WithAllowedDomains restricts requests to the given hosts and their subdomains.
func (c *HTTPClient) WithAllowedDomains(domains []string) *HTTPClient {
	c.allowedDomains = domains
	return c
}

// Timeout returns the per-request timeout.
func (c *HTTPClient) Timeout() time.Duration {
	return c.timeout
}

// UserAgent returns the User-Agent sent with every request.
func (c *HTTPClient) UserAgent() string {
	return c.userAgent
}

// CheckURL parses rawURL and rejects non-HTTP schemes and hosts outside
// the allowlist.
func (c *HTTPClient) CheckURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if !c.isDomainAllowed(u) {
		return nil, fmt.Errorf("access to domain %q is not allowed", u.Hostname())
	}
	return u, nil
}

// Get fetches rawURL with the given query parameters merged in and returns
// the body. Non-2xx responses yield a *StatusError.
func (c *HTTPClient) Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error) {
	u, err := c.CheckURL(rawURL)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("request timed out after %s", c.timeout)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: u.String()}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// isDomainAllowed checks the host against the allowlist.
// Uses proper URL parsing to prevent bypass attacks.
func (c *HTTPClient) isDomainAllowed(u *url.URL) bool {
	if len(c.allowedDomains) == 0 {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range c.allowedDomains {
		// Exact match or subdomain match
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
