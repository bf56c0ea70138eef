// Page fetchers for policy documents.
//
// Information Hiding:
// - Plain HTTP retrieval through the shared bounded client
// - Headless browser rendering for script-built pages
// - Per-fetch timeout bookkeeping

package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/wramirez09/langchain-agent-sub000/tools"
)

// Fetcher retrieves the raw markup of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher fetches pages with a plain GET. Non-2xx responses are errors.
type HTTPFetcher struct {
	client *tools.HTTPClient
}

// NewHTTPFetcherWithClient wraps an existing client. The client's timeout
// and domain allowlist apply to every fetch.
func NewHTTPFetcherWithClient(client *tools.HTTPClient) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	body, err := f.client.Get(ctx, pageURL, nil, "text/html,application/xhtml+xml")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ChromeFetcher renders pages in headless Chrome before reading the DOM.
// Requires a Chrome binary on the host. Only the first navigation is
// checked against the allowlist.
type ChromeFetcher struct {
	Timeout   time.Duration
	UserAgent string
	guard     *tools.HTTPClient
}

// NewChromeFetcher creates a headless fetcher that borrows the client's
// timeout, user agent and allowlist.
func NewChromeFetcher(client *tools.HTTPClient) *ChromeFetcher {
	return &ChromeFetcher{Timeout: client.Timeout(), UserAgent: client.UserAgent(), guard: client}
}

func (f *ChromeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if strings.TrimSpace(pageURL) == "" {
		return "", errors.New("invalid url")
	}
	if f.guard != nil {
		if _, err := f.guard.CheckURL(pageURL); err != nil {
			return "", err
		}
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

// NewFetcher selects a fetcher by renderer name ("http" or "chromedp").
func NewFetcher(renderer string, client *tools.HTTPClient) (Fetcher, error) {
	switch strings.ToLower(strings.TrimSpace(renderer)) {
	case "", "http":
		return NewHTTPFetcherWithClient(client), nil
	case "chromedp", "chrome":
		return NewChromeFetcher(client), nil
	default:
		return nil, fmt.Errorf("unknown extractor renderer %q", renderer)
	}
}
