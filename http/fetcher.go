// Package http provides a static pagewalk.Tab for server-rendered sites that
// don't require JavaScript: pages are fetched over HTTP and parsed with
// goquery.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/pagewalk"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// DefaultUserAgent identifies requests made by the fetcher.
const DefaultUserAgent = "pagewalk/1.0 (+https://github.com/fwojciec/pagewalk)"

// maxBodySize bounds the bytes read from one response.
const maxBodySize = 16 << 20

// Fetcher retrieves documents over HTTP.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a new HTTP Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:   DefaultFetchTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Response is a fetched document.
type Response struct {
	// URL is the final address after redirects.
	URL  string
	Body []byte
}

// Fetch retrieves url with the given Accept header. Server errors and
// network failures wrap pagewalk.ErrNavigation so callers retry them;
// client errors are EINVALID.
func (f *Fetcher) Fetch(ctx context.Context, url, accept string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pagewalk.Errorf(pagewalk.EINVALID, "bad request URL %q: %v", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("GET %s: %w: %v", url, pagewalk.ErrNavigation, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("HTTP %d for %s: %w", resp.StatusCode, url, pagewalk.ErrNavigation)
	case resp.StatusCode != http.StatusOK:
		return nil, pagewalk.Errorf(pagewalk.EINVALID, "HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %v", url, pagewalk.ErrNavigation, err)
	}

	return &Response{URL: resp.Request.URL.String(), Body: body}, nil
}
