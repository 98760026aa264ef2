// Package scrape fetches company websites and reduces them to the signals
// the enrichment prompt needs.
package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultUserAgent mimics a current desktop browser; many small-business
// hosts reject obvious bot agents outright.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const (
	defaultFetchTimeout = 12 * time.Second
	defaultMaxBodyBytes = 2 * 1024 * 1024
)

// FetchResult is the outcome of a single fetch. A failed fetch carries an
// empty HTML and a populated Err; it is never returned as a Go error so the
// caller can degrade instead of aborting.
type FetchResult struct {
	URL        string
	HTML       string
	StatusCode int
	Block      BlockType
	Err        error
}

// OK reports whether the fetch produced usable HTML.
func (r FetchResult) OK() bool {
	return r.Err == nil && r.HTML != ""
}

// Fetcher retrieves the raw HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// HTTPFetcher fetches pages with a single GET and no retries.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithTimeout sets the total request timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodyBytes bounds how much of the response body is read.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher with sensible defaults.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: defaultFetchTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: DefaultUserAgent,
		maxBody:   defaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch performs one GET. Non-2xx statuses, anti-bot pages and transport
// errors are reported through FetchResult.Err.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) FetchResult {
	res := FetchResult{URL: targetURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		res.Err = eris.Wrap(err, "fetch: create request")
		return res
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-CO,es;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		res.Err = eris.Wrap(err, "fetch: request")
		return res
	}
	defer func() { _ = resp.Body.Close() }()
	res.StatusCode = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		res.Err = eris.Wrap(err, "fetch: read body")
		return res
	}

	blocked, blockType := DetectBlock(resp, body)
	res.Block = blockType
	if blocked && blockType != BlockJSShell {
		res.Err = eris.Errorf("fetch: blocked (%s)", blockType)
		return res
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Err = eris.Errorf("fetch: status %d", resp.StatusCode)
		return res
	}

	res.HTML = decodeBody(body, resp.Header.Get("Content-Type"))
	if strings.TrimSpace(res.HTML) == "" {
		res.Err = eris.New("fetch: empty page")
		res.HTML = ""
	}
	return res
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?\s*([a-zA-Z0-9_\-]+)`)

// decodeBody transcodes body to UTF-8 using the Content-Type charset, or a
// <meta charset> in the first KiB when the header has none. Unknown charsets
// pass through unchanged.
func decodeBody(body []byte, contentType string) string {
	cs := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		cs = params["charset"]
	}
	if cs == "" {
		head := body
		if len(head) > 1024 {
			head = head[:1024]
		}
		if m := metaCharsetRe.FindSubmatch(head); len(m) > 1 {
			cs = string(m[1])
		}
	}
	if cs == "" || strings.EqualFold(cs, "utf-8") || strings.EqualFold(cs, "utf8") {
		return string(body)
	}

	enc, err := htmlindex.Get(cs)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
