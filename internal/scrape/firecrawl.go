package scrape

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/aiprodig/leadgen-cli/pkg/firecrawl"
)

// FirecrawlFetcher renders pages through Firecrawl's hosted browser.
// Selected with scrape.provider=firecrawl.
type FirecrawlFetcher struct {
	client  firecrawl.Client
	timeout time.Duration
}

// NewFirecrawlFetcher wraps client. The timeout bounds the call and is
// also passed to Firecrawl as its page-load budget.
func NewFirecrawlFetcher(client firecrawl.Client, timeout time.Duration) *FirecrawlFetcher {
	return &FirecrawlFetcher{client: client, timeout: timeout}
}

// Fetch scrapes targetURL once and returns the raw page HTML.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, targetURL string) FetchResult {
	res := FetchResult{URL: targetURL}

	req := firecrawl.ScrapeRequest{
		URL:             targetURL,
		Formats:         []string{firecrawl.FormatRawHTML},
		OnlyMainContent: new(bool),
	}
	if f.timeout > 0 {
		req.Timeout = int(f.timeout.Milliseconds())
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout+5*time.Second)
		defer cancel()
	}

	resp, err := f.client.Scrape(ctx, req)
	if err != nil {
		res.Err = eris.Wrap(err, "fetch: firecrawl scrape")
		return res
	}

	res.StatusCode = resp.Data.Metadata.StatusCode
	if res.StatusCode == 0 {
		res.StatusCode = http.StatusOK
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		res.Err = eris.Errorf("fetch: status %d", res.StatusCode)
		return res
	}

	html := resp.Data.RawHTML
	if html == "" {
		html = resp.Data.HTML
	}
	if strings.TrimSpace(html) == "" {
		res.Err = eris.New("fetch: empty page")
		return res
	}
	res.HTML = html
	return res
}
