package scrape

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/cost"
	"github.com/aiprodig/leadgen-cli/pkg/jina"
)

var readerCosts = cost.NewCalculator(cost.DefaultRates())

// JinaFetcher renders pages through the Jina reader, which executes
// JavaScript and gets past most anti-bot interstitials. Selected with
// scrape.provider=jina.
type JinaFetcher struct {
	client  jina.Client
	timeout time.Duration
}

// NewJinaFetcher wraps client. A zero timeout leaves the request bounded
// only by ctx and the client's own timeout.
func NewJinaFetcher(client jina.Client, timeout time.Duration) *JinaFetcher {
	return &JinaFetcher{client: client, timeout: timeout}
}

// Fetch reads targetURL once in HTML mode.
func (f *JinaFetcher) Fetch(ctx context.Context, targetURL string) FetchResult {
	res := FetchResult{URL: targetURL}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	resp, err := f.client.Read(ctx, targetURL, jina.WithReturnFormat(jina.FormatHTML))
	if err != nil {
		res.Err = eris.Wrap(err, "fetch: jina read")
		return res
	}

	zap.L().Debug("cost attribution",
		zap.String("provider", "jina"),
		zap.String("phase", "fetch"),
		zap.Int("tokens", resp.Data.Usage.Tokens),
		zap.Float64("estimated_cost_usd", readerCosts.Jina(resp.Data.Usage.Tokens)),
	)

	// resp.Code belongs to the reader envelope; the target's own status only
	// surfaces through the warning.
	res.StatusCode = http.StatusOK
	if code := resp.Data.TargetStatus(); code != 0 {
		res.StatusCode = code
	} else if resp.Data.Warning != "" {
		zap.L().Debug("fetch: jina warning", zap.String("url", targetURL), zap.String("warning", resp.Data.Warning))
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		res.Err = eris.Errorf("fetch: status %d", res.StatusCode)
		return res
	}

	html := resp.Data.HTML
	if html == "" {
		html = resp.Data.Content
	}
	if strings.TrimSpace(html) == "" {
		res.Err = eris.New("fetch: empty page")
		return res
	}
	res.HTML = html
	return res
}
