// Package discovery finds candidate leads through web search and runs the
// unattended daily workflow that feeds them through enrichment.
package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/model"
	"github.com/aiprodig/leadgen-cli/internal/research"
	"github.com/aiprodig/leadgen-cli/internal/store"
)

// ErrSearchUnavailable is returned when no search provider is configured.
var ErrSearchUnavailable = eris.New("discovery: no search provider configured")

// Defaults for discovery.
const (
	DefaultQuery = "pymes en colombia que necesiten automatizacion"
	DefaultCount = 5
)

// Item outcomes.
const (
	OutcomeAdded   = "added"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Item is one search hit and what discovery did with it.
type Item struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Outcome     string `json:"outcome"`
	LeadID      string `json:"lead_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Report summarizes a Discover call.
type Report struct {
	Query   string `json:"query"`
	Added   int    `json:"added"`
	Results []Item `json:"results"`
}

// Discoverer turns search hits into new leads.
type Discoverer struct {
	searcher     research.Searcher
	store        store.Store
	defaultQuery string
	count        int
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithDefaultQuery sets the query used when Discover receives none.
func WithDefaultQuery(q string) Option {
	return func(d *Discoverer) {
		if q = strings.TrimSpace(q); q != "" {
			d.defaultQuery = q
		}
	}
}

// WithCount sets the number of hits requested per search.
func WithCount(n int) Option {
	return func(d *Discoverer) {
		if n > 0 {
			d.count = n
		}
	}
}

// NewDiscoverer returns a Discoverer. A nil searcher is allowed; Discover
// then fails with ErrSearchUnavailable.
func NewDiscoverer(s research.Searcher, st store.Store, opts ...Option) *Discoverer {
	d := &Discoverer{
		searcher:     s,
		store:        st,
		defaultQuery: DefaultQuery,
		count:        DefaultCount,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Discover searches for query and inserts every hit whose URL is not yet
// stored, with status new and the search snippet as description.
func (d *Discoverer) Discover(ctx context.Context, query string) (*Report, error) {
	if d.searcher == nil {
		return nil, ErrSearchUnavailable
	}

	query = strings.TrimSpace(query)
	if query == "" {
		query = d.defaultQuery
	}
	log := zap.L().With(zap.String("query", query))

	hits, err := d.searcher.Search(ctx, query, d.count)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: search")
	}

	report := &Report{Query: query, Results: make([]Item, 0, len(hits))}
	for _, h := range hits {
		item := Item{Title: h.Title, URL: strings.TrimSpace(h.URL), Description: h.Snippet}

		if !validURL(item.URL) {
			item.Outcome = OutcomeSkipped
			item.Error = "invalid url"
			report.Results = append(report.Results, item)
			continue
		}

		existing, err := d.store.FindByURL(ctx, item.URL)
		if err != nil {
			item.Outcome = OutcomeFailed
			item.Error = err.Error()
			log.Warn("discovery: lookup failed", zap.String("url", item.URL), zap.Error(err))
			report.Results = append(report.Results, item)
			continue
		}
		if existing != nil {
			item.Outcome = OutcomeSkipped
			item.LeadID = existing.ID
			report.Results = append(report.Results, item)
			continue
		}

		lead, err := d.store.UpsertByURL(ctx, item.URL, store.LeadFields{
			CompanyName: store.Ptr(strings.TrimSpace(h.Title)),
			Status:      store.Ptr(model.LeadStatusNew),
			ScrapedData: &model.ScrapedData{
				Description: h.Snippet,
				Source:      model.LeadSourceDiscovery,
			},
		})
		if err != nil {
			item.Outcome = OutcomeFailed
			item.Error = err.Error()
			log.Warn("discovery: insert failed", zap.String("url", item.URL), zap.Error(err))
			report.Results = append(report.Results, item)
			continue
		}

		item.Outcome = OutcomeAdded
		item.LeadID = lead.ID
		report.Added++
		report.Results = append(report.Results, item)
	}

	log.Info("discovery: complete",
		zap.Int("hits", len(hits)),
		zap.Int("added", report.Added),
	)
	return report, nil
}

// validURL accepts absolute http(s) URLs with a host.
func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
