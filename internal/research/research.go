package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Defaults for Researcher.
const (
	DefaultMaxResults = 5
	DefaultMaxChars   = 1500
)

// queryTerms asks for news, projects, recent achievements and social presence.
const queryTerms = "noticias proyectos logros recientes redes sociales"

// Context is the research output attached to a prompt.
type Context struct {
	Query   string `json:"query"`
	Summary string `json:"summary"`
	Hits    int    `json:"hits"`
}

// Empty reports whether the research produced no usable text.
func (c Context) Empty() bool {
	return c.Summary == ""
}

// Researcher builds a short context blob about a company domain.
type Researcher struct {
	searcher   Searcher
	maxResults int
	maxChars   int
	timeout    time.Duration
	extraTerms string
}

// Option configures a Researcher.
type Option func(*Researcher)

// WithMaxResults bounds the number of search hits consulted.
func WithMaxResults(n int) Option {
	return func(r *Researcher) {
		if n > 0 {
			r.maxResults = n
		}
	}
}

// WithMaxChars caps the summary length in runes.
func WithMaxChars(n int) Option {
	return func(r *Researcher) {
		if n > 0 {
			r.maxChars = n
		}
	}
}

// WithTimeout bounds each search call.
func WithTimeout(d time.Duration) Option {
	return func(r *Researcher) {
		r.timeout = d
	}
}

// WithExtraTerms appends terms to every query.
func WithExtraTerms(terms string) Option {
	return func(r *Researcher) {
		r.extraTerms = strings.TrimSpace(terms)
	}
}

// NewResearcher returns a Researcher over s.
func NewResearcher(s Searcher, opts ...Option) *Researcher {
	r := &Researcher{
		searcher:   s,
		maxResults: DefaultMaxResults,
		maxChars:   DefaultMaxChars,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Query renders the search query for domain.
func (r *Researcher) Query(domain, extra string) string {
	parts := []string{fmt.Sprintf("%q", domain), queryTerms}
	if r.extraTerms != "" {
		parts = append(parts, r.extraTerms)
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, " ")
}

// Research searches for domain and summarizes the hits. On search failure
// the error is logged and returned alongside an empty Context so the caller
// can record a degraded stage.
func (r *Researcher) Research(ctx context.Context, domain, extra string) (Context, error) {
	out := Context{Query: r.Query(domain, extra)}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	hits, err := r.searcher.Search(ctx, out.Query, r.maxResults)
	if err != nil {
		zap.L().Warn("research: search failed",
			zap.String("domain", domain),
			zap.Error(err),
		)
		return out, err
	}

	out.Hits = len(hits)
	out.Summary = Summarize(hits, r.maxChars)
	return out, nil
}

// Summarize renders hits as "- title: snippet" lines capped at maxChars runes.
func Summarize(hits []Hit, maxChars int) string {
	var b strings.Builder
	for _, h := range hits {
		title := strings.TrimSpace(h.Title)
		snippet := strings.Join(strings.Fields(h.Snippet), " ")
		if title == "" && snippet == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(title)
		if snippet != "" {
			b.WriteString(": ")
			b.WriteString(snippet)
		}
	}
	return truncateRunes(b.String(), maxChars)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Domain reduces a URL to its host without scheme, port or leading "www.".
// Inputs without a scheme are accepted.
func Domain(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(rawURL)), "www.")
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
