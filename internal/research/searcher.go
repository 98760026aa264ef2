// Package research gathers third-party context about a company from a web
// search provider. It backs both the optional enrichment research stage and
// lead discovery.
package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/aiprodig/leadgen-cli/internal/config"
	"github.com/aiprodig/leadgen-cli/pkg/brave"
	"github.com/aiprodig/leadgen-cli/pkg/google"
	"github.com/aiprodig/leadgen-cli/pkg/jina"
)

// Hit is a single search result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"description"`
}

// Searcher runs a web search and returns at most count hits.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]Hit, error)
}

// BraveSearcher adapts a Brave client to Searcher.
type BraveSearcher struct {
	client brave.Client
}

// NewBraveSearcher wraps client.
func NewBraveSearcher(client brave.Client) *BraveSearcher {
	return &BraveSearcher{client: client}
}

func (s *BraveSearcher) Search(ctx context.Context, query string, count int) ([]Hit, error) {
	resp, err := s.client.WebSearch(ctx, query, count)
	if err != nil {
		return nil, eris.Wrap(err, "research: brave search")
	}
	results := resp.Results()
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return limit(hits, count), nil
}

// JinaSearcher adapts a Jina client to Searcher.
type JinaSearcher struct {
	client jina.Client
}

// NewJinaSearcher wraps client.
func NewJinaSearcher(client jina.Client) *JinaSearcher {
	return &JinaSearcher{client: client}
}

func (s *JinaSearcher) Search(ctx context.Context, query string, count int) ([]Hit, error) {
	var opts []jina.SearchOption
	if count > 0 {
		opts = append(opts, jina.WithCount(count))
	}
	resp, err := s.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "research: jina search")
	}
	hits := make([]Hit, 0, len(resp.Data))
	for _, r := range resp.Data {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		hits = append(hits, Hit{Title: r.Title, URL: r.URL, Snippet: snippet})
	}
	return limit(hits, count), nil
}

// PlacesSearcher adapts the Google Places text search to Searcher. It suits
// discovery of local businesses; places without a website are skipped since
// there is nothing to analyze.
type PlacesSearcher struct {
	client   google.Client
	language string
}

// NewPlacesSearcher wraps client. language biases place names and
// addresses, e.g. "es".
func NewPlacesSearcher(client google.Client, language string) *PlacesSearcher {
	return &PlacesSearcher{client: client, language: language}
}

func (s *PlacesSearcher) Search(ctx context.Context, query string, count int) ([]Hit, error) {
	resp, err := s.client.SearchText(ctx, google.SearchTextRequest{
		TextQuery:    query,
		PageSize:     count,
		LanguageCode: s.language,
	})
	if err != nil {
		return nil, eris.Wrap(err, "research: places search")
	}
	hits := make([]Hit, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.WebsiteURI == "" {
			continue
		}
		hits = append(hits, Hit{
			Title:   p.DisplayName.Text,
			URL:     p.WebsiteURI,
			Snippet: placeSnippet(p),
		})
	}
	return limit(hits, count), nil
}

func placeSnippet(p google.Place) string {
	if p.UserRatingCount == 0 {
		return p.FormattedAddress
	}
	return fmt.Sprintf("%s (%.1f, %d reviews)", p.FormattedAddress, p.Rating, p.UserRatingCount)
}

func limit(hits []Hit, count int) []Hit {
	if count > 0 && len(hits) > count {
		return hits[:count]
	}
	return hits
}

// NewSearcher builds the Searcher selected by cfg.Research.Provider. It
// returns nil, nil when the provider has no credential configured or
// research is disabled; callers treat a nil Searcher as "not available".
func NewSearcher(cfg *config.Config) (Searcher, error) {
	if cfg.Research.Disabled {
		return nil, nil
	}

	switch strings.ToLower(cfg.Research.Provider) {
	case "brave", "":
		if cfg.Brave.Key == "" {
			return nil, nil
		}
		var opts []brave.Option
		if cfg.Brave.BaseURL != "" {
			opts = append(opts, brave.WithBaseURL(cfg.Brave.BaseURL))
		}
		return NewBraveSearcher(brave.NewClient(cfg.Brave.Key, opts...)), nil

	case "jina":
		if cfg.Jina.Key == "" {
			return nil, nil
		}
		var opts []jina.Option
		if cfg.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		return NewJinaSearcher(jina.NewClient(cfg.Jina.Key, opts...)), nil

	case "google":
		if cfg.Google.Key == "" {
			return nil, nil
		}
		var opts []google.Option
		if cfg.Google.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(cfg.Google.BaseURL))
		}
		return NewPlacesSearcher(google.NewClient(cfg.Google.Key, opts...), cfg.Google.Language), nil

	default:
		return nil, eris.Errorf("research: unsupported provider %q", cfg.Research.Provider)
	}
}
