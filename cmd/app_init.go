package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/discovery"
	"github.com/aiprodig/leadgen-cli/internal/enrich"
	"github.com/aiprodig/leadgen-cli/internal/inference"
	"github.com/aiprodig/leadgen-cli/internal/monitoring"
	"github.com/aiprodig/leadgen-cli/internal/research"
	"github.com/aiprodig/leadgen-cli/internal/scrape"
	"github.com/aiprodig/leadgen-cli/internal/store"
	"github.com/aiprodig/leadgen-cli/pkg/firecrawl"
	"github.com/aiprodig/leadgen-cli/pkg/jina"
)

// appEnv holds the store, clients and services shared by the analyze,
// discover, workflow, schedule and serve commands. Everything is built once
// per process and injected.
type appEnv struct {
	Store      store.Store
	Searcher   research.Searcher // nil when no search credential is configured
	Enricher   *enrich.Enricher
	Discoverer *discovery.Discoverer
	Workflow   discovery.WorkflowRunner
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp validates the configuration for mode, opens the store and wires
// every service. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	searcher, err := research.NewSearcher(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Searcher = searcher
	if searcher == nil {
		zap.L().Warn("no search credential configured, research and discovery disabled",
			zap.String("provider", cfg.Research.Provider),
		)
	}

	inferer, err := inference.New(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	profile, err := enrich.LoadProfile(cfg.Enrich.ProfilePath)
	if err != nil {
		env.Close()
		return nil, err
	}

	opts := []enrich.Option{
		enrich.WithProfile(profile),
		enrich.WithExtractor(scrape.Extractor{MaxTextChars: cfg.Scrape.MaxTextChars}),
	}
	if searcher != nil {
		opts = append(opts, enrich.WithResearcher(research.NewResearcher(searcher,
			research.WithMaxResults(cfg.Research.MaxResults),
			research.WithMaxChars(cfg.Research.MaxChars),
			research.WithTimeout(time.Duration(cfg.Research.TimeoutSecs)*time.Second),
			research.WithExtraTerms(cfg.Research.ExtraTerms),
		)))
	}
	env.Enricher = enrich.New(st, initFetcher(), inferer, opts...)

	env.Discoverer = discovery.NewDiscoverer(searcher, st,
		discovery.WithDefaultQuery(cfg.Discovery.DefaultQuery),
		discovery.WithCount(cfg.Discovery.ResultCount),
	)
	env.Workflow = discovery.NewWorkflow(searcher, st, env.Enricher, cfg.Discovery.Niches,
		discovery.WithLimit(cfg.Discovery.WorkflowLimit),
	)
	if cfg.Monitoring.WebhookURL != "" {
		env.Workflow = monitoring.Watch(env.Workflow, monitoring.NewAlerter(cfg.Monitoring))
	}

	zap.L().Debug("app initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("inference", inferer.Provider()),
		zap.String("scrape", cfg.Scrape.Provider),
		zap.Bool("research", searcher != nil),
		zap.Bool("alerts", cfg.Monitoring.WebhookURL != ""),
	)
	return env, nil
}

// initFetcher builds the site fetcher selected by scrape.provider.
func initFetcher() scrape.Fetcher {
	timeout := time.Duration(cfg.Scrape.TimeoutSecs) * time.Second

	switch cfg.Scrape.Provider {
	case "jina":
		var opts []jina.Option
		if cfg.Jina.BaseURL != "" {
			opts = append(opts, jina.WithBaseURL(cfg.Jina.BaseURL))
		}
		return scrape.NewJinaFetcher(jina.NewClient(cfg.Jina.Key, opts...), timeout)
	case "firecrawl":
		var opts []firecrawl.Option
		if cfg.Firecrawl.BaseURL != "" {
			opts = append(opts, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
		}
		return scrape.NewFirecrawlFetcher(firecrawl.NewClient(cfg.Firecrawl.Key, opts...), timeout)
	}

	opts := []scrape.FetcherOption{
		scrape.WithTimeout(timeout),
		scrape.WithMaxBodyBytes(cfg.Scrape.MaxBodyBytes),
	}
	if cfg.Scrape.UserAgent != "" {
		opts = append(opts, scrape.WithUserAgent(cfg.Scrape.UserAgent))
	}
	return scrape.NewHTTPFetcher(opts...)
}
