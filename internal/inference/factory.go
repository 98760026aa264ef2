package inference

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/aiprodig/leadgen-cli/internal/config"
	"github.com/aiprodig/leadgen-cli/pkg/anthropic"
	"github.com/aiprodig/leadgen-cli/pkg/gemini"
	"github.com/aiprodig/leadgen-cli/pkg/perplexity"
)

// New builds the strategy selected by cfg.Inference.Provider. A missing
// credential is not an error here; the returned Inferer reports it from
// Ready so the failure surfaces at time of use.
func New(cfg *config.Config) (Inferer, error) {
	opts := Options{
		MaxTokens: cfg.Inference.MaxTokens,
		Timeout:   time.Duration(cfg.Inference.TimeoutSecs) * time.Second,
	}

	switch cfg.Inference.Provider {
	case ProviderAnthropic, "":
		opts.Model = cfg.Anthropic.Model
		var client anthropic.Client
		if cfg.Anthropic.Key != "" {
			client = anthropic.NewClient(cfg.Anthropic.Key)
		}
		return NewAnthropic(client, cfg.Anthropic.Key, opts), nil

	case ProviderPerplexity:
		opts.Model = cfg.Perplexity.Model
		var client perplexity.Client
		if cfg.Perplexity.Key != "" {
			var popts []perplexity.Option
			if cfg.Perplexity.BaseURL != "" {
				popts = append(popts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
			}
			if cfg.Perplexity.Model != "" {
				popts = append(popts, perplexity.WithModel(cfg.Perplexity.Model))
			}
			client = perplexity.NewClient(cfg.Perplexity.Key, popts...)
		}
		return NewPerplexity(client, cfg.Perplexity.Key, opts), nil

	case ProviderGemini:
		opts.Model = cfg.Gemini.Model
		var client gemini.Client
		if cfg.Gemini.Key != "" {
			var gopts []gemini.Option
			if cfg.Gemini.BaseURL != "" {
				gopts = append(gopts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
			}
			if cfg.Gemini.Model != "" {
				gopts = append(gopts, gemini.WithModel(cfg.Gemini.Model))
			}
			client = gemini.NewClient(cfg.Gemini.Key, gopts...)
		}
		return NewGemini(client, cfg.Gemini.Key, opts), nil

	default:
		return nil, eris.Errorf("inference: unsupported provider %q", cfg.Inference.Provider)
	}
}
