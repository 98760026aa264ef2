// Package inference turns an enrichment prompt into a structured lead
// analysis using a hosted language model. Providers are interchangeable
// strategies behind the Inferer interface.
package inference

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiprodig/leadgen-cli/internal/cost"
	"github.com/aiprodig/leadgen-cli/internal/model"
)

// Provider names accepted by inference.provider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
	ProviderGemini     = "gemini"
)

var (
	// ErrMissingCredential is returned before any network call when the
	// selected provider has no API key configured.
	ErrMissingCredential = eris.New("inference: missing credential")

	// ErrInvalidResponse is returned when the model output cannot be parsed
	// as an analysis object.
	ErrInvalidResponse = eris.New("invalid inference response format")
)

// Prompt is a single inference request: a fixed system instruction and the
// per-lead user message.
type Prompt struct {
	System string
	User   string
}

// Inferer produces an AIAnalysis from a prompt. Each Infer call issues
// exactly one provider request.
type Inferer interface {
	Infer(ctx context.Context, p Prompt) (*model.AIAnalysis, error)
	// Provider returns the provider name recorded on the analysis.
	Provider() string
	// Ready reports ErrMissingCredential when the provider cannot be called.
	Ready() error
}

// Options are the settings shared by every provider strategy.
type Options struct {
	Model       string
	MaxTokens   int64
	Timeout     time.Duration
	Temperature *float64
}

const defaultMaxTokens = 2048

func (o Options) maxTokens() int64 {
	if o.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return o.MaxTokens
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func missingCredential(provider string) error {
	return eris.Wrapf(ErrMissingCredential, "%s api key not configured", provider)
}

// ParseAnalysis decodes model output into an AIAnalysis. Markdown code
// fences and prose around the JSON object are tolerated; anything that does
// not decode to a JSON object yields ErrInvalidResponse.
func ParseAnalysis(text string) (*model.AIAnalysis, error) {
	cleaned := cleanJSON(text)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, eris.Wrap(ErrInvalidResponse, "no json object in response")
	}

	var a model.AIAnalysis
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		return nil, eris.Wrapf(ErrInvalidResponse, "decode: %v", err)
	}
	return &a, nil
}

// cleanJSON strips markdown fences and extracts the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// costs prices every call for the cost attribution log line.
var costs = cost.NewCalculator(cost.DefaultRates())

// logUsage records token counts and the estimated cost of one call.
func logUsage(provider, model string, u cost.Usage) {
	zap.L().Info("cost attribution",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.String("phase", "enrich"),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheWriteTokens),
		zap.Int64("cache_read_tokens", u.CacheReadTokens),
		zap.Float64("estimated_cost_usd", costs.Model(model, u)),
	)
}

// finish stamps audit fields on a parsed analysis.
func finish(a *model.AIAnalysis, provider, modelName string) *model.AIAnalysis {
	a.Provider = provider
	a.Model = modelName
	return a
}
