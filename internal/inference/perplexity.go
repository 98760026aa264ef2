package inference

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/aiprodig/leadgen-cli/internal/cost"
	"github.com/aiprodig/leadgen-cli/internal/model"
	"github.com/aiprodig/leadgen-cli/pkg/perplexity"
)

// analysisSchema constrains structured-output capable providers to the
// AIAnalysis shape.
var analysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"company_name":   map[string]any{"type": "string"},
		"tech_stack":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"opportunities":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"email_draft":    map[string]any{"type": "string"},
		"research_notes": map[string]any{"type": "string"},
	},
}

// Perplexity infers with the Perplexity chat-completions API.
type Perplexity struct {
	client perplexity.Client
	apiKey string
	opts   Options
}

// NewPerplexity returns a Perplexity strategy.
func NewPerplexity(client perplexity.Client, apiKey string, opts Options) *Perplexity {
	return &Perplexity{client: client, apiKey: apiKey, opts: opts}
}

func (p *Perplexity) Provider() string { return ProviderPerplexity }

func (p *Perplexity) Ready() error {
	if p.apiKey == "" || p.client == nil {
		return missingCredential(ProviderPerplexity)
	}
	return nil
}

func (p *Perplexity) Infer(ctx context.Context, pr Prompt) (*model.AIAnalysis, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, p.opts.Timeout)
	defer cancel()

	maxTokens := int(p.opts.maxTokens())
	msgs := make([]perplexity.Message, 0, 2)
	if pr.System != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: pr.System})
	}
	msgs = append(msgs, perplexity.Message{Role: "user", Content: pr.User})

	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:       p.opts.Model,
		Messages:    msgs,
		Temperature: p.opts.Temperature,
		MaxTokens:   &maxTokens,
		ResponseFormat: &perplexity.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &perplexity.JSONSchema{Schema: analysisSchema},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "inference: perplexity")
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = p.opts.Model
	}
	logUsage(ProviderPerplexity, modelName, cost.Usage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	})

	analysis, err := ParseAnalysis(resp.Content())
	if err != nil {
		return nil, err
	}
	return finish(analysis, ProviderPerplexity, modelName), nil
}
