package inference

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/aiprodig/leadgen-cli/internal/cost"
	"github.com/aiprodig/leadgen-cli/internal/model"
	"github.com/aiprodig/leadgen-cli/pkg/gemini"
)

// Gemini infers with the Gemini generateContent API in JSON mode.
type Gemini struct {
	client gemini.Client
	apiKey string
	opts   Options
}

// NewGemini returns a Gemini strategy.
func NewGemini(client gemini.Client, apiKey string, opts Options) *Gemini {
	return &Gemini{client: client, apiKey: apiKey, opts: opts}
}

func (g *Gemini) Provider() string { return ProviderGemini }

func (g *Gemini) Ready() error {
	if g.apiKey == "" || g.client == nil {
		return missingCredential(ProviderGemini)
	}
	return nil
}

func (g *Gemini) Infer(ctx context.Context, p Prompt) (*model.AIAnalysis, error) {
	if err := g.Ready(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	req := gemini.GenerateRequest{
		Model:    g.opts.Model,
		Contents: []gemini.Content{gemini.TextContent("user", p.User)},
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:      g.opts.Temperature,
			MaxOutputTokens:  int(g.opts.maxTokens()),
			ResponseMimeType: "application/json",
		},
	}
	if p.System != "" {
		sys := gemini.TextContent("", p.System)
		req.SystemInstruction = &sys
	}

	resp, err := g.client.GenerateContent(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "inference: gemini")
	}

	modelName := resp.ModelVersion
	if modelName == "" {
		modelName = g.opts.Model
	}
	logUsage(ProviderGemini, modelName, cost.Usage{
		InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
	})

	analysis, err := ParseAnalysis(resp.Text())
	if err != nil {
		return nil, err
	}
	return finish(analysis, ProviderGemini, modelName), nil
}
