package inference

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/aiprodig/leadgen-cli/internal/cost"
	"github.com/aiprodig/leadgen-cli/internal/model"
	"github.com/aiprodig/leadgen-cli/pkg/anthropic"
)

// systemCacheTTL keeps the shared system prompt warm across a workflow batch.
const systemCacheTTL = "5m"

// Anthropic infers with the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	apiKey string
	opts   Options
}

// NewAnthropic returns an Anthropic strategy. An empty apiKey makes Ready
// fail; client may then be nil.
func NewAnthropic(client anthropic.Client, apiKey string, opts Options) *Anthropic {
	return &Anthropic{client: client, apiKey: apiKey, opts: opts}
}

func (a *Anthropic) Provider() string { return ProviderAnthropic }

func (a *Anthropic) Ready() error {
	if a.apiKey == "" || a.client == nil {
		return missingCredential(ProviderAnthropic)
	}
	return nil
}

func (a *Anthropic) Infer(ctx context.Context, p Prompt) (*model.AIAnalysis, error) {
	if err := a.Ready(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, a.opts.Timeout)
	defer cancel()

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.maxTokens(),
		System:      anthropic.BuildCachedSystemBlocks(p.System, systemCacheTTL),
		Messages:    []anthropic.Message{{Role: "user", Content: p.User}},
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		return nil, eris.Wrap(err, "inference: anthropic")
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = a.opts.Model
	}
	logUsage(ProviderAnthropic, modelName, cost.Usage{
		InputTokens:      resp.Usage.InputTokens,
		OutputTokens:     resp.Usage.OutputTokens,
		CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
		CacheReadTokens:  resp.Usage.CacheReadInputTokens,
	})

	analysis, err := ParseAnalysis(resp.Text())
	if err != nil {
		return nil, err
	}
	return finish(analysis, ProviderAnthropic, modelName), nil
}
