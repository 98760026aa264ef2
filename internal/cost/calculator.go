// Package cost estimates the USD cost of inference and reader calls for
// cost attribution logs.
package cost

// Rates holds pricing per model id plus the reader rate.
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
	Jina   JinaRate             `yaml:"jina" mapstructure:"jina"`
}

// ModelRate holds per-model token pricing (per million tokens) and an
// optional flat fee per request.
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
	PerRequest    float64 `yaml:"per_request" mapstructure:"per_request"`
}

// JinaRate holds Jina Reader pricing.
type JinaRate struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// Usage is the token consumption of one model call.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Known reports whether model has a rate.
func (c *Calculator) Known(model string) bool {
	_, ok := c.rates.Models[model]
	return ok
}

// Model computes the cost of one call to model. Unknown models cost 0.
func (c *Calculator) Model(model string, u Usage) float64 {
	rate, ok := c.rates.Models[model]
	if !ok {
		return 0
	}

	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(u.CacheWriteTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheReadTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost + rate.PerRequest
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	claude := func(in, out float64) ModelRate {
		return ModelRate{Input: in, Output: out, CacheWriteMul: 1.25, CacheReadMul: 0.1}
	}
	return Rates{
		Models: map[string]ModelRate{
			"claude-3-5-haiku-20241022":  claude(0.80, 4.00),
			"claude-haiku-4-5-20251001":  claude(1.00, 5.00),
			"claude-sonnet-4-5-20250929": claude(3.00, 15.00),
			"sonar":                      {Input: 1.00, Output: 1.00, PerRequest: 0.005},
			"sonar-pro":                  {Input: 3.00, Output: 15.00, PerRequest: 0.006},
			"gemini-1.5-flash":           {Input: 0.075, Output: 0.30},
			"gemini-2.0-flash":           {Input: 0.10, Output: 0.40},
		},
		Jina: JinaRate{PerMTok: 0.02},
	}
}
