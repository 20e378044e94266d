// Package cost prices Claude token usage for extraction runs.
package cost

import (
	"github.com/sells-group/bid-cli/internal/config"
	"github.com/sells-group/bid-cli/internal/model"
)

// Rates holds per-model pricing keyed by model ID.
type Rates struct {
	Anthropic map[string]ModelRate
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64
	Output        float64
	CacheWriteMul float64
	CacheReadMul  float64
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of usage billed against model. Unknown models
// cost nothing.
func (c *Calculator) Claude(modelID string, usage model.TokenUsage) float64 {
	rate, ok := c.rates.Anthropic[modelID]
	if !ok {
		return 0
	}

	perTok := rate.Input / 1e6
	in := float64(usage.InputTokens) * perTok
	out := float64(usage.OutputTokens) * rate.Output / 1e6
	cw := float64(usage.CacheCreationTokens) * perTok * rate.CacheWriteMul
	cr := float64(usage.CacheReadTokens) * perTok * rate.CacheReadMul
	return in + out + cw + cr
}

// Known reports whether the calculator has a rate for modelID.
func (c *Calculator) Known(modelID string) bool {
	_, ok := c.rates.Anthropic[modelID]
	return ok
}

// DefaultRates returns the built-in Claude pricing.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-1-20250805": {
				Input: 15.00, Output: 75.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
	}
}

// RatesFromConfig overlays configured pricing on DefaultRates. A
// configured model replaces the default entry for that model entirely.
func RatesFromConfig(p config.PricingConfig) Rates {
	rates := DefaultRates()
	for id, mp := range p.Anthropic {
		rates.Anthropic[id] = ModelRate{
			Input:         mp.Input,
			Output:        mp.Output,
			CacheWriteMul: mp.CacheWriteMul,
			CacheReadMul:  mp.CacheReadMul,
		}
	}
	return rates
}
