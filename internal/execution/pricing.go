package execution

import "github.com/libranvoice/batchrunner/internal/domain"

// ModelPricing holds per-1,000-token rates for one model, in USD.
type ModelPricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// PriceTable maps model identifiers to their rates. Unknown models fall
// back to the baseline tier. The table is fixed at construction time.
type PriceTable map[string]ModelPricing

// baselinePricing is the tier applied when a model is not in the table.
var baselinePricing = ModelPricing{PromptPer1K: 0.0005, CompletionPer1K: 0.0015}

// DefaultPriceTable returns the static per-model price table.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		"gpt-4":         {PromptPer1K: 0.03, CompletionPer1K: 0.06},
		"gpt-4-turbo":   {PromptPer1K: 0.01, CompletionPer1K: 0.03},
		"gpt-4o":        {PromptPer1K: 0.0025, CompletionPer1K: 0.01},
		"gpt-4o-mini":   {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
		"gpt-3.5-turbo": {PromptPer1K: 0.0005, CompletionPer1K: 0.0015},
	}
}

// CostFor estimates the cost of the given usage against the table:
// prompt and completion tokens are each billed at their per-1,000 rate.
func (t PriceTable) CostFor(model string, usage domain.Usage) float64 {
	pricing, ok := t[model]
	if !ok {
		pricing = baselinePricing
	}
	return float64(usage.PromptTokens)/1000*pricing.PromptPer1K +
		float64(usage.CompletionTokens)/1000*pricing.CompletionPer1K
}
