package usage

import "llmgate/internal/config"

// ComputeCost prices a request from the model's per-1K-token rates.
func ComputeCost(m *config.ModelCfg, promptTokens, completionTokens int64) float64 {
	if m == nil {
		return 0
	}
	return float64(promptTokens)/1000*m.PricePromptPer1K +
		float64(completionTokens)/1000*m.PriceCompletionPer1K
}
