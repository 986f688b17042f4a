package forward

import "math"

// TokenUsage accumulates prompt/completion token counts across a request.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Total returns the combined token count.
func (u TokenUsage) Total() int64 { return u.PromptTokens + u.CompletionTokens }

// Merge keeps the larger of each side; streaming events report usage
// cumulatively so the latest value wins.
func (u *TokenUsage) Merge(other TokenUsage) {
	if other.PromptTokens > u.PromptTokens {
		u.PromptTokens = other.PromptTokens
	}
	if other.CompletionTokens > u.CompletionTokens {
		u.CompletionTokens = other.CompletionTokens
	}
}

// charsPerToken is the crude estimation ratio used when upstreams omit usage.
const charsPerToken = 3.5

// EstimateTokens approximates the token count of a text blob.
func EstimateTokens(text string) int64 {
	return EstimateTokensFromChars(int64(len(text)))
}

// EstimateTokensFromChars approximates the token count from a char count.
func EstimateTokensFromChars(chars int64) int64 {
	if chars <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(chars) / charsPerToken))
}
