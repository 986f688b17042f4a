package forward

import "strings"

// Provider identifies an upstream API dialect.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// ParseProvider normalizes a provider name. "claude" is accepted as an
// alias for anthropic. Unknown names default to openai.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anthropic", "claude":
		return ProviderAnthropic
	case "gemini":
		return ProviderGemini
	default:
		return ProviderOpenAI
	}
}

func (p Provider) String() string { return string(p) }
