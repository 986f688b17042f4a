package translator

import "context"

// Format represents an API dialect.
type Format string

const (
	FormatOpenAI    Format = "openai"
	FormatAnthropic Format = "anthropic"
	FormatGemini    Format = "gemini"
)

// FromString converts a string to Format. "claude" aliases anthropic;
// unknown values default to openai.
func FromString(s string) Format {
	switch s {
	case "anthropic", "claude":
		return FormatAnthropic
	case "gemini":
		return FormatGemini
	default:
		return FormatOpenAI
	}
}

func (f Format) String() string { return string(f) }

// RequestTransform converts a request payload between dialects.
type RequestTransform func(model string, rawJSON []byte, stream bool) []byte

// ResponseTransform converts a non-streaming response between dialects.
type ResponseTransform func(ctx context.Context, model string, responseBody []byte) ([]byte, error)

// TranslatorConfig holds the transforms registered between two dialects.
type TranslatorConfig struct {
	RequestTransform  RequestTransform
	ResponseTransform ResponseTransform
}
