package upstream

import (
	"strings"

	"llmgate/internal/constants"
	"llmgate/internal/forward"

	"github.com/tidwall/gjson"
)

// Dialect adapts one upstream API surface: URL layout, auth headers, and
// usage extraction.
type Dialect interface {
	Provider() forward.Provider
	// BuildURL produces the full request URL for an endpoint base.
	BuildURL(endpoint, model string, stream bool) string
	// BuildHeaders returns the auth headers for the key.
	BuildHeaders(apiKey string, stream bool) map[string]string
	// ExtractUsage pulls token counts from a response body or stream event.
	ExtractUsage(body []byte) forward.TokenUsage
	// EstimateRequestTokens sizes the outgoing prompt when the upstream
	// reports no usage.
	EstimateRequestTokens(body []byte) int64
}

// DialectFor returns the adapter for a provider dialect.
func DialectFor(p forward.Provider) Dialect {
	switch p {
	case forward.ProviderAnthropic:
		return anthropicDialect{}
	case forward.ProviderGemini:
		return geminiDialect{}
	default:
		return openaiDialect{}
	}
}

type openaiDialect struct{}

func (openaiDialect) Provider() forward.Provider { return forward.ProviderOpenAI }

// BuildURL appends /chat/completions with no version segment, so endpoints
// already carrying /v1, /v4 and the like keep working.
func (openaiDialect) BuildURL(endpoint, model string, stream bool) string {
	base := strings.TrimRight(endpoint, "/")
	if strings.Contains(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func (openaiDialect) BuildHeaders(apiKey string, stream bool) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if apiKey != "" {
		h["Authorization"] = "Bearer " + apiKey
	}
	return h
}

func (openaiDialect) ExtractUsage(body []byte) forward.TokenUsage {
	u := gjson.GetBytes(body, "usage")
	if !u.Exists() {
		return forward.TokenUsage{}
	}
	return forward.TokenUsage{
		PromptTokens:     u.Get("prompt_tokens").Int(),
		CompletionTokens: u.Get("completion_tokens").Int(),
	}
}

func (openaiDialect) EstimateRequestTokens(body []byte) int64 {
	chars := int64(0)
	gjson.GetBytes(body, "messages").ForEach(func(_, msg gjson.Result) bool {
		chars += contentChars(msg.Get("content"))
		return true
	})
	return forward.EstimateTokensFromChars(chars)
}

type anthropicDialect struct{}

func (anthropicDialect) Provider() forward.Provider { return forward.ProviderAnthropic }

func (anthropicDialect) BuildURL(endpoint, model string, stream bool) string {
	base := strings.TrimRight(endpoint, "/")
	if strings.Contains(base, "/messages") {
		return base
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/messages"
	}
	return base + "/v1/messages"
}

func (anthropicDialect) BuildHeaders(apiKey string, stream bool) map[string]string {
	h := map[string]string{
		"Content-Type":      "application/json",
		"anthropic-version": constants.AnthropicVersion,
	}
	if apiKey != "" {
		h["x-api-key"] = apiKey
	}
	if stream {
		h["Accept"] = "text/event-stream"
		h["Accept-Encoding"] = "identity"
	}
	return h
}

func (anthropicDialect) ExtractUsage(body []byte) forward.TokenUsage {
	u := gjson.GetBytes(body, "usage")
	if !u.Exists() {
		// stream message_start carries usage under message.usage
		u = gjson.GetBytes(body, "message.usage")
	}
	if !u.Exists() {
		return forward.TokenUsage{}
	}
	prompt := u.Get("input_tokens").Int() +
		u.Get("cache_creation_input_tokens").Int() +
		u.Get("cache_read_input_tokens").Int()
	return forward.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: u.Get("output_tokens").Int(),
	}
}

func (anthropicDialect) EstimateRequestTokens(body []byte) int64 {
	chars := contentChars(gjson.GetBytes(body, "system"))
	gjson.GetBytes(body, "messages").ForEach(func(_, msg gjson.Result) bool {
		chars += contentChars(msg.Get("content"))
		return true
	})
	return forward.EstimateTokensFromChars(chars)
}

type geminiDialect struct {
	// version is the API path segment; empty means v1beta.
	version string
}

// GeminiDialect returns the Gemini adapter pinned to an API version
// (v1 or v1beta), usually taken from the inbound path.
func GeminiDialect(version string) Dialect { return geminiDialect{version: version} }

func (geminiDialect) Provider() forward.Provider { return forward.ProviderGemini }

func (d geminiDialect) BuildURL(endpoint, model string, stream bool) string {
	base := strings.TrimRight(endpoint, "/")
	action := ":generateContent"
	if stream {
		action = ":streamGenerateContent?alt=sse"
	}
	version := d.version
	if version == "" {
		version = "v1beta"
	}
	if !strings.Contains(base, "/v1beta") && !strings.Contains(base, "/v1alpha") &&
		!strings.HasSuffix(base, "/v1") {
		base += "/" + version
	}
	return base + "/models/" + model + action
}

func (geminiDialect) BuildHeaders(apiKey string, stream bool) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if apiKey != "" {
		h["x-goog-api-key"] = apiKey
	}
	return h
}

func (geminiDialect) ExtractUsage(body []byte) forward.TokenUsage {
	u := gjson.GetBytes(body, "usageMetadata")
	if !u.Exists() {
		return forward.TokenUsage{}
	}
	return forward.TokenUsage{
		PromptTokens:     u.Get("promptTokenCount").Int() + u.Get("cachedContentTokenCount").Int(),
		CompletionTokens: u.Get("candidatesTokenCount").Int(),
	}
}

func (geminiDialect) EstimateRequestTokens(body []byte) int64 {
	chars := int64(0)
	gjson.GetBytes(body, "systemInstruction.parts").ForEach(func(_, part gjson.Result) bool {
		chars += int64(len(part.Get("text").String()))
		return true
	})
	gjson.GetBytes(body, "contents").ForEach(func(_, msg gjson.Result) bool {
		msg.Get("parts").ForEach(func(_, part gjson.Result) bool {
			chars += int64(len(part.Get("text").String()))
			return true
		})
		return true
	})
	return forward.EstimateTokensFromChars(chars)
}

// contentChars counts the text characters in a string-or-blocks content value.
func contentChars(content gjson.Result) int64 {
	switch content.Type {
	case gjson.String:
		return int64(len(content.String()))
	case gjson.JSON:
		chars := int64(0)
		if content.IsArray() {
			content.ForEach(func(_, block gjson.Result) bool {
				if block.Type == gjson.String {
					chars += int64(len(block.String()))
				} else {
					chars += int64(len(block.Get("text").String()))
				}
				return true
			})
		}
		return chars
	}
	return 0
}
