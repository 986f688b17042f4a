package translator

import (
	"context"

	"llmgate/internal/forward"
)

func init() {
	Register(FormatAnthropic, FormatGemini, TranslatorConfig{
		RequestTransform:  AnthropicToGeminiRequest,
		ResponseTransform: AnthropicToGeminiResponse,
	})
	Register(FormatGemini, FormatAnthropic, TranslatorConfig{
		RequestTransform:  GeminiToAnthropicRequest,
		ResponseTransform: GeminiToAnthropicResponse,
	})
}

// The Anthropic and Gemini dialects have no direct pairing; both legs pivot
// through the OpenAI shape.

// AnthropicToGeminiRequest converts an Anthropic Messages request into a
// Gemini generateContent request.
func AnthropicToGeminiRequest(model string, rawJSON []byte, stream bool) []byte {
	return OpenAIToGeminiRequest(model, AnthropicToOpenAIRequest(model, rawJSON, stream), stream)
}

// GeminiToAnthropicRequest converts a Gemini generateContent request into an
// Anthropic Messages request.
func GeminiToAnthropicRequest(model string, rawJSON []byte, stream bool) []byte {
	return OpenAIToAnthropicRequest(model, GeminiToOpenAIRequest(model, rawJSON, stream), stream)
}

// GeminiToAnthropicResponse converts a Gemini response into an Anthropic
// Messages response.
func GeminiToAnthropicResponse(ctx context.Context, model string, responseBody []byte) ([]byte, error) {
	mid, err := GeminiToOpenAIResponse(ctx, model, responseBody)
	if err != nil {
		return nil, err
	}
	return OpenAIToAnthropicResponse(ctx, model, mid)
}

// AnthropicToGeminiResponse converts an Anthropic Messages response into a
// Gemini response.
func AnthropicToGeminiResponse(ctx context.Context, model string, responseBody []byte) ([]byte, error) {
	mid, err := AnthropicToOpenAIResponse(ctx, model, responseBody)
	if err != nil {
		return nil, err
	}
	return OpenAIToGeminiResponse(ctx, model, mid)
}

// GeminiToAnthropicStreamBridge chains the Gemini-to-OpenAI stream state
// into the OpenAI-to-Anthropic block state machine.
type GeminiToAnthropicStreamBridge struct {
	gem GeminiToOpenAIStream
	ant OpenAIToAnthropicStream
}

// NewGeminiToAnthropicStreamBridge builds the bridge for a model, seeding
// the message_start usage estimate.
func NewGeminiToAnthropicStreamBridge(model string, promptEstimate int64) *GeminiToAnthropicStreamBridge {
	return &GeminiToAnthropicStreamBridge{
		gem: GeminiToOpenAIStream{Model: model},
		ant: OpenAIToAnthropicStream{Model: model, PromptTokensEstimate: promptEstimate},
	}
}

// Feed consumes one parsed Gemini event and returns framed Anthropic events.
func (b *GeminiToAnthropicStreamBridge) Feed(event []byte) [][]byte {
	var out [][]byte
	for _, chunk := range b.gem.Feed(event) {
		if data, ok := stripDataFrame(chunk); ok {
			out = append(out, b.ant.Feed(data)...)
		}
	}
	return out
}

// Finish closes the Anthropic side if the Gemini stream ended silently.
func (b *GeminiToAnthropicStreamBridge) Finish() [][]byte {
	return b.ant.Finish()
}

// Usage returns the bridged token usage.
func (b *GeminiToAnthropicStreamBridge) Usage() forward.TokenUsage {
	u := b.gem.Usage()
	u.Merge(b.ant.Usage())
	return u
}

// AnthropicToGeminiStreamBridge chains the Anthropic-to-OpenAI stream state
// into the OpenAI-to-Gemini converter.
type AnthropicToGeminiStreamBridge struct {
	ant AnthropicToOpenAIStream
	gem OpenAIToGeminiStream
}

// NewAnthropicToGeminiStreamBridge builds the bridge for a model.
func NewAnthropicToGeminiStreamBridge(model string) *AnthropicToGeminiStreamBridge {
	return &AnthropicToGeminiStreamBridge{ant: AnthropicToOpenAIStream{Model: model}}
}

// Feed consumes one parsed Anthropic event and returns framed Gemini events.
func (b *AnthropicToGeminiStreamBridge) Feed(event []byte) [][]byte {
	var out [][]byte
	for _, chunk := range b.ant.Feed(event) {
		if data, ok := stripDataFrame(chunk); ok {
			out = append(out, b.gem.Feed(data)...)
		}
	}
	return out
}

// Usage returns the bridged token usage.
func (b *AnthropicToGeminiStreamBridge) Usage() forward.TokenUsage {
	u := b.ant.Usage()
	u.Merge(b.gem.Usage())
	return u
}

// stripDataFrame removes the "data: ...\n\n" SSE framing from a chunk so it
// can be re-fed into another state machine.
func stripDataFrame(framed []byte) ([]byte, bool) {
	const prefix = "data: "
	if len(framed) < len(prefix) || string(framed[:len(prefix)]) != prefix {
		return nil, false
	}
	data := framed[len(prefix):]
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	return data, true
}
