package translator

import (
	"strconv"
	"time"

	"llmgate/internal/forward"

	"github.com/tidwall/gjson"
)

// GeminiToOpenAIStream converts Gemini streamGenerateContent events into
// OpenAI chat completion chunks.
type GeminiToOpenAIStream struct {
	Model string

	id       string
	created  int64
	sentRole bool
	finished bool
	usage    forward.TokenUsage
	callSeq  int
}

// Usage returns the accumulated token usage.
func (s *GeminiToOpenAIStream) Usage() forward.TokenUsage { return s.usage }

// Finished reports whether a finish_reason chunk was emitted.
func (s *GeminiToOpenAIStream) Finished() bool { return s.finished }

func (s *GeminiToOpenAIStream) ensureIdentity() {
	if s.id == "" {
		s.id = NewGeminiChatCompletionID()
	}
	if s.created == 0 {
		s.created = time.Now().Unix()
	}
}

func (s *GeminiToOpenAIStream) chunk(delta map[string]interface{}, finish interface{}, usage map[string]interface{}) []byte {
	s.ensureIdentity()
	payload := map[string]interface{}{
		"id":      s.id,
		"object":  "chat.completion.chunk",
		"created": s.created,
		"model":   s.Model,
		"choices": []interface{}{
			map[string]interface{}{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			},
		},
	}
	if usage != nil {
		payload["usage"] = usage
	}
	return openaiChunk(payload)
}

// Feed consumes one parsed Gemini stream event and returns framed OpenAI
// chunks.
func (s *GeminiToOpenAIStream) Feed(event []byte) [][]byte {
	src := gjson.ParseBytes(event)
	var chunks [][]byte

	if meta := src.Get("usageMetadata"); meta.Exists() {
		prompt := meta.Get("promptTokenCount").Int() + meta.Get("cachedContentTokenCount").Int()
		completion := meta.Get("candidatesTokenCount").Int()
		if prompt > 0 {
			s.usage.Merge(forward.TokenUsage{PromptTokens: prompt})
		}
		if completion > 0 {
			s.usage.Merge(forward.TokenUsage{CompletionTokens: completion})
		}
	}

	for _, candidate := range src.Get("candidates").Array() {
		if !s.sentRole {
			s.sentRole = true
			chunks = append(chunks, s.chunk(map[string]interface{}{"role": "assistant", "content": ""}, nil, nil))
		}

		for _, part := range candidate.Get("content.parts").Array() {
			switch {
			case part.Get("thought").Bool():
				chunks = append(chunks, s.chunk(map[string]interface{}{"reasoning_content": part.Get("text").String()}, nil, nil))
			case part.Get("text").Exists():
				chunks = append(chunks, s.chunk(map[string]interface{}{"content": part.Get("text").String()}, nil, nil))
			case part.Get("functionCall").Exists():
				fn := part.Get("functionCall")
				args := "{}"
				if a := fn.Get("args"); a.Exists() {
					args = a.Raw
				}
				chunks = append(chunks, s.chunk(map[string]interface{}{
					"tool_calls": []interface{}{
						map[string]interface{}{
							"index": 0,
							"id":    newGeminiCallID(s.callSeq),
							"type":  "function",
							"function": map[string]interface{}{
								"name":      fn.Get("name").String(),
								"arguments": args,
							},
						},
					},
				}, nil, nil))
				s.callSeq++
			}
		}

		if fr := candidate.Get("finishReason"); fr.Exists() && fr.String() != "" {
			s.finished = true
			chunks = append(chunks, s.chunk(map[string]interface{}{}, MapGeminiFinishReason(fr.String()), map[string]interface{}{
				"prompt_tokens":     s.usage.PromptTokens,
				"completion_tokens": s.usage.CompletionTokens,
				"total_tokens":      s.usage.Total(),
			}))
		}
	}
	return chunks
}

func newGeminiCallID(seq int) string {
	return "gemini_call_" + strconv.Itoa(seq)
}

// OpenAIToGeminiStream converts OpenAI chat completion chunks into Gemini
// stream events. Gemini streams carry bare data lines without event names.
type OpenAIToGeminiStream struct {
	usage forward.TokenUsage
}

// Usage returns the accumulated token usage.
func (s *OpenAIToGeminiStream) Usage() forward.TokenUsage { return s.usage }

// Feed consumes one parsed OpenAI chunk and returns framed Gemini events.
// Chunks carrying neither parts, finish reason, nor usage are skipped.
func (s *OpenAIToGeminiStream) Feed(chunk []byte) [][]byte {
	src := gjson.ParseBytes(chunk)

	if u := src.Get("usage"); u.Exists() {
		s.usage.Merge(forward.TokenUsage{
			PromptTokens:     u.Get("prompt_tokens").Int(),
			CompletionTokens: u.Get("completion_tokens").Int(),
		})
	}

	choice := src.Get("choices.0")
	delta := choice.Get("delta")

	var parts []interface{}
	if rc := delta.Get("reasoning_content"); rc.Exists() && rc.String() != "" {
		parts = append(parts, map[string]interface{}{"text": rc.String(), "thought": true})
	}
	if content := delta.Get("content"); content.Exists() && content.String() != "" {
		parts = append(parts, map[string]interface{}{"text": content.String()})
	}
	for _, tc := range delta.Get("tool_calls").Array() {
		if tc.Get("function.name").String() == "" && tc.Get("function.arguments").String() == "" {
			continue
		}
		parts = append(parts, toolCallToFunctionCall(tc))
	}

	finish := choice.Get("finish_reason")
	hasUsage := src.Get("usage").Exists()
	if len(parts) == 0 && (!finish.Exists() || finish.String() == "") && !hasUsage {
		return nil
	}
	if len(parts) == 0 {
		parts = append(parts, map[string]interface{}{"text": ""})
	}

	candidate := map[string]interface{}{
		"index":   0,
		"content": map[string]interface{}{"role": "model", "parts": parts},
	}
	if finish.Exists() && finish.String() != "" {
		candidate["finishReason"] = MapOpenAIFinishToGemini(finish.String())
	}

	payload := map[string]interface{}{
		"candidates": []interface{}{candidate},
	}
	if s.usage.PromptTokens > 0 || s.usage.CompletionTokens > 0 {
		payload["usageMetadata"] = map[string]interface{}{
			"promptTokenCount":     s.usage.PromptTokens,
			"candidatesTokenCount": s.usage.CompletionTokens,
			"totalTokenCount":      s.usage.Total(),
		}
	}
	return [][]byte{openaiChunk(payload)}
}
