package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// GeminiToOpenAIResponse converts a non-streaming Gemini response into an
// OpenAI chat completion.
func GeminiToOpenAIResponse(ctx context.Context, model string, responseBody []byte) ([]byte, error) {
	src := gjson.ParseBytes(responseBody)
	if src.Get("error").Exists() {
		return responseBody, nil
	}

	var choices []interface{}
	for idx, candidate := range src.Get("candidates").Array() {
		var thoughts []string
		var sb strings.Builder
		var toolCalls []interface{}

		for _, part := range candidate.Get("content.parts").Array() {
			switch {
			case part.Get("thought").Bool():
				thoughts = append(thoughts, part.Get("text").String())
			case part.Get("text").Exists():
				sb.WriteString(part.Get("text").String())
			case part.Get("functionCall").Exists():
				fn := part.Get("functionCall")
				args := "{}"
				if a := fn.Get("args"); a.Exists() {
					args = a.Raw
				}
				toolCalls = append(toolCalls, map[string]interface{}{
					"id":   fmt.Sprintf("gemini_call_%d", len(toolCalls)),
					"type": "function",
					"function": map[string]interface{}{
						"name":      fn.Get("name").String(),
						"arguments": args,
					},
				})
			}
		}

		message := map[string]interface{}{
			"role":    "assistant",
			"content": sb.String(),
		}
		if len(thoughts) > 0 {
			message["reasoning_content"] = strings.Join(thoughts, "\n")
		}

		finish := MapGeminiFinishReason(candidate.Get("finishReason").String())
		if len(toolCalls) > 0 {
			message["tool_calls"] = toolCalls
			finish = "tool_calls"
		}

		choices = append(choices, map[string]interface{}{
			"index":         idx,
			"message":       message,
			"finish_reason": finish,
		})
	}

	prompt := src.Get("usageMetadata.promptTokenCount").Int() +
		src.Get("usageMetadata.cachedContentTokenCount").Int()
	completion := src.Get("usageMetadata.candidatesTokenCount").Int()

	out := map[string]interface{}{
		"id":      NewGeminiChatCompletionID(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": choices,
		"usage": map[string]interface{}{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	}
	return json.Marshal(out)
}

// OpenAIToGeminiResponse converts a non-streaming OpenAI chat completion
// into a Gemini generateContent response.
func OpenAIToGeminiResponse(ctx context.Context, model string, responseBody []byte) ([]byte, error) {
	src := gjson.ParseBytes(responseBody)
	if src.Get("error").Exists() {
		return responseBody, nil
	}

	var candidates []interface{}
	for idx, choice := range src.Get("choices").Array() {
		msg := choice.Get("message")
		if !msg.Exists() {
			msg = choice.Get("delta")
		}

		var parts []interface{}
		if rc := msg.Get("reasoning_content"); rc.Exists() && rc.String() != "" {
			parts = append(parts, map[string]interface{}{"text": rc.String(), "thought": true})
		}
		if content := msg.Get("content"); content.Exists() && content.String() != "" {
			parts = append(parts, map[string]interface{}{"text": content.String()})
		}
		for _, tc := range msg.Get("tool_calls").Array() {
			parts = append(parts, toolCallToFunctionCall(tc))
		}
		if len(parts) == 0 {
			parts = append(parts, map[string]interface{}{"text": ""})
		}

		candidate := map[string]interface{}{
			"index":   idx,
			"content": map[string]interface{}{"role": "model", "parts": parts},
		}
		if fr := choice.Get("finish_reason"); fr.Exists() && fr.String() != "" {
			candidate["finishReason"] = MapOpenAIFinishToGemini(fr.String())
		}
		candidates = append(candidates, candidate)
	}

	prompt := src.Get("usage.prompt_tokens").Int()
	completion := src.Get("usage.completion_tokens").Int()

	out := map[string]interface{}{
		"candidates":   candidates,
		"modelVersion": model,
		"usageMetadata": map[string]interface{}{
			"promptTokenCount":     prompt,
			"candidatesTokenCount": completion,
			"totalTokenCount":      prompt + completion,
		},
	}
	return json.Marshal(out)
}
