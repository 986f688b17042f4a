package translator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// OpenAIToAnthropicResponse converts a non-streaming OpenAI chat completion
// into an Anthropic Messages response.
func OpenAIToAnthropicResponse(ctx context.Context, model string, responseBody []byte) ([]byte, error) {
	src := gjson.ParseBytes(responseBody)
	if src.Get("error").Exists() {
		return responseBody, nil
	}

	choice := src.Get("choices.0")
	msg := choice.Get("message")
	if !msg.Exists() {
		msg = choice.Get("delta")
	}

	var blocks []interface{}
	if rc := msg.Get("reasoning_content"); rc.Exists() && rc.String() != "" {
		blocks = append(blocks, map[string]interface{}{"type": "thinking", "thinking": rc.String()})
	}
	text := msg.Get("content").String()
	if text == "" {
		text = choice.Get("text").String()
	}
	if text != "" {
		blocks = append(blocks, map[string]interface{}{"type": "text", "text": text})
	}
	for _, tc := range msg.Get("tool_calls").Array() {
		blocks = append(blocks, toolCallToToolUse(tc))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, map[string]interface{}{"type": "text", "text": ""})
	}

	outModel := src.Get("model").String()
	if outModel == "" {
		outModel = model
	}

	out := map[string]interface{}{
		"id":            EnsureMessageID(src.Get("id").String()),
		"type":          "message",
		"role":          "assistant",
		"model":         outModel,
		"content":       blocks,
		"stop_reason":   MapOpenAIFinishReason(choice.Get("finish_reason").String()),
		"stop_sequence": nil,
		"usage": map[string]interface{}{
			"input_tokens":  src.Get("usage.prompt_tokens").Int(),
			"output_tokens": src.Get("usage.completion_tokens").Int(),
		},
	}
	return json.Marshal(out)
}

// AnthropicToOpenAIResponse converts a non-streaming Anthropic Messages
// response into an OpenAI chat completion.
func AnthropicToOpenAIResponse(ctx context.Context, model string, responseBody []byte) ([]byte, error) {
	src := gjson.ParseBytes(responseBody)
	if src.Get("type").String() == "error" || src.Get("error").Exists() {
		return responseBody, nil
	}

	var sb strings.Builder
	var toolCalls []interface{}
	for _, blk := range src.Get("content").Array() {
		switch blk.Get("type").String() {
		case "text":
			sb.WriteString(blk.Get("text").String())
		case "thinking":
			sb.WriteString("[Thinking] ")
			sb.WriteString(blk.Get("thinking").String())
		case "image":
			sb.WriteString("[Image]")
		case "tool_use":
			input := blk.Get("input")
			args := "{}"
			if input.Exists() {
				args = input.Raw
			}
			toolCalls = append(toolCalls, map[string]interface{}{
				"id":   blk.Get("id").String(),
				"type": "function",
				"function": map[string]interface{}{
					"name":      blk.Get("name").String(),
					"arguments": args,
				},
			})
		}
	}

	message := map[string]interface{}{
		"role":    "assistant",
		"content": sb.String(),
	}
	finish := MapAnthropicStopReason(src.Get("stop_reason").String())
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
		finish = "tool_calls"
	}

	outModel := src.Get("model").String()
	if outModel == "" {
		outModel = model
	}

	prompt := src.Get("usage.input_tokens").Int() +
		src.Get("usage.cache_creation_input_tokens").Int() +
		src.Get("usage.cache_read_input_tokens").Int()
	completion := src.Get("usage.output_tokens").Int()

	out := map[string]interface{}{
		"id":      EnsureChatCompletionID(src.Get("id").String()),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   outModel,
		"choices": []interface{}{
			map[string]interface{}{
				"index":         0,
				"message":       message,
				"finish_reason": finish,
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	}
	return json.Marshal(out)
}
