package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

func init() {
	Register(FormatOpenAI, FormatAnthropic, TranslatorConfig{
		RequestTransform:  OpenAIToAnthropicRequest,
		ResponseTransform: OpenAIToAnthropicResponse,
	})
	Register(FormatAnthropic, FormatOpenAI, TranslatorConfig{
		RequestTransform:  AnthropicToOpenAIRequest,
		ResponseTransform: AnthropicToOpenAIResponse,
	})
}

const defaultAnthropicMaxTokens = 4096

// OpenAIToAnthropicRequest converts an OpenAI chat completion request into
// an Anthropic Messages request.
func OpenAIToAnthropicRequest(model string, rawJSON []byte, stream bool) []byte {
	src := gjson.ParseBytes(rawJSON)

	var systemParts []string
	var messages []map[string]interface{}

	for _, msg := range src.Get("messages").Array() {
		role := msg.Get("role").String()
		switch role {
		case "system", "developer":
			if s := openaiContentAsText(msg.Get("content")); s != "" {
				systemParts = append(systemParts, s)
			}
		case "tool", "function":
			block := map[string]interface{}{
				"type":        "tool_result",
				"tool_use_id": msg.Get("tool_call_id").String(),
				"content":     openaiContentAsText(msg.Get("content")),
			}
			messages = append(messages, map[string]interface{}{
				"role":    "user",
				"content": []interface{}{block},
			})
		default:
			blocks := appendOpenAIContentBlocks(nil, msg.Get("content"))
			for _, tc := range msg.Get("tool_calls").Array() {
				blocks = append(blocks, toolCallToToolUse(tc))
			}
			if fc := msg.Get("function_call"); fc.Exists() {
				blocks = append(blocks, functionCallToToolUse(fc))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, map[string]interface{}{"type": "text", "text": ""})
			}
			outRole := "user"
			if role == "assistant" {
				outRole = "assistant"
			}
			messages = append(messages, map[string]interface{}{
				"role":    outRole,
				"content": blocks,
			})
		}
	}

	out := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   stream,
	}
	if len(systemParts) > 0 {
		out["system"] = strings.Join(systemParts, "\n\n")
	}

	maxTokens := src.Get("max_tokens").Int()
	if maxTokens == 0 {
		maxTokens = src.Get("max_completion_tokens").Int()
	}
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	out["max_tokens"] = maxTokens

	if v := src.Get("temperature"); v.Exists() {
		out["temperature"] = v.Float()
	}
	if v := src.Get("top_p"); v.Exists() {
		out["top_p"] = v.Float()
	}
	if v := src.Get("stop"); v.Exists() {
		if v.IsArray() {
			var stops []interface{}
			for _, s := range v.Array() {
				stops = append(stops, s.String())
			}
			out["stop_sequences"] = stops
		} else {
			out["stop_sequences"] = []interface{}{v.String()}
		}
	}
	if tools := mapOpenAIToolsToAnthropic(src.Get("tools")); tools != nil {
		out["tools"] = tools
	}
	if tc := mapOpenAIToolChoiceToAnthropic(src.Get("tool_choice")); tc != nil {
		out["tool_choice"] = tc
	}

	b, err := json.Marshal(out)
	if err != nil {
		return rawJSON
	}
	return b
}

func openaiContentAsText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		var sb strings.Builder
		for _, part := range content.Array() {
			if part.Get("type").String() == "text" {
				sb.WriteString(part.Get("text").String())
			}
		}
		return sb.String()
	}
	return ""
}

func appendOpenAIContentBlocks(blocks []interface{}, content gjson.Result) []interface{} {
	switch {
	case content.Type == gjson.String:
		if content.String() != "" {
			blocks = append(blocks, map[string]interface{}{"type": "text", "text": content.String()})
		}
	case content.IsArray():
		for _, part := range content.Array() {
			switch part.Get("type").String() {
			case "text":
				blocks = append(blocks, map[string]interface{}{"type": "text", "text": part.Get("text").String()})
			case "image_url":
				url := part.Get("image_url.url").String()
				if media, data, ok := parseDataURL(url); ok {
					blocks = append(blocks, map[string]interface{}{
						"type": "image",
						"source": map[string]interface{}{
							"type":       "base64",
							"media_type": media,
							"data":       data,
						},
					})
				} else {
					// no URL form in the Messages dialect; degrade to text
					blocks = append(blocks, map[string]interface{}{"type": "text", "text": "[Image] " + url})
				}
			}
		}
	}
	return blocks
}

func toolCallToToolUse(tc gjson.Result) map[string]interface{} {
	var input interface{} = map[string]interface{}{}
	if args := tc.Get("function.arguments").String(); args != "" {
		var parsed interface{}
		if err := json.Unmarshal([]byte(args), &parsed); err == nil {
			input = parsed
		}
	}
	return map[string]interface{}{
		"type":  "tool_use",
		"id":    tc.Get("id").String(),
		"name":  tc.Get("function.name").String(),
		"input": input,
	}
}

func functionCallToToolUse(fc gjson.Result) map[string]interface{} {
	var input interface{} = map[string]interface{}{}
	if args := fc.Get("arguments").String(); args != "" {
		var parsed interface{}
		if err := json.Unmarshal([]byte(args), &parsed); err == nil {
			input = parsed
		}
	}
	return map[string]interface{}{
		"type":  "tool_use",
		"id":    fmt.Sprintf("call_%s", fc.Get("name").String()),
		"name":  fc.Get("name").String(),
		"input": input,
	}
}

func mapOpenAIToolsToAnthropic(tools gjson.Result) []interface{} {
	if !tools.IsArray() {
		return nil
	}
	var out []interface{}
	for _, tool := range tools.Array() {
		fn := tool.Get("function")
		if !fn.Exists() {
			continue
		}
		entry := map[string]interface{}{
			"name": fn.Get("name").String(),
		}
		if d := fn.Get("description"); d.Exists() {
			entry["description"] = d.String()
		}
		if p := fn.Get("parameters"); p.Exists() {
			entry["input_schema"] = p.Value()
		} else {
			entry["input_schema"] = map[string]interface{}{"type": "object"}
		}
		out = append(out, entry)
	}
	return out
}

func mapOpenAIToolChoiceToAnthropic(tc gjson.Result) map[string]interface{} {
	if !tc.Exists() {
		return nil
	}
	if tc.Type == gjson.String {
		switch tc.String() {
		case "auto", "required":
			return map[string]interface{}{"type": "auto"}
		case "none":
			return map[string]interface{}{"type": "none"}
		}
		return nil
	}
	if name := tc.Get("function.name").String(); name != "" {
		return map[string]interface{}{"type": "tool", "name": name}
	}
	return nil
}

// AnthropicToOpenAIRequest converts an Anthropic Messages request into an
// OpenAI chat completion request.
func AnthropicToOpenAIRequest(model string, rawJSON []byte, stream bool) []byte {
	src := gjson.ParseBytes(rawJSON)

	var messages []map[string]interface{}

	if sys := src.Get("system"); sys.Exists() {
		text := sys.String()
		if sys.IsArray() {
			var sb strings.Builder
			for _, blk := range sys.Array() {
				sb.WriteString(blk.Get("text").String())
			}
			text = sb.String()
		}
		if text != "" {
			messages = append(messages, map[string]interface{}{"role": "system", "content": text})
		}
	}

	for _, msg := range src.Get("messages").Array() {
		role := msg.Get("role").String()
		content := msg.Get("content")

		if content.Type == gjson.String {
			messages = append(messages, map[string]interface{}{"role": role, "content": content.String()})
			continue
		}

		var parts []interface{}
		var toolCalls []interface{}
		var toolResults []map[string]interface{}

		for _, blk := range content.Array() {
			switch blk.Get("type").String() {
			case "text":
				parts = append(parts, map[string]interface{}{"type": "text", "text": blk.Get("text").String()})
			case "thinking":
				parts = append(parts, map[string]interface{}{"type": "text", "text": "[Thinking] " + blk.Get("thinking").String()})
			case "image":
				parts = append(parts, anthropicImageToOpenAIPart(blk))
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
			case "tool_result":
				toolResults = append(toolResults, map[string]interface{}{
					"role":         "tool",
					"tool_call_id": blk.Get("tool_use_id").String(),
					"content":      anthropicToolResultText(blk.Get("content")),
				})
			}
		}

		out := map[string]interface{}{"role": role}
		out["content"] = openaiContentFromParts(parts)
		if len(toolCalls) > 0 {
			out["tool_calls"] = toolCalls
		}
		if len(parts) > 0 || len(toolCalls) > 0 || len(toolResults) == 0 {
			messages = append(messages, out)
		}
		messages = append(messages, toolResults...)
	}

	out := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   stream,
	}
	if v := src.Get("max_tokens"); v.Exists() {
		out["max_tokens"] = v.Int()
	}
	if v := src.Get("temperature"); v.Exists() {
		out["temperature"] = v.Float()
	}
	if v := src.Get("top_p"); v.Exists() {
		out["top_p"] = v.Float()
	}
	if v := src.Get("stop_sequences"); v.IsArray() {
		var stops []interface{}
		for _, s := range v.Array() {
			stops = append(stops, s.String())
		}
		if len(stops) > 0 {
			out["stop"] = stops
		}
	}
	if tools := mapAnthropicToolsToOpenAI(src.Get("tools")); tools != nil {
		out["tools"] = tools
	}
	if tc := mapAnthropicToolChoiceToOpenAI(src.Get("tool_choice")); tc != nil {
		out["tool_choice"] = tc
	}

	b, err := json.Marshal(out)
	if err != nil {
		return rawJSON
	}
	return b
}

func anthropicImageToOpenAIPart(blk gjson.Result) map[string]interface{} {
	source := blk.Get("source")
	if source.Get("type").String() == "base64" {
		url := fmt.Sprintf("data:%s;base64,%s", source.Get("media_type").String(), source.Get("data").String())
		return map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]interface{}{"url": url},
		}
	}
	if source.Get("type").String() == "url" {
		return map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]interface{}{"url": source.Get("url").String()},
		}
	}
	return map[string]interface{}{"type": "text", "text": "[Image]"}
}

func anthropicToolResultText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		var sb strings.Builder
		for _, blk := range content.Array() {
			if blk.Get("type").String() == "text" {
				sb.WriteString(blk.Get("text").String())
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	if content.Exists() {
		return content.Raw
	}
	return ""
}

// openaiContentFromParts collapses a single text part into a plain string.
func openaiContentFromParts(parts []interface{}) interface{} {
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		if mp, ok := parts[0].(map[string]interface{}); ok && mp["type"] == "text" {
			return mp["text"]
		}
	}
	return parts
}

func mapAnthropicToolsToOpenAI(tools gjson.Result) []interface{} {
	if !tools.IsArray() {
		return nil
	}
	var out []interface{}
	for _, tool := range tools.Array() {
		fn := map[string]interface{}{
			"name": tool.Get("name").String(),
		}
		if d := tool.Get("description"); d.Exists() {
			fn["description"] = d.String()
		}
		if p := tool.Get("input_schema"); p.Exists() {
			fn["parameters"] = p.Value()
		}
		out = append(out, map[string]interface{}{"type": "function", "function": fn})
	}
	return out
}

func mapAnthropicToolChoiceToOpenAI(tc gjson.Result) interface{} {
	if !tc.Exists() {
		return nil
	}
	switch tc.Get("type").String() {
	case "auto", "any":
		return "auto"
	case "none":
		return "none"
	case "tool":
		return map[string]interface{}{
			"type":     "function",
			"function": map[string]interface{}{"name": tc.Get("name").String()},
		}
	}
	return nil
}
