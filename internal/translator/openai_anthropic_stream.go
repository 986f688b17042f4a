package translator

import (
	"encoding/json"
	"sort"
	"time"

	"llmgate/internal/forward"

	"github.com/tidwall/gjson"
)

// anthropicEvent frames one Anthropic SSE event.
func anthropicEvent(eventType string, payload map[string]interface{}) []byte {
	b, _ := json.Marshal(payload)
	out := make([]byte, 0, len(b)+len(eventType)+16)
	out = append(out, "event: "...)
	out = append(out, eventType...)
	out = append(out, "\ndata: "...)
	out = append(out, b...)
	out = append(out, "\n\n"...)
	return out
}

// openaiChunk frames one OpenAI SSE data line.
func openaiChunk(payload map[string]interface{}) []byte {
	b, _ := json.Marshal(payload)
	out := make([]byte, 0, len(b)+8)
	out = append(out, "data: "...)
	out = append(out, b...)
	out = append(out, "\n\n"...)
	return out
}

// OpenAIToAnthropicStream converts OpenAI chat completion chunks into
// Anthropic Messages events, tracking content block indexes. A thinking
// block is never opened after text started; late reasoning is dropped.
type OpenAIToAnthropicStream struct {
	Model string
	// PromptTokensEstimate seeds message_start usage when the upstream
	// omits prompt tokens.
	PromptTokensEstimate int64

	started       bool
	stopSent      bool
	thinkingIndex *int
	textIndex     *int
	toolIndex     map[int]int // openai tool_call index -> anthropic block index
	nextIndex     int
	usage         forward.TokenUsage
	textChars     int64
}

// Usage returns the accumulated token usage.
func (s *OpenAIToAnthropicStream) Usage() forward.TokenUsage {
	u := s.usage
	if u.PromptTokens == 0 {
		u.PromptTokens = s.PromptTokensEstimate
	}
	if u.CompletionTokens == 0 && s.textChars > 0 {
		u.CompletionTokens = forward.EstimateTokensFromChars(s.textChars)
	}
	return u
}

// Feed consumes one parsed OpenAI chunk and returns framed Anthropic events.
func (s *OpenAIToAnthropicStream) Feed(chunk []byte) [][]byte {
	src := gjson.ParseBytes(chunk)
	var events [][]byte

	if u := src.Get("usage"); u.Exists() {
		s.usage.Merge(forward.TokenUsage{
			PromptTokens:     u.Get("prompt_tokens").Int(),
			CompletionTokens: u.Get("completion_tokens").Int(),
		})
	}

	if !s.started {
		s.started = true
		prompt := s.usage.PromptTokens
		if prompt == 0 {
			prompt = s.PromptTokensEstimate
		}
		model := src.Get("model").String()
		if model == "" {
			model = s.Model
		}
		events = append(events, anthropicEvent("message_start", map[string]interface{}{
			"type": "message_start",
			"message": map[string]interface{}{
				"id":            EnsureMessageID(src.Get("id").String()),
				"type":          "message",
				"role":          "assistant",
				"model":         model,
				"content":       []interface{}{},
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage": map[string]interface{}{
					"input_tokens":  prompt,
					"output_tokens": 0,
				},
			},
		}))
	}

	choice := src.Get("choices.0")
	delta := choice.Get("delta")

	if rc := delta.Get("reasoning_content"); rc.Exists() && rc.String() != "" {
		// Reasoning after text already started cannot open a new thinking
		// block; drop it instead of emitting out-of-order blocks.
		if s.textIndex == nil || s.thinkingIndex != nil {
			idx, startEv := s.ensureThinking()
			if startEv != nil {
				events = append(events, startEv)
			}
			s.textChars += int64(len(rc.String()))
			events = append(events, anthropicEvent("content_block_delta", map[string]interface{}{
				"type":  "content_block_delta",
				"index": idx,
				"delta": map[string]interface{}{"type": "thinking_delta", "thinking": rc.String()},
			}))
		}
	}

	if content := delta.Get("content"); content.Exists() && content.String() != "" {
		if ev := s.closeThinking(); ev != nil {
			events = append(events, ev)
		}
		idx, startEv := s.ensureText()
		if startEv != nil {
			events = append(events, startEv)
		}
		s.textChars += int64(len(content.String()))
		events = append(events, anthropicEvent("content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"index": idx,
			"delta": map[string]interface{}{"type": "text_delta", "text": content.String()},
		}))
	}

	for _, tc := range delta.Get("tool_calls").Array() {
		events = append(events, s.feedToolCall(tc)...)
	}

	if fr := choice.Get("finish_reason"); fr.Exists() && fr.String() != "" && !s.stopSent {
		events = append(events, s.finishEvents(fr.String())...)
	}

	return events
}

// Finish closes the stream if the upstream ended without a finish_reason.
func (s *OpenAIToAnthropicStream) Finish() [][]byte {
	if s.stopSent || !s.started {
		return nil
	}
	return s.finishEvents("stop")
}

func (s *OpenAIToAnthropicStream) finishEvents(finishReason string) [][]byte {
	var events [][]byte
	events = append(events, s.stopStartedBlocks()...)
	out := s.usage.CompletionTokens
	if out == 0 && s.textChars > 0 {
		out = forward.EstimateTokensFromChars(s.textChars)
	}
	events = append(events, anthropicEvent("message_delta", map[string]interface{}{
		"type": "message_delta",
		"delta": map[string]interface{}{
			"stop_reason":   MapOpenAIFinishReason(finishReason),
			"stop_sequence": nil,
		},
		"usage": map[string]interface{}{"output_tokens": out},
	}))
	events = append(events, anthropicEvent("message_stop", map[string]interface{}{
		"type": "message_stop",
	}))
	s.stopSent = true
	return events
}

func (s *OpenAIToAnthropicStream) ensureThinking() (int, []byte) {
	if s.thinkingIndex != nil {
		return *s.thinkingIndex, nil
	}
	idx := s.nextIndex
	s.nextIndex++
	s.thinkingIndex = &idx
	return idx, anthropicEvent("content_block_start", map[string]interface{}{
		"type":          "content_block_start",
		"index":         idx,
		"content_block": map[string]interface{}{"type": "thinking", "thinking": ""},
	})
}

func (s *OpenAIToAnthropicStream) ensureText() (int, []byte) {
	if s.textIndex != nil {
		return *s.textIndex, nil
	}
	idx := s.nextIndex
	s.nextIndex++
	s.textIndex = &idx
	return idx, anthropicEvent("content_block_start", map[string]interface{}{
		"type":          "content_block_start",
		"index":         idx,
		"content_block": map[string]interface{}{"type": "text", "text": ""},
	})
}

func (s *OpenAIToAnthropicStream) closeThinking() []byte {
	if s.thinkingIndex == nil {
		return nil
	}
	idx := *s.thinkingIndex
	s.thinkingIndex = nil
	return anthropicEvent("content_block_stop", map[string]interface{}{
		"type":  "content_block_stop",
		"index": idx,
	})
}

func (s *OpenAIToAnthropicStream) feedToolCall(tc gjson.Result) [][]byte {
	if s.toolIndex == nil {
		s.toolIndex = make(map[int]int)
	}
	var events [][]byte
	tcIdx := int(tc.Get("index").Int())
	blockIdx, open := s.toolIndex[tcIdx]
	if !open {
		if ev := s.closeThinking(); ev != nil {
			events = append(events, ev)
		}
		blockIdx = s.nextIndex
		s.nextIndex++
		s.toolIndex[tcIdx] = blockIdx
		events = append(events, anthropicEvent("content_block_start", map[string]interface{}{
			"type":  "content_block_start",
			"index": blockIdx,
			"content_block": map[string]interface{}{
				"type":  "tool_use",
				"id":    tc.Get("id").String(),
				"name":  tc.Get("function.name").String(),
				"input": map[string]interface{}{},
			},
		}))
	}
	if args := tc.Get("function.arguments"); args.Exists() && args.String() != "" {
		events = append(events, anthropicEvent("content_block_delta", map[string]interface{}{
			"type":  "content_block_delta",
			"index": blockIdx,
			"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": args.String()},
		}))
	}
	return events
}

// stopStartedBlocks emits content_block_stop for every open block, ordered
// by index.
func (s *OpenAIToAnthropicStream) stopStartedBlocks() [][]byte {
	var open []int
	if s.thinkingIndex != nil {
		open = append(open, *s.thinkingIndex)
		s.thinkingIndex = nil
	}
	if s.textIndex != nil {
		open = append(open, *s.textIndex)
		s.textIndex = nil
	}
	for _, idx := range s.toolIndex {
		open = append(open, idx)
	}
	s.toolIndex = nil
	sort.Ints(open)

	var events [][]byte
	for _, idx := range open {
		events = append(events, anthropicEvent("content_block_stop", map[string]interface{}{
			"type":  "content_block_stop",
			"index": idx,
		}))
	}
	return events
}

// AnthropicToOpenAIStream converts Anthropic Messages events into OpenAI
// chat completion chunks.
type AnthropicToOpenAIStream struct {
	Model string

	id       string
	created  int64
	sentRole bool
	finished bool
	usage    forward.TokenUsage
}

// Usage returns the accumulated token usage.
func (s *AnthropicToOpenAIStream) Usage() forward.TokenUsage { return s.usage }

func (s *AnthropicToOpenAIStream) ensureIdentity() {
	if s.id == "" {
		s.id = NewChatCompletionID()
	}
	if s.created == 0 {
		s.created = time.Now().Unix()
	}
}

func (s *AnthropicToOpenAIStream) chunk(delta map[string]interface{}, finish interface{}, usage map[string]interface{}) []byte {
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

// Feed consumes one parsed Anthropic event and returns framed OpenAI chunks.
func (s *AnthropicToOpenAIStream) Feed(event []byte) [][]byte {
	src := gjson.ParseBytes(event)
	var chunks [][]byte

	switch src.Get("type").String() {
	case "message_start":
		msg := src.Get("message")
		s.id = EnsureChatCompletionID(msg.Get("id").String())
		s.created = time.Now().Unix()
		if m := msg.Get("model").String(); m != "" {
			s.Model = m
		}
		s.usage.Merge(forward.TokenUsage{
			PromptTokens: msg.Get("usage.input_tokens").Int(),
		})
		chunks = append(chunks, s.chunk(map[string]interface{}{"role": "assistant", "content": ""}, nil, nil))
		s.sentRole = true

	case "content_block_start":
		blk := src.Get("content_block")
		if blk.Get("type").String() == "tool_use" {
			chunks = append(chunks, s.chunk(map[string]interface{}{
				"tool_calls": []interface{}{
					map[string]interface{}{
						"index": 0,
						"id":    blk.Get("id").String(),
						"type":  "function",
						"function": map[string]interface{}{
							"name":      blk.Get("name").String(),
							"arguments": "",
						},
					},
				},
			}, nil, nil))
		}

	case "content_block_delta":
		delta := src.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			chunks = append(chunks, s.chunk(map[string]interface{}{"content": delta.Get("text").String()}, nil, nil))
		case "thinking_delta":
			chunks = append(chunks, s.chunk(map[string]interface{}{"reasoning_content": delta.Get("thinking").String()}, nil, nil))
		case "input_json_delta":
			chunks = append(chunks, s.chunk(map[string]interface{}{
				"tool_calls": []interface{}{
					map[string]interface{}{
						"index":    0,
						"function": map[string]interface{}{"arguments": delta.Get("partial_json").String()},
					},
				},
			}, nil, nil))
		}

	case "message_delta":
		s.usage.Merge(forward.TokenUsage{
			CompletionTokens: src.Get("usage.output_tokens").Int(),
		})
		if sr := src.Get("delta.stop_reason"); sr.Exists() && sr.String() != "" {
			chunks = append(chunks, s.finalChunk(MapAnthropicStopReason(sr.String())))
		}

	case "message_stop":
		if !s.finished {
			chunks = append(chunks, s.finalChunk("stop"))
		}
	}
	return chunks
}

func (s *AnthropicToOpenAIStream) finalChunk(finishReason string) []byte {
	s.finished = true
	return s.chunk(map[string]interface{}{}, finishReason, map[string]interface{}{
		"prompt_tokens":     s.usage.PromptTokens,
		"completion_tokens": s.usage.CompletionTokens,
		"total_tokens":      s.usage.Total(),
	})
}
