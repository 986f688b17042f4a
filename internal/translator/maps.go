package translator

import (
	"fmt"
	"strings"
	"time"
)

// MapOpenAIFinishReason converts an OpenAI finish_reason to an Anthropic
// stop_reason. Empty input yields end_turn; unknown values pass through.
func MapOpenAIFinishReason(reason string) string {
	switch reason {
	case "", "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "tool_calls", "function_call":
		return "tool_use"
	case "content_filter":
		return "content_filter"
	default:
		return reason
	}
}

// MapAnthropicStopReason converts an Anthropic stop_reason back to OpenAI.
func MapAnthropicStopReason(reason string) string {
	switch reason {
	case "", "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}

// MapGeminiFinishReason converts a Gemini finishReason to OpenAI.
func MapGeminiFinishReason(reason string) string {
	switch strings.ToUpper(reason) {
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "stop"
	}
}

// MapOpenAIFinishToGemini converts an OpenAI finish_reason to Gemini.
func MapOpenAIFinishToGemini(reason string) string {
	switch reason {
	case "length":
		return "MAX_TOKENS"
	case "content_filter":
		return "SAFETY"
	default:
		return "STOP"
	}
}

// NewChatCompletionID synthesizes an OpenAI-style response id.
func NewChatCompletionID() string {
	return fmt.Sprintf("chatcmpl_%d", time.Now().Unix())
}

// NewGeminiChatCompletionID marks ids of responses converted from Gemini.
func NewGeminiChatCompletionID() string {
	return fmt.Sprintf("chatcmpl_gemini_%d", time.Now().Unix())
}

// EnsureMessageID forces the Anthropic msg_ id prefix.
func EnsureMessageID(id string) string {
	if id == "" {
		return fmt.Sprintf("msg_%d", time.Now().Unix())
	}
	if strings.HasPrefix(id, "msg_") {
		return id
	}
	return "msg_" + id
}

// EnsureChatCompletionID forces the OpenAI chatcmpl_ id prefix.
func EnsureChatCompletionID(id string) string {
	if id == "" {
		return NewChatCompletionID()
	}
	if strings.HasPrefix(id, "chatcmpl") {
		return id
	}
	return "chatcmpl_" + id
}
