package translator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestOpenAIToAnthropicRequest(t *testing.T) {
	t.Run("system messages join into one system field", func(t *testing.T) {
		in := []byte(`{
			"model": "gpt-x",
			"messages": [
				{"role": "system", "content": "be brief"},
				{"role": "developer", "content": "answer in english"},
				{"role": "user", "content": "hi"}
			]
		}`)
		out := gjson.ParseBytes(OpenAIToAnthropicRequest("claude-test", in, false))

		require.Equal(t, "claude-test", out.Get("model").String())
		require.Equal(t, "be brief\n\nanswer in english", out.Get("system").String())
		require.Equal(t, int64(1), int64(len(out.Get("messages").Array())))
		require.Equal(t, "user", out.Get("messages.0.role").String())
		require.Equal(t, "hi", out.Get("messages.0.content.0.text").String())
		require.Equal(t, int64(4096), out.Get("max_tokens").Int())
	})

	t.Run("tool role becomes tool_result block", func(t *testing.T) {
		in := []byte(`{
			"messages": [
				{"role": "tool", "tool_call_id": "call_1", "content": "42"}
			]
		}`)
		out := gjson.ParseBytes(OpenAIToAnthropicRequest("m", in, false))

		blk := out.Get("messages.0.content.0")
		require.Equal(t, "user", out.Get("messages.0.role").String())
		require.Equal(t, "tool_result", blk.Get("type").String())
		require.Equal(t, "call_1", blk.Get("tool_use_id").String())
		require.Equal(t, "42", blk.Get("content").String())
	})

	t.Run("assistant tool_calls become tool_use blocks", func(t *testing.T) {
		in := []byte(`{
			"messages": [
				{"role": "assistant", "content": "", "tool_calls": [
					{"id": "call_9", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"SF\"}"}}
				]}
			]
		}`)
		out := gjson.ParseBytes(OpenAIToAnthropicRequest("m", in, false))

		blk := out.Get("messages.0.content.0")
		require.Equal(t, "tool_use", blk.Get("type").String())
		require.Equal(t, "call_9", blk.Get("id").String())
		require.Equal(t, "get_weather", blk.Get("name").String())
		require.Equal(t, "SF", blk.Get("input.city").String())
	})

	t.Run("image parts degrade to text markers", func(t *testing.T) {
		in := []byte(`{
			"messages": [
				{"role": "user", "content": [
					{"type": "text", "text": "look"},
					{"type": "image_url", "image_url": {"url": "https://x/y.png"}}
				]}
			]
		}`)
		out := gjson.ParseBytes(OpenAIToAnthropicRequest("m", in, false))

		require.Equal(t, "look", out.Get("messages.0.content.0.text").String())
		require.Equal(t, "[Image] https://x/y.png", out.Get("messages.0.content.1.text").String())
	})

	t.Run("data url images become base64 source blocks", func(t *testing.T) {
		in := []byte(`{
			"messages": [
				{"role": "user", "content": [
					{"type": "image_url", "image_url": {"url": "data:image/png;base64,aGk="}}
				]}
			]
		}`)
		out := gjson.ParseBytes(OpenAIToAnthropicRequest("m", in, false))

		blk := out.Get("messages.0.content.0")
		require.Equal(t, "image", blk.Get("type").String())
		require.Equal(t, "base64", blk.Get("source.type").String())
		require.Equal(t, "image/png", blk.Get("source.media_type").String())
		require.Equal(t, "aGk=", blk.Get("source.data").String())
	})

	t.Run("sampling and stop options carry over", func(t *testing.T) {
		in := []byte(`{
			"messages": [{"role": "user", "content": "x"}],
			"max_completion_tokens": 512,
			"temperature": 0.4,
			"top_p": 0.9,
			"stop": ["END"],
			"tool_choice": "required"
		}`)
		out := gjson.ParseBytes(OpenAIToAnthropicRequest("m", in, true))

		require.Equal(t, int64(512), out.Get("max_tokens").Int())
		require.InDelta(t, 0.4, out.Get("temperature").Float(), 1e-9)
		require.Equal(t, "END", out.Get("stop_sequences.0").String())
		require.True(t, out.Get("stream").Bool())
		require.Equal(t, "auto", out.Get("tool_choice.type").String())
	})
}

func TestAnthropicToOpenAIRequest(t *testing.T) {
	t.Run("system and thinking blocks", func(t *testing.T) {
		in := []byte(`{
			"system": "stay factual",
			"messages": [
				{"role": "assistant", "content": [
					{"type": "thinking", "thinking": "let me see"},
					{"type": "text", "text": "answer"}
				]}
			],
			"max_tokens": 100
		}`)
		out := gjson.ParseBytes(AnthropicToOpenAIRequest("gpt-x", in, false))

		require.Equal(t, "system", out.Get("messages.0.role").String())
		require.Equal(t, "stay factual", out.Get("messages.0.content").String())
		require.Equal(t, "[Thinking] let me see", out.Get("messages.1.content.0.text").String())
		require.Equal(t, "answer", out.Get("messages.1.content.1.text").String())
		require.Equal(t, int64(100), out.Get("max_tokens").Int())
	})

	t.Run("tool_use and tool_result round into openai shapes", func(t *testing.T) {
		in := []byte(`{
			"messages": [
				{"role": "assistant", "content": [
					{"type": "tool_use", "id": "toolu_1", "name": "search", "input": {"q": "go"}}
				]},
				{"role": "user", "content": [
					{"type": "tool_result", "tool_use_id": "toolu_1", "content": "found it"}
				]}
			]
		}`)
		out := gjson.ParseBytes(AnthropicToOpenAIRequest("m", in, false))

		tc := out.Get("messages.0.tool_calls.0")
		require.Equal(t, "toolu_1", tc.Get("id").String())
		require.Equal(t, "search", tc.Get("function.name").String())
		require.Equal(t, "go", gjson.Get(tc.Get("function.arguments").String(), "q").String())

		require.Equal(t, "tool", out.Get("messages.1.role").String())
		require.Equal(t, "toolu_1", out.Get("messages.1.tool_call_id").String())
		require.Equal(t, "found it", out.Get("messages.1.content").String())
	})

	t.Run("base64 image becomes data url", func(t *testing.T) {
		in := []byte(`{
			"messages": [
				{"role": "user", "content": [
					{"type": "image", "source": {"type": "base64", "media_type": "image/png", "data": "aGk="}}
				]}
			]
		}`)
		out := gjson.ParseBytes(AnthropicToOpenAIRequest("m", in, false))

		require.Equal(t, "image_url", out.Get("messages.0.content.0.type").String())
		require.Equal(t, "data:image/png;base64,aGk=", out.Get("messages.0.content.0.image_url.url").String())
	})

	t.Run("single text part collapses to a string", func(t *testing.T) {
		in := []byte(`{"messages": [{"role": "user", "content": [{"type": "text", "text": "plain"}]}]}`)
		out := gjson.ParseBytes(AnthropicToOpenAIRequest("m", in, false))
		require.Equal(t, gjson.String, out.Get("messages.0.content").Type)
		require.Equal(t, "plain", out.Get("messages.0.content").String())
	})
}

func TestOpenAIToAnthropicResponse(t *testing.T) {
	in := []byte(`{
		"id": "chatcmpl-abc",
		"model": "gpt-x",
		"choices": [{"index": 0, "message": {"role": "assistant", "reasoning_content": "hm", "content": "hello"}, "finish_reason": "length"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 3}
	}`)
	b, err := OpenAIToAnthropicResponse(context.Background(), "claude-x", in)
	require.NoError(t, err)
	out := gjson.ParseBytes(b)

	require.Equal(t, "msg_chatcmpl-abc", out.Get("id").String())
	require.Equal(t, "thinking", out.Get("content.0.type").String())
	require.Equal(t, "hm", out.Get("content.0.thinking").String())
	require.Equal(t, "hello", out.Get("content.1.text").String())
	require.Equal(t, "max_tokens", out.Get("stop_reason").String())
	require.Equal(t, int64(10), out.Get("usage.input_tokens").Int())
	require.Equal(t, int64(3), out.Get("usage.output_tokens").Int())
}

func TestAnthropicToOpenAIResponse(t *testing.T) {
	t.Run("tool_use forces tool_calls finish", func(t *testing.T) {
		in := []byte(`{
			"id": "msg_01",
			"model": "claude-x",
			"content": [
				{"type": "text", "text": "calling"},
				{"type": "tool_use", "id": "toolu_2", "name": "calc", "input": {"a": 1}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 7, "cache_read_input_tokens": 3, "output_tokens": 2}
		}`)
		b, err := AnthropicToOpenAIResponse(context.Background(), "m", in)
		require.NoError(t, err)
		out := gjson.ParseBytes(b)

		require.Equal(t, "tool_calls", out.Get("choices.0.finish_reason").String())
		require.Equal(t, "calc", out.Get("choices.0.message.tool_calls.0.function.name").String())
		require.Equal(t, int64(10), out.Get("usage.prompt_tokens").Int())
		require.Equal(t, int64(12), out.Get("usage.total_tokens").Int())
	})

	t.Run("error envelope passes through untouched", func(t *testing.T) {
		in := []byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`)
		b, err := AnthropicToOpenAIResponse(context.Background(), "m", in)
		require.NoError(t, err)
		require.JSONEq(t, string(in), string(b))
	})
}
