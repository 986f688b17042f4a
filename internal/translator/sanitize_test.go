package translator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeJSON(t *testing.T) {
	t.Run("drops null undefined and empty containers", func(t *testing.T) {
		in := []byte(`{
			"model": "m",
			"temperature": null,
			"user": "undefined",
			"metadata": {},
			"stop": [],
			"messages": [{"role": "user", "content": "hi", "name": null}]
		}`)
		out := SanitizeJSON(in)
		require.JSONEq(t, `{"model":"m","messages":[{"role":"user","content":"hi"}]}`, string(out))
	})

	t.Run("keeps falsy but meaningful values", func(t *testing.T) {
		in := []byte(`{"temperature": 0, "stream": false, "content": ""}`)
		out := SanitizeJSON(in)
		require.JSONEq(t, `{"temperature":0,"stream":false,"content":""}`, string(out))
	})

	t.Run("fully empty payload becomes empty object", func(t *testing.T) {
		require.Equal(t, "{}", string(SanitizeJSON([]byte(`{"a":null,"b":{}}`))))
	})

	t.Run("invalid json passes through", func(t *testing.T) {
		in := []byte(`not json`)
		require.Equal(t, in, SanitizeJSON(in))
	})
}

func TestFilterFields(t *testing.T) {
	in := []byte(`{"model":"m","messages":[],"seed":7,"x_custom":true}`)
	out := FilterFields(in, []string{"model", "messages", "seed"})
	require.JSONEq(t, `{"model":"m","messages":[],"seed":7}`, string(out))
}

func TestIsThinkingEnabled(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"absent defaults on", `{}`, true},
		{"bool true", `{"thinking": true}`, true},
		{"bool false", `{"thinking": false}`, false},
		{"string off", `{"thinking": "off"}`, false},
		{"string yes", `{"thinking": "yes"}`, true},
		{"number zero", `{"thinking": 0}`, false},
		{"object enabled false", `{"thinking": {"enabled": false}}`, false},
		{"object enable string", `{"thinking": {"enable": "no"}}`, false},
		{"object type disabled", `{"thinking": {"type": "disabled"}}`, false},
		{"object type enabled", `{"thinking": {"type": "enabled", "budget_tokens": 1024}}`, true},
		{"object budget only", `{"thinking": {"budget_tokens": 2048}}`, true},
		{"unknown string defaults on", `{"thinking": "maybe"}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsThinkingEnabled([]byte(tc.body)))
		})
	}
}

func TestFinishReasonMaps(t *testing.T) {
	require.Equal(t, "end_turn", MapOpenAIFinishReason(""))
	require.Equal(t, "end_turn", MapOpenAIFinishReason("stop"))
	require.Equal(t, "max_tokens", MapOpenAIFinishReason("length"))
	require.Equal(t, "tool_use", MapOpenAIFinishReason("function_call"))
	require.Equal(t, "weird", MapOpenAIFinishReason("weird"))

	require.Equal(t, "stop", MapAnthropicStopReason("stop_sequence"))
	require.Equal(t, "length", MapAnthropicStopReason("max_tokens"))
	require.Equal(t, "tool_calls", MapAnthropicStopReason("tool_use"))

	require.Equal(t, "length", MapGeminiFinishReason("max_tokens"))
	require.Equal(t, "content_filter", MapGeminiFinishReason("SAFETY"))
	require.Equal(t, "stop", MapGeminiFinishReason("FINISH_REASON_UNSPECIFIED"))

	require.Equal(t, "MAX_TOKENS", MapOpenAIFinishToGemini("length"))
	require.Equal(t, "SAFETY", MapOpenAIFinishToGemini("content_filter"))
	require.Equal(t, "STOP", MapOpenAIFinishToGemini("tool_calls"))
}

func TestIDHelpers(t *testing.T) {
	require.Equal(t, "msg_abc", EnsureMessageID("abc"))
	require.Equal(t, "msg_already", EnsureMessageID("msg_already"))
	require.Equal(t, "chatcmpl-abc", EnsureChatCompletionID("chatcmpl-abc"))
	require.Equal(t, "chatcmpl_msg_1", EnsureChatCompletionID("msg_1"))
}

func TestGLM(t *testing.T) {
	t.Run("target detection", func(t *testing.T) {
		require.True(t, IsGLMTarget("", "glm-4", "https://api.example.com"))
		require.True(t, IsGLMTarget("", "GLM-4-Plus", ""))
		require.True(t, IsGLMTarget("", "other", "https://open.bigmodel.cn/api/paas/v4"))
		require.True(t, IsGLMTarget("", "other", "https://api.z.ai/v1"))
		require.False(t, IsGLMTarget("", "gpt-4o", "https://api.openai.com"))
	})

	t.Run("upstream id wins over model and endpoint", func(t *testing.T) {
		require.True(t, IsGLMTarget("zai", "custom-model", "https://proxy.internal"))
		require.True(t, IsGLMTarget("Z.ai", "custom-model", "https://proxy.internal"))
		require.True(t, IsGLMTarget("ZAI", "gpt-4o", ""))
		require.False(t, IsGLMTarget("openai", "gpt-4o", "https://api.openai.com"))
	})

	t.Run("reduce trims fields and flattens multimodal content", func(t *testing.T) {
		in := []byte(`{
			"model": "glm-4",
			"messages": [
				{"role": "user", "content": [
					{"type": "text", "text": "look at "},
					{"type": "image_url", "image_url": {"url": "https://x/y.png"}}
				]},
				{"role": "assistant", "content": "plain"}
			],
			"frequency_penalty": 0.5,
			"logit_bias": {"1": 2},
			"temperature": 0.3
		}`)
		out := ReduceForGLM(in)

		require.JSONEq(t, `{
			"model": "glm-4",
			"messages": [
				{"role": "user", "content": "look at [Image] https://x/y.png"},
				{"role": "assistant", "content": "plain"}
			],
			"temperature": 0.3
		}`, string(out))
	})
}
