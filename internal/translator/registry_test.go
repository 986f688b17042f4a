package translator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDefaultRegistryCoversAllPairs(t *testing.T) {
	formats := []Format{FormatOpenAI, FormatAnthropic, FormatGemini}
	req := []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}],"contents":[{"role":"user","parts":[{"text":"hi"}]}],"max_tokens":10}`)

	for _, from := range formats {
		for _, to := range formats {
			if from == to {
				continue
			}
			out := TranslateRequest(from, to, "m", req, false)
			require.True(t, gjson.ValidBytes(out), "%s -> %s produced invalid JSON", from, to)
			// a registered translator reshapes the payload
			require.NotEqual(t, string(req), string(out), "%s -> %s fell back to passthrough", from, to)
		}
	}
}

func TestTranslateSameDialectIsIdentity(t *testing.T) {
	body := []byte(`{"model":"m"}`)
	require.Equal(t, body, TranslateRequest(FormatOpenAI, FormatOpenAI, "m", body, false))

	out, err := TranslateResponse(context.Background(), FormatGemini, FormatGemini, "m", body)
	require.NoError(t, err)
	require.Equal(t, body, out)
}

func TestCompositeResponseTranslation(t *testing.T) {
	gemini := []byte(`{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "hey"}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 2, "candidatesTokenCount": 1}
	}`)
	out, err := TranslateResponse(context.Background(), FormatGemini, FormatAnthropic, "claude-x", gemini)
	require.NoError(t, err)

	parsed := gjson.ParseBytes(out)
	require.Equal(t, "hey", parsed.Get("content.0.text").String())
	require.Equal(t, "end_turn", parsed.Get("stop_reason").String())
	require.Equal(t, int64(2), parsed.Get("usage.input_tokens").Int())
}
