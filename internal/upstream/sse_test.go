package upstream

import (
	"io"
	"net/http"
	"strings"
	"testing"

	apierr "llmgate/internal/errors"

	"github.com/stretchr/testify/require"
)

func TestParseSSEData(t *testing.T) {
	data, ok := ParseSSEData([]byte(`data: {"x":1}`))
	require.True(t, ok)
	require.Equal(t, `{"x":1}`, string(data))

	data, ok = ParseSSEData([]byte("data:[DONE]"))
	require.True(t, ok)
	require.True(t, IsSSEDone(data))

	_, ok = ParseSSEData([]byte("event: message_start"))
	require.False(t, ok)
}

func TestDrainSSELines(t *testing.T) {
	body := "data: a\n\ndata: b\n\n"
	var lines []string
	err := DrainSSELines(strings.NewReader(body), func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"data: a", "data: b"}, lines)

	err = DrainSSELines(strings.NewReader(body), func([]byte) error { return io.ErrClosedPipe })
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestParseJSONResponse(t *testing.T) {
	mk := func(status int, body string) *http.Response {
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
	}

	t.Run("ok body", func(t *testing.T) {
		body, err := ParseJSONResponse(mk(200, `{"id":"x"}`))
		require.NoError(t, err)
		require.Equal(t, `{"id":"x"}`, string(body))
	})

	t.Run("error status maps and keeps message", func(t *testing.T) {
		_, err := ParseJSONResponse(mk(429, `{"error":{"message":"quota"}}`))
		apiErr := apierr.AsAPIError(err)
		require.Equal(t, 429, apiErr.HTTPStatus)
		require.Equal(t, "quota", apiErr.Message)
	})

	t.Run("non-json error body", func(t *testing.T) {
		_, err := ParseJSONResponse(mk(503, "upstream melting"))
		require.Equal(t, "upstream melting", apierr.AsAPIError(err).Message)
	})

	t.Run("invalid json on 200", func(t *testing.T) {
		_, err := ParseJSONResponse(mk(200, "<html>"))
		require.Error(t, err)
	})

	t.Run("sse-framed unary body salvages last frame", func(t *testing.T) {
		body, err := ParseJSONResponse(mk(200,
			"data: {\"id\":\"a\"}\n\ndata: {\"id\":\"b\",\"usage\":{\"prompt_tokens\":1}}\n\ndata: [DONE]\n\n"))
		require.NoError(t, err)
		require.Equal(t, `{"id":"b","usage":{"prompt_tokens":1}}`, string(body))
	})

	t.Run("done marker stripped from json body", func(t *testing.T) {
		body, err := ParseJSONResponse(mk(200, `{"id":"x"}`+"\n[DONE]\n"))
		require.NoError(t, err)
		require.Equal(t, `{"id":"x"}`, string(body))
	})
}

func TestNormalizeStreamFlag(t *testing.T) {
	cases := []struct {
		in     string
		stream bool
	}{
		{`{}`, false},
		{`{"stream": true}`, true},
		{`{"stream": false}`, false},
		{`{"stream": "true"}`, true},
		{`{"stream": "ON"}`, true},
		{`{"stream": "nope"}`, false},
		{`{"stream": 1}`, true},
		{`{"stream": 0}`, false},
	}
	for _, tc := range cases {
		out, stream := NormalizeStreamFlag([]byte(tc.in))
		require.Equal(t, tc.stream, stream, "input %s", tc.in)
		if tc.in != `{}` {
			// coerced to a real boolean
			require.Contains(t, string(out), `"stream":`+boolStr(stream))
		}
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
