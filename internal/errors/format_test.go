package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToJSONEnvelopes(t *testing.T) {
	e := RateLimited("slow down")

	t.Run("openai", func(t *testing.T) {
		require.JSONEq(t,
			`{"error":{"message":"slow down","type":"rate_limited"}}`,
			string(e.ToJSON(FormatOpenAI)))
	})

	t.Run("anthropic", func(t *testing.T) {
		require.JSONEq(t,
			`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`,
			string(e.ToJSON(FormatAnthropic)))
	})

	t.Run("gemini", func(t *testing.T) {
		require.JSONEq(t,
			`{"error":{"code":429,"message":"slow down","status":"RESOURCE_EXHAUSTED"}}`,
			string(e.ToJSON(FormatGemini)))
	})

	t.Run("details carried in openai shape", func(t *testing.T) {
		withDetails := InvalidRequest("bad field").WithDetails(map[string]interface{}{"field": "model"})
		require.JSONEq(t,
			`{"error":{"message":"bad field","type":"invalid_request","details":{"field":"model"}}}`,
			string(withDetails.ToJSON(FormatOpenAI)))
	})
}

func TestStatusMappings(t *testing.T) {
	cases := []struct {
		status    int
		anthropic string
		gemini    string
	}{
		{http.StatusUnauthorized, "authentication_error", "UNAUTHENTICATED"},
		{http.StatusForbidden, "permission_error", "PERMISSION_DENIED"},
		{http.StatusNotFound, "not_found_error", "NOT_FOUND"},
		{http.StatusBadRequest, "invalid_request_error", "INVALID_ARGUMENT"},
		{http.StatusBadGateway, "api_error", "UNAVAILABLE"},
		{http.StatusGatewayTimeout, "api_error", "DEADLINE_EXCEEDED"},
	}
	for _, tc := range cases {
		e := New(tc.status, "x", "m")
		require.Equal(t, tc.anthropic, e.anthropicType(), "status %d", tc.status)
		require.Equal(t, tc.gemini, e.toGeminiStatus(), "status %d", tc.status)
	}
}

func TestFromStatus(t *testing.T) {
	require.Equal(t, TypeUnauthorized, FromStatus(401, "m").Type)
	require.Equal(t, TypeRateLimited, FromStatus(429, "m").Type)
	require.Equal(t, TypeInvalidRequest, FromStatus(400, "m").Type)
	require.Equal(t, TypeRequestFailed, FromStatus(503, "m").Type)
}

func TestIsRetryable(t *testing.T) {
	require.True(t, RateLimited("m").IsRetryable())
	require.True(t, RequestFailed("m").IsRetryable())
	require.True(t, Timeout("m").IsRetryable())
	require.False(t, Unauthorized("m").IsRetryable())
	require.False(t, InvalidRequest("m").IsRetryable())
	require.False(t, ModelNotFound("m").IsRetryable())
}

func TestAsAPIError(t *testing.T) {
	require.Nil(t, AsAPIError(nil))
	orig := Forbidden("no")
	require.Same(t, orig, AsAPIError(orig))
	wrapped := AsAPIError(http.ErrBodyNotAllowed)
	require.Equal(t, TypeInternal, wrapped.Type)
}
