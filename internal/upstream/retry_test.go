package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apierr "llmgate/internal/errors"

	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestSendWithRetry(t *testing.T) {
	t.Run("retryable status then success", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		c := NewClient("")
		resp, err := c.SendWithRetry(context.Background(), &Request{
			Method:    http.MethodPost,
			Endpoints: []string{srv.URL},
			BuildURL:  func(e string) string { return e + "/v1/chat/completions" },
			Body:      []byte(`{}`),
		}, fastRetry(3))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.EqualValues(t, 2, atomic.LoadInt32(&calls))
	})

	t.Run("non-retryable status returned as-is", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key"}}`))
		}))
		defer srv.Close()

		c := NewClient("")
		resp, err := c.SendWithRetry(context.Background(), &Request{
			Method:    http.MethodPost,
			Endpoints: []string{srv.URL},
			BuildURL:  func(e string) string { return e },
		}, fastRetry(3))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})

	t.Run("endpoints rotate between attempts", func(t *testing.T) {
		var firstCalls, secondCalls int32
		first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&firstCalls, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer first.Close()
		second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&secondCalls, 1)
			w.Write([]byte(`{}`))
		}))
		defer second.Close()

		c := NewClient("")
		resp, err := c.SendWithRetry(context.Background(), &Request{
			Method:    http.MethodPost,
			Endpoints: []string{first.URL, second.URL},
			BuildURL:  func(e string) string { return e },
		}, fastRetry(2))
		require.NoError(t, err)
		resp.Body.Close()
		require.EqualValues(t, 1, atomic.LoadInt32(&firstCalls))
		require.EqualValues(t, 1, atomic.LoadInt32(&secondCalls))
	})

	t.Run("budget exhausted surfaces last error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewClient("")
		resp, err := c.SendWithRetry(context.Background(), &Request{
			Method:    http.MethodPost,
			Endpoints: []string{srv.URL},
			BuildURL:  func(e string) string { return e },
		}, fastRetry(2))
		// the last attempt's response is returned, not retried
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	})

	t.Run("no endpoints", func(t *testing.T) {
		c := NewClient("")
		_, err := c.SendWithRetry(context.Background(), &Request{Method: http.MethodPost}, fastRetry(1))
		require.Error(t, err)
		require.Equal(t, apierr.TypeUpstreamNotFound, apierr.AsAPIError(err).Type)
	})
}

func TestRetryDelayBounds(t *testing.T) {
	rc := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	for attempt := 0; attempt < 8; attempt++ {
		d := rc.Delay(attempt)
		require.Greater(t, d, time.Duration(0))
		// capped at MaxDelay plus a quarter of jitter
		require.LessOrEqual(t, d, time.Second+time.Second/4)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	for _, status := range []int{429, 500, 502, 503, 504} {
		require.True(t, IsRetryableStatus(status), "status %d", status)
	}
	for _, status := range []int{200, 400, 401, 403, 404} {
		require.False(t, IsRetryableStatus(status), "status %d", status)
	}
}
