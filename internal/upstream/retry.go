package upstream

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"llmgate/internal/constants"
	apierr "llmgate/internal/errors"

	log "github.com/sirupsen/logrus"
)

// RetryConfig controls SendWithRetry backoff behavior.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the stock retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  constants.DefaultMaxRetryAttempts,
		InitialDelay: constants.DefaultRetryInitial,
		MaxDelay:     constants.DefaultRetryMax,
	}
}

// Delay returns the backoff before retrying after the given zero-based
// attempt, with uniform jitter in [0, delay/4].
func (rc RetryConfig) Delay(attempt int) time.Duration {
	shift := attempt
	if shift > constants.RetryBackoffShiftCap {
		shift = constants.RetryBackoffShiftCap
	}
	delay := rc.InitialDelay * (1 << uint(shift))
	if delay > rc.MaxDelay || delay <= 0 {
		delay = rc.MaxDelay
	}
	if delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))
	}
	return delay
}

// IsRetryableStatus reports whether an upstream status warrants another attempt.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Request describes one upstream exchange, possibly across several endpoints.
type Request struct {
	Method    string
	Endpoints []string
	// BuildURL produces the full URL for an endpoint base.
	BuildURL func(endpoint string) string
	Headers  map[string]string
	Body     []byte
	Stream   bool
}

// SendWithRetry performs the request, rotating endpoints per attempt and
// backing off on retryable statuses and transport errors. A non-retryable
// response is returned as-is, body unread.
func (c *Client) SendWithRetry(ctx context.Context, req *Request, rc RetryConfig) (*http.Response, error) {
	if len(req.Endpoints) == 0 {
		return nil, apierr.UpstreamNotFound("upstream has no endpoints")
	}
	attempts := rc.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	client := c.Unary()
	if req.Stream {
		client = c.Streaming()
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := rc.Delay(attempt - 1)
			select {
			case <-ctx.Done():
				return nil, apierr.Timeout("request canceled while backing off")
			case <-time.After(delay):
			}
		}

		endpoint := req.Endpoints[attempt%len(req.Endpoints)]
		url := req.BuildURL(endpoint)

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bytes.NewReader(req.Body))
		if err != nil {
			return nil, apierr.Internal("build upstream request: " + err.Error())
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}
		if httpReq.Header.Get("Content-Type") == "" && len(req.Body) > 0 {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			lastErr = err
			log.WithFields(log.Fields{
				"endpoint": endpoint,
				"attempt":  attempt + 1,
				"error":    err.Error(),
			}).Warn("upstream request failed")
			if ctx.Err() != nil {
				return nil, apierr.Timeout("upstream request timed out")
			}
			continue
		}

		if IsRetryableStatus(resp.StatusCode) && attempt+1 < attempts {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = apierr.FromStatus(resp.StatusCode, string(body))
			log.WithFields(log.Fields{
				"endpoint": endpoint,
				"attempt":  attempt + 1,
				"status":   resp.StatusCode,
			}).Warn("upstream returned retryable status")
			continue
		}
		return resp, nil
	}

	if apiErr, ok := lastErr.(*apierr.APIError); ok {
		return nil, apiErr
	}
	msg := "upstream request failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return nil, apierr.RequestFailed(msg)
}
