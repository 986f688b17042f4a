package upstream

import (
	"net"
	"net/http"
	"sync"

	"llmgate/internal/constants"
	"llmgate/internal/netutil"
)

// Client owns the pooled HTTP clients used for upstream traffic. The unary
// client carries a total deadline; the streaming client allows long-lived
// SSE bodies under a looser bound.
type Client struct {
	mu        sync.RWMutex
	proxy     string
	unary     *http.Client
	streaming *http.Client
}

// NewClient builds a client pair honoring the proxy policy.
func NewClient(proxy string) *Client {
	c := &Client{}
	c.rebuildLocked(proxy)
	return c
}

// SetProxy swaps both transports when the proxy policy changes.
func (c *Client) SetProxy(proxy string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proxy == proxy && c.unary != nil {
		return
	}
	c.rebuildLocked(proxy)
}

func (c *Client) rebuildLocked(proxy string) {
	c.proxy = proxy
	c.unary = &http.Client{
		Timeout:   constants.UpstreamRequestTimeout,
		Transport: newTransport(proxy),
	}
	c.streaming = &http.Client{
		Timeout:   constants.UpstreamStreamTimeout,
		Transport: newTransport(proxy),
	}
}

func newTransport(proxy string) *http.Transport {
	return &http.Transport{
		Proxy: netutil.ProxyFunc(proxy),
		DialContext: (&net.Dialer{
			Timeout:   constants.UpstreamConnectTimeout,
			KeepAlive: constants.DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:        constants.DefaultMaxIdleConns,
		MaxIdleConnsPerHost: constants.DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     constants.DefaultIdleConnTimeout,
		TLSHandshakeTimeout: constants.DefaultTLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// Unary returns the client for non-streaming requests.
func (c *Client) Unary() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unary
}

// Streaming returns the client for SSE requests.
func (c *Client) Streaming() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streaming
}
