package constants

import "time"

const (
	// UpstreamRequestTimeout bounds a full non-streaming upstream exchange.
	UpstreamRequestTimeout = 120 * time.Second
	// UpstreamConnectTimeout bounds dialing an upstream endpoint.
	UpstreamConnectTimeout = 10 * time.Second
	// UpstreamStreamTimeout bounds a streaming upstream exchange end to end.
	UpstreamStreamTimeout = 300 * time.Second
	// LatencyProbeTimeout bounds a single endpoint latency probe.
	LatencyProbeTimeout = 8 * time.Second
	// ServerShutdownTimeout bounds graceful HTTP server shutdown.
	ServerShutdownTimeout = 30 * time.Second
)
