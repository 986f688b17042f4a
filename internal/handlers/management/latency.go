package management

import (
	"context"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"llmgate/internal/constants"

	"github.com/gin-gonic/gin"
)

// EndpointLatency is one probe result.
type EndpointLatency struct {
	Endpoint  string  `json:"endpoint"`
	LatencyMS float64 `json:"latency_ms"`
	OK        bool    `json:"ok"`
	Error     string  `json:"error,omitempty"`
}

// POST /api/management/upstreams/:id/latency probes every endpoint of one
// upstream concurrently.
func (h *Handler) ProbeUpstream(c *gin.Context) {
	id := c.Param("id")
	up := h.cfg.Current().UpstreamByID(id)
	if up == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "upstream not found: " + id, "type": "upstream_not_found"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"upstream_id": id,
		"results":     h.probeEndpoints(c.Request.Context(), up.Endpoints),
	})
}

// POST /api/management/latency/test probes arbitrary endpoints from the body.
func (h *Handler) ProbeEndpoints(c *gin.Context) {
	var in struct {
		Endpoints []string `json:"endpoints"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || len(in.Endpoints) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "endpoints is required", "type": "invalid_request"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": h.probeEndpoints(c.Request.Context(), in.Endpoints)})
}

func (h *Handler) probeEndpoints(ctx context.Context, endpoints []string) []EndpointLatency {
	results := make([]EndpointLatency, len(endpoints))
	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func(i int, ep string) {
			defer wg.Done()
			results[i] = h.probeOne(ctx, ep)
		}(i, ep)
	}
	wg.Wait()
	return results
}

func (h *Handler) probeOne(ctx context.Context, endpoint string) EndpointLatency {
	ctx, cancel := context.WithTimeout(ctx, constants.LatencyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return EndpointLatency{Endpoint: endpoint, Error: err.Error()}
	}
	start := time.Now()
	resp, err := h.client.Unary().Do(req)
	elapsed := time.Since(start)
	if err != nil {
		// Some endpoints reject the pooled client (TLS fingerprinting,
		// HEAD handling). curl gets a second opinion before reporting down.
		if ms, curlErr := curlProbe(ctx, endpoint); curlErr == nil {
			return EndpointLatency{Endpoint: endpoint, LatencyMS: ms, OK: true}
		}
		return EndpointLatency{Endpoint: endpoint, Error: err.Error()}
	}
	resp.Body.Close()
	return EndpointLatency{
		Endpoint:  endpoint,
		LatencyMS: float64(elapsed.Microseconds()) / 1000,
		OK:        resp.StatusCode < 500,
	}
}

func curlProbe(ctx context.Context, endpoint string) (float64, error) {
	out, err := exec.CommandContext(ctx, "curl", "-sI", "-o", "/dev/null",
		"-w", "%{time_total}", "--max-time",
		strconv.Itoa(int(constants.LatencyProbeTimeout.Seconds())), endpoint).Output()
	if err != nil {
		return 0, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, err
	}
	return secs * 1000, nil
}
