package middleware

import (
	"time"

	"llmgate/internal/logging"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestLogger logs HTTP requests
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		modelVal, _ := c.Get("model")
		channelVal, _ := c.Get("channel")
		upstreamVal, _ := c.Get("upstream_id")
		extras := log.Fields{
			"status":      status,
			"latency_ms":  logging.DurationMS(latency),
			"user_agent":  c.Request.UserAgent(),
			"method":      method,
			"path":        path,
			"model":       modelVal,
			"channel":     channelVal,
			"upstream_id": upstreamVal,
		}
		logging.WithReq(c, extras).Info("http_request")
	}
}
