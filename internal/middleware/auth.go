package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"llmgate/internal/config"

	"github.com/gin-gonic/gin"
)

// ManagementAuth gates admin routes behind the forward token.
func ManagementAuth(mgr *config.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := managementToken(c)
		expected := mgr.Current().ForwardToken
		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"message": "Invalid or missing management token",
					"type":    "authentication_error",
				},
			})
			return
		}
		c.Next()
	}
}

func managementToken(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("x-ccr-forward-token")); v != "" {
		return v
	}
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
