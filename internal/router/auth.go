package router

import (
	"strings"

	"llmgate/internal/forward"

	"github.com/gin-gonic/gin"
)

// AuthMode records which credential style the caller used. The same slot is
// reused when forwarding to upstreams that expect that style.
type AuthMode string

const (
	AuthForwardToken AuthMode = "forward_token"
	AuthBearer       AuthMode = "bearer"
	AuthAPIKey       AuthMode = "api_key"
	AuthGoogleKey    AuthMode = "goog_api_key"
	AuthNone         AuthMode = "none"
)

// Credentials is the resolved caller identity.
type Credentials struct {
	Mode  AuthMode
	Token string
}

// ResolveAuth extracts caller credentials, most specific header first.
func ResolveAuth(c *gin.Context) Credentials {
	if v := strings.TrimSpace(c.GetHeader("x-ccr-forward-token")); v != "" {
		return Credentials{Mode: AuthForwardToken, Token: v}
	}
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return Credentials{Mode: AuthBearer, Token: strings.TrimSpace(auth[7:])}
	}
	if v := strings.TrimSpace(c.GetHeader("x-api-key")); v != "" {
		return Credentials{Mode: AuthAPIKey, Token: v}
	}
	if v := strings.TrimSpace(c.GetHeader("x-goog-api-key")); v != "" {
		return Credentials{Mode: AuthGoogleKey, Token: v}
	}
	if v := strings.TrimSpace(c.Query("key")); v != "" {
		return Credentials{Mode: AuthGoogleKey, Token: v}
	}
	return Credentials{Mode: AuthNone}
}

// ProviderHintFromPath maps a dialect-prefixed request path to the provider
// it pins. Unprefixed paths carry no hint.
func ProviderHintFromPath(path string) forward.Provider {
	switch {
	case strings.HasPrefix(path, "/openai/"):
		return forward.ProviderOpenAI
	case strings.HasPrefix(path, "/anthropic/"):
		return forward.ProviderAnthropic
	case strings.HasPrefix(path, "/gemini/"):
		return forward.ProviderGemini
	}
	return ""
}

// IsForwardToken reports whether the caller authenticated with the local
// gateway token.
func (cr Credentials) IsForwardToken(configured string) bool {
	if configured == "" || cr.Token == "" {
		return false
	}
	return cr.Token == configured
}
