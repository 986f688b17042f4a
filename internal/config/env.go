package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment fallbacks recognized per provider when an upstream carries no key.
const (
	EnvOpenAIKey    = "CCR_OPENAI_KEY"
	EnvAnthropicKey = "CCR_ANTHROPIC_KEY"
	EnvGeminiKey    = "CCR_GEMINI_KEY"
)

// ProviderEnvKey returns the fallback API key for a provider from the environment.
func ProviderEnvKey(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return strings.TrimSpace(os.Getenv(EnvOpenAIKey))
	case "anthropic", "claude":
		return strings.TrimSpace(os.Getenv(EnvAnthropicKey))
	case "gemini":
		return strings.TrimSpace(os.Getenv(EnvGeminiKey))
	}
	return ""
}

func applyEnvOverrides(s *Settings) {
	if v := strings.TrimSpace(os.Getenv("LLMGATE_LISTEN")); v != "" {
		s.Server.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMGATE_DEBUG")); v != "" {
		s.Server.Debug = isTruthy(v)
	}
	if v := strings.TrimSpace(os.Getenv("LLMGATE_LOG_FILE")); v != "" {
		s.Server.LogFile = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMGATE_DATA_DIR")); v != "" {
		s.Server.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMGATE_POSTGRES_DSN")); v != "" {
		s.Server.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMGATE_REDIS_ADDR")); v != "" {
		s.Server.RedisAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMGATE_FORWARD_TOKEN")); v != "" {
		s.ForwardToken = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMGATE_PROXY")); v != "" {
		s.Proxy = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMGATE_RATE_LIMIT_RPS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Server.RateLimitRPS = n
		}
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
