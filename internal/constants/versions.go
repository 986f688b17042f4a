package constants

const (
	// Version is the reported gateway version.
	Version = "1.0.0"
	// AnthropicVersion is the anthropic-version header sent to native upstreams.
	AnthropicVersion = "2023-06-01"
	// ModelsCreatedEpoch is the fixed created timestamp reported by /v1/models.
	ModelsCreatedEpoch = 1700000000
)
