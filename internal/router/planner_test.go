package router

import (
	"testing"

	"llmgate/internal/config"
	"llmgate/internal/forward"

	"github.com/stretchr/testify/require"
)

func testSettings() *config.Settings {
	return &config.Settings{
		EnableRetryFallback: true,
		Upstreams: []config.Upstream{
			{ID: "oai", Endpoints: []string{"https://api.openai.com"}},
			{ID: "ant", Endpoints: []string{"https://api.anthropic.com"}},
		},
		Models: []config.ModelCfg{
			{
				ID:          "gpt-4o",
				DisplayName: "GPT 4 Omni",
				Priority:    10,
				Routes: []config.ModelRoute{
					{Provider: "openai", UpstreamID: "oai", Priority: 5},
					{Provider: "anthropic", UpstreamID: "ant", UpstreamModelID: "claude-3-5-sonnet", Priority: 1},
				},
			},
			{ID: "local-only", Provider: "openai", UpstreamID: "missing"},
			{ID: "temp-model", Provider: "openai", UpstreamID: "oai", IsTemporary: true, Priority: 99},
		},
	}
}

func TestLookupModel(t *testing.T) {
	s := testSettings()

	require.Len(t, LookupModel(s, "gpt-4o"), 1)
	require.Len(t, LookupModel(s, "GPT 4 OMNI"), 1)
	require.Empty(t, LookupModel(s, "nope"))

	auto := LookupModel(s, "auto")
	require.Len(t, auto, 2) // temporary models excluded
	require.Equal(t, "gpt-4o", auto[0].ID)
}

func TestBuildPlan(t *testing.T) {
	t.Run("orders routes by priority and caps attempts", func(t *testing.T) {
		s := testSettings()
		plan, apiErr := BuildPlan(s, "gpt-4o", "")
		require.Nil(t, apiErr)
		require.Equal(t, "gpt-4o", plan.ModelID)
		require.Len(t, plan.Routes, 2)
		require.Equal(t, "oai", plan.Routes[0].Upstream.ID)
		require.Equal(t, "gpt-4o", plan.Routes[0].UpstreamModel)
		require.Equal(t, "claude-3-5-sonnet", plan.Routes[1].UpstreamModel)
		require.Equal(t, 1, plan.RetryOverride)
	})

	t.Run("provider hint filters routes", func(t *testing.T) {
		s := testSettings()
		plan, apiErr := BuildPlan(s, "gpt-4o", forward.ProviderAnthropic)
		require.Nil(t, apiErr)
		require.Len(t, plan.Routes, 1)
		require.Equal(t, "ant", plan.Routes[0].Upstream.ID)
		require.Zero(t, plan.RetryOverride)
	})

	t.Run("fallback disabled keeps only the best route", func(t *testing.T) {
		s := testSettings()
		s.EnableRetryFallback = false
		plan, apiErr := BuildPlan(s, "gpt-4o", "")
		require.Nil(t, apiErr)
		require.Len(t, plan.Routes, 1)
		require.Equal(t, "oai", plan.Routes[0].Upstream.ID)
		require.Zero(t, plan.RetryOverride)
	})

	t.Run("hint without a matching route falls back to all routes", func(t *testing.T) {
		s := testSettings()
		plan, apiErr := BuildPlan(s, "gpt-4o", forward.ProviderGemini)
		require.Nil(t, apiErr)
		require.Len(t, plan.Routes, 2)
		require.Equal(t, "oai", plan.Routes[0].Upstream.ID)
	})

	t.Run("unknown model", func(t *testing.T) {
		s := testSettings()
		_, apiErr := BuildPlan(s, "nope", "")
		require.NotNil(t, apiErr)
		require.Equal(t, 404, apiErr.HTTPStatus)
	})

	t.Run("gemini path model synthesized onto the gemini upstream", func(t *testing.T) {
		s := testSettings()
		s.Upstreams = append(s.Upstreams, config.Upstream{ID: "gemini", Endpoints: []string{"https://generativelanguage.googleapis.com"}})
		plan, apiErr := BuildPlan(s, "gemini-exp-1206", forward.ProviderGemini)
		require.Nil(t, apiErr)
		require.Len(t, plan.Routes, 1)
		require.Equal(t, "gemini", plan.Routes[0].Upstream.ID)
		require.Equal(t, "gemini-exp-1206", plan.Routes[0].UpstreamModel)
	})

	t.Run("no synthesis without the gemini hint", func(t *testing.T) {
		s := testSettings()
		s.Upstreams = append(s.Upstreams, config.Upstream{ID: "gemini"})
		_, apiErr := BuildPlan(s, "gemini-exp-1206", forward.ProviderOpenAI)
		require.NotNil(t, apiErr)
		require.Equal(t, 404, apiErr.HTTPStatus)
	})

	t.Run("model with no usable upstream", func(t *testing.T) {
		s := testSettings()
		_, apiErr := BuildPlan(s, "local-only", "")
		require.NotNil(t, apiErr)
	})
}

func TestExtractGeminiModel(t *testing.T) {
	model, action := ExtractGeminiModel("/v1beta/models/gemini-pro:streamGenerateContent")
	require.Equal(t, "gemini-pro", model)
	require.Equal(t, "streamGenerateContent", action)
	require.True(t, IsGeminiStreamAction(action))

	model, action = ExtractGeminiModel("/v1/models/gemini-2.0-flash:generateContent")
	require.Equal(t, "gemini-2.0-flash", model)
	require.False(t, IsGeminiStreamAction(action))

	model, action = ExtractGeminiModel("/v1beta/models/gemini-pro")
	require.Equal(t, "gemini-pro", model)
	require.Empty(t, action)

	model, _ = ExtractGeminiModel("/health")
	require.Empty(t, model)
}
