package server

import (
	"strings"

	"llmgate/internal/config"
	"llmgate/internal/events"
	ah "llmgate/internal/handlers/anthropic"
	common "llmgate/internal/handlers/common"
	gh "llmgate/internal/handlers/gemini"
	mgmt "llmgate/internal/handlers/management"
	oh "llmgate/internal/handlers/openai"
	"llmgate/internal/limits"
	mw "llmgate/internal/middleware"
	"llmgate/internal/upstream"
	"llmgate/internal/usage"

	"github.com/gin-gonic/gin"
)

// Dependencies encapsulates the runtime services behind the HTTP engine.
type Dependencies struct {
	Config  *config.Manager
	Client  *upstream.Client
	Limits  *limits.Manager
	Ledger  usage.Ledger
	Tracker *usage.Tracker
	Hub     *events.Hub
}

// BuildEngine constructs the Gin engine serving all three dialect surfaces
// plus the management API.
func BuildEngine(deps Dependencies) *gin.Engine {
	s := deps.Config.Current()
	if s.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(mw.Recovery())
	engine.Use(mw.RequestID())
	engine.Use(mw.CORS())
	engine.Use(mw.RequestLogger())
	if s.Server.RateLimitRPS > 0 {
		engine.Use(mw.RateLimiterAutoKey(s.Server.RateLimitRPS, s.Server.RateLimitBurst))
	}

	fwd := &common.Forwarder{
		Cfg:     deps.Config,
		Client:  deps.Client,
		Limits:  deps.Limits,
		Tracker: deps.Tracker,
		Budgets: deps.Ledger,
	}

	openaiH := oh.New(deps.Config, fwd)
	anthropicH := ah.New(deps.Config, fwd)
	geminiH := gh.New(deps.Config, fwd)
	mgmtH := mgmt.New(deps.Config, deps.Client, deps.Ledger, deps.Hub)

	engine.GET("/health", mgmtH.Health)
	engine.GET("/v1/health", mgmtH.Health)

	registerDialectRoutes(engine.Group(""), openaiH, anthropicH, geminiH)
	// Explicit per-dialect prefixes for clients that pin a base path.
	registerOpenAIRoutes(engine.Group("/openai"), openaiH)
	registerAnthropicRoutes(engine.Group("/anthropic"), anthropicH)
	registerGeminiRoutes(engine.Group("/gemini"), geminiH)

	registerManagementRoutes(engine, deps, mgmtH)

	return engine
}

func registerDialectRoutes(r *gin.RouterGroup, openaiH *oh.Handler, anthropicH *ah.Handler, geminiH *gh.Handler) {
	registerOpenAIRoutes(r, openaiH)
	registerAnthropicRoutes(r, anthropicH)

	r.GET("/v1beta/models", geminiH.ListModels)
	r.POST("/v1beta/*path", geminiH.Generate)
	// v1-style Gemini paths share the /v1/models prefix with the OpenAI
	// model routes; the colon in the last segment picks the dialect.
	r.POST("/v1/models/:model", func(c *gin.Context) {
		if strings.ContainsRune(c.Param("model"), ':') {
			geminiH.Generate(c)
			return
		}
		c.Status(404)
	})
}

func registerGeminiRoutes(r *gin.RouterGroup, h *gh.Handler) {
	r.GET("/v1beta/models", h.ListModels)
	r.GET("/v1/models", h.ListModels)
	r.POST("/v1beta/*path", h.Generate)
	r.POST("/v1/*path", h.Generate)
}

func registerOpenAIRoutes(r *gin.RouterGroup, h *oh.Handler) {
	r.POST("/v1/chat/completions", h.ChatCompletions)
	r.GET("/v1/models", h.ListModels)
	r.GET("/v1/models/:model", h.GetModel)
}

func registerAnthropicRoutes(r *gin.RouterGroup, h *ah.Handler) {
	r.POST("/v1/messages", h.Messages)
}

func registerManagementRoutes(engine *gin.Engine, deps Dependencies, h *mgmt.Handler) {
	api := engine.Group("/api", mw.ManagementAuth(deps.Config))

	m := api.Group("/management")
	m.GET("/token", h.GetToken)
	m.POST("/token/rotate", h.RotateToken)
	m.GET("/config", h.GetConfig)
	m.PUT("/config", h.UpdateConfig)
	m.POST("/config/reload", h.ReloadConfig)
	m.GET("/backups", h.ListBackups)
	m.POST("/upstreams/:id/latency", h.ProbeUpstream)
	m.POST("/latency/test", h.ProbeEndpoints)

	// Short-path aliases kept for existing clients.
	api.GET("/forward/token", h.GetToken)
	api.POST("/forward/token", h.RotateToken)
	api.POST("/upstreams/:id/latency", h.ProbeUpstream)
	api.POST("/latency/test", h.ProbeEndpoints)

	u := api.Group("/usage")
	u.GET("/summary", h.UsageSummary)
	u.GET("/series", h.UsageSeries)
	u.GET("/recent", h.UsageRecent)
	u.GET("/channels", h.UsageChannels)
	u.GET("/models", h.UsageModels)

	api.GET("/events", events.WebsocketHandler(deps.Hub))
}
