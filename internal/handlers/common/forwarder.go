package common

import (
	"io"
	"net/http"
	"strings"
	"time"

	"llmgate/internal/config"
	apperrors "llmgate/internal/errors"
	"llmgate/internal/forward"
	"llmgate/internal/limits"
	"llmgate/internal/logging"
	"llmgate/internal/router"
	"llmgate/internal/translator"
	"llmgate/internal/upstream"
	"llmgate/internal/usage"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

// Forwarder is the shared forwarding pipeline behind all three dialect
// surfaces: plan, admit, translate, send, translate back, account.
type Forwarder struct {
	Cfg     *config.Manager
	Client  *upstream.Client
	Limits  *limits.Manager
	Tracker *usage.Tracker
	Budgets limits.BudgetReader
}

// ForwardRequest is one admitted client call in its native dialect.
type ForwardRequest struct {
	ClientFormat translator.Format
	ErrorFormat  apperrors.ErrorFormat
	Model        string
	Body         []byte
	Stream       bool
	Creds        router.Credentials
	// Hint pins route selection to one dialect when the caller used a
	// dialect-prefixed path.
	Hint forward.Provider
	// GeminiVersion is the API version segment from the inbound path.
	GeminiVersion string

	// channel and tool label the request in the usage ledger; they come
	// from the x-ccr-channel and x-ccr-tool headers.
	channel string
	tool    string
}

func headerOrDefault(c *gin.Context, name, def string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
		return v
	}
	return def
}

// Handle runs the full forwarding pipeline and writes the response.
func (f *Forwarder) Handle(c *gin.Context, req *ForwardRequest) {
	s := f.Cfg.Current()
	req.channel = headerOrDefault(c, "x-ccr-channel", "web")
	req.tool = headerOrDefault(c, "x-ccr-tool", "unknown")
	c.Set("model", req.Model)
	c.Set("channel", req.channel)

	// A configured forward token gates the whole forwarding surface.
	if s.ForwardToken != "" && req.Creds.Token == "" {
		AbortWithAPIError(c, req.ErrorFormat, apperrors.Unauthorized("missing credentials"))
		return
	}

	plan, apiErr := router.BuildPlan(s, req.Model, req.Hint)
	if apiErr != nil {
		AbortWithAPIError(c, req.ErrorFormat, apiErr)
		return
	}

	guard, apiErr := f.Limits.CheckAndAcquire(c.Request.Context(), req.Creds.Token, &s.Limits, f.Budgets)
	if apiErr != nil {
		AbortWithAPIError(c, req.ErrorFormat, apiErr)
		return
	}
	defer guard.Release()

	rc := f.retryConfig(s, plan)

	var lastErr *apperrors.APIError
	for i := range plan.Routes {
		route := plan.Routes[i]
		if i > 0 {
			select {
			case <-c.Request.Context().Done():
				AbortWithAPIError(c, req.ErrorFormat, apperrors.Timeout("request canceled between attempts"))
				return
			case <-time.After(rc.Delay(i - 1)):
			}
		}

		upFmt := formatForRoute(&route)
		dialect := f.dialectFor(req, upFmt)
		body := f.prepareBody(req, &route, upFmt)

		ureq := &upstream.Request{
			Method:    http.MethodPost,
			Endpoints: route.Upstream.Endpoints,
			BuildURL: func(endpoint string) string {
				return dialect.BuildURL(endpoint, route.UpstreamModel, req.Stream)
			},
			Headers: dialect.BuildHeaders(f.resolveKey(s, &route, req.Creds), req.Stream),
			Body:    body,
			Stream:  req.Stream,
		}

		c.Set("upstream_id", route.Upstream.ID)
		resp, err := f.Client.SendWithRetry(c.Request.Context(), ureq, rc)
		if err != nil {
			lastErr = apperrors.AsAPIError(err)
			continue
		}

		if req.Stream {
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				if _, perr := upstream.ParseJSONResponse(resp); perr != nil {
					lastErr = apperrors.AsAPIError(perr)
				}
				continue
			}
			// First byte commits the route; no fallback past this point.
			f.streamResponse(c, req, plan, &route, dialect, upFmt, resp, body)
			return
		}

		upBody, perr := upstream.ParseJSONResponse(resp)
		if perr != nil {
			lastErr = apperrors.AsAPIError(perr)
			continue
		}

		// Misconfigured upstreams answer in the OpenAI shape regardless of
		// their declared dialect; convert instead of passing bytes through.
		respFmt := upFmt
		if respFmt != translator.FormatOpenAI && translator.LooksLikeOpenAIResponse(upBody) {
			logging.WithReq(c, log.Fields{
				"upstream_id": route.Upstream.ID,
				"declared":    string(upFmt),
			}).Warn("upstream answered in openai shape, converting")
			respFmt = translator.FormatOpenAI
		}

		out, terr := translator.TranslateResponse(c.Request.Context(), respFmt, req.ClientFormat, plan.ModelID, upBody)
		if terr != nil {
			lastErr = apperrors.Internal("translate response: " + terr.Error())
			continue
		}

		u := upstream.DialectFor(forward.ParseProvider(string(respFmt))).ExtractUsage(upBody)
		if u.PromptTokens == 0 {
			u.PromptTokens = dialect.EstimateRequestTokens(body)
		}
		f.track(s, req, plan, &route, u)

		c.Data(http.StatusOK, "application/json", out)
		return
	}

	if lastErr == nil {
		lastErr = apperrors.UpstreamNotFound("no usable route for model: " + req.Model)
	}
	AbortWithAPIError(c, req.ErrorFormat, lastErr)
}

// dialectFor picks the upstream adapter, pinning the Gemini API version
// carried by the inbound path.
func (f *Forwarder) dialectFor(req *ForwardRequest, upFmt translator.Format) upstream.Dialect {
	if upFmt == translator.FormatGemini && req.GeminiVersion != "" {
		return upstream.GeminiDialect(req.GeminiVersion)
	}
	return upstream.DialectFor(forward.ParseProvider(string(upFmt)))
}

func (f *Forwarder) streamResponse(c *gin.Context, req *ForwardRequest, plan *router.Plan, route *router.PlannedRoute, dialect upstream.Dialect, upFmt translator.Format, resp *http.Response, sentBody []byte) {
	defer resp.Body.Close()

	w, fl := PrepareSSE(c)
	adapter := NewStreamAdapter(upFmt, req.ClientFormat, plan.ModelID, dialect.EstimateRequestTokens(sentBody))

	scanner := NewSSEScanner(resp.Body)
	for {
		ev, done, err := scanner.Next()
		if err != nil {
			logging.WithReq(c, log.Fields{
				"upstream_id": route.Upstream.ID,
				"error":       err.Error(),
			}).Warn("upstream stream aborted")
			break
		}
		if done {
			break
		}
		for _, frame := range adapter.Feed(ev.Data) {
			if werr := SSEWriteRaw(w, fl, frame); werr != nil {
				f.trackStream(c, req, plan, route, dialect, sentBody, adapter)
				return
			}
		}
	}

	for _, frame := range adapter.Finish() {
		if werr := SSEWriteRaw(w, fl, frame); werr != nil {
			break
		}
	}
	if req.ClientFormat == translator.FormatOpenAI {
		_ = SSEWriteDone(w, fl)
	}

	f.trackStream(c, req, plan, route, dialect, sentBody, adapter)
}

func (f *Forwarder) trackStream(c *gin.Context, req *ForwardRequest, plan *router.Plan, route *router.PlannedRoute, dialect upstream.Dialect, sentBody []byte, adapter StreamAdapter) {
	u := adapter.Usage()
	if u.PromptTokens == 0 {
		u.PromptTokens = dialect.EstimateRequestTokens(sentBody)
	}
	f.track(f.Cfg.Current(), req, plan, route, u)
}

func (f *Forwarder) track(s *config.Settings, req *ForwardRequest, plan *router.Plan, route *router.PlannedRoute, u forward.TokenUsage) {
	if f.Tracker == nil {
		return
	}
	m := modelCfgByID(s, plan.ModelID)
	f.Tracker.Track(&usage.Record{
		Timestamp:        time.Now(),
		Channel:          req.channel,
		Tool:             req.tool,
		Model:            plan.ModelID,
		UpstreamID:       route.Upstream.ID,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		PriceUSD:         usage.ComputeCost(m, u.PromptTokens, u.CompletionTokens),
	})
}

// prepareBody translates the request into the upstream dialect and pins the
// upstream model and stream flag.
func (f *Forwarder) prepareBody(req *ForwardRequest, route *router.PlannedRoute, upFmt translator.Format) []byte {
	body := translator.TranslateRequest(req.ClientFormat, upFmt, route.UpstreamModel, req.Body, req.Stream)
	if upFmt != translator.FormatGemini {
		body, _ = sjson.SetBytes(body, "model", route.UpstreamModel)
		body, _ = sjson.SetBytes(body, "stream", req.Stream)
	}
	if upFmt == translator.FormatOpenAI && len(route.Upstream.Endpoints) > 0 &&
		translator.IsGLMTarget(route.Upstream.ID, route.UpstreamModel, route.Upstream.Endpoints[0]) {
		body = translator.ReduceForGLM(body)
	}
	return body
}

// resolveKey picks the upstream credential. The gateway token unlocks the
// upstream-configured key; any other caller token is passed through as-is,
// and the environment key is the last resort.
func (f *Forwarder) resolveKey(s *config.Settings, route *router.PlannedRoute, creds router.Credentials) string {
	if creds.Token != "" && !creds.IsForwardToken(s.ForwardToken) {
		return creds.Token
	}
	if route.Upstream.APIKey != "" {
		return route.Upstream.APIKey
	}
	return config.ProviderEnvKey(route.Route.Provider)
}

func (f *Forwarder) retryConfig(s *config.Settings, plan *router.Plan) upstream.RetryConfig {
	rc := upstream.DefaultRetryConfig()
	if s.RetryMaxAttempts != nil {
		rc.MaxAttempts = *s.RetryMaxAttempts
	}
	if s.RetryInitialMS != nil {
		rc.InitialDelay = time.Duration(*s.RetryInitialMS) * time.Millisecond
	}
	if s.RetryMaxMS != nil {
		rc.MaxDelay = time.Duration(*s.RetryMaxMS) * time.Millisecond
	}
	if plan.RetryOverride > 0 {
		rc.MaxAttempts = plan.RetryOverride
	}
	return rc
}

// formatForRoute resolves the wire dialect of an upstream. An explicit
// api_style wins over the route's provider.
func formatForRoute(route *router.PlannedRoute) translator.Format {
	style := route.Upstream.APIStyle
	if style == "" {
		style = route.Route.Provider
	}
	return translator.FromString(string(forward.ParseProvider(style)))
}

func modelCfgByID(s *config.Settings, id string) *config.ModelCfg {
	for i := range s.Models {
		if s.Models[i].ID == id {
			return &s.Models[i]
		}
	}
	return nil
}

// ReadBody slurps the request body with a sane cap.
func ReadBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request.Body, 32<<20))
}
