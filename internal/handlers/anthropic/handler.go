package anthropic

import (
	"strings"

	"llmgate/internal/config"
	apperrors "llmgate/internal/errors"
	common "llmgate/internal/handlers/common"
	"llmgate/internal/router"
	"llmgate/internal/translator"
	"llmgate/internal/upstream"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// allowedFields is the accepted surface of a Messages request.
var allowedFields = []string{
	"model", "messages", "system", "max_tokens", "stop_sequences", "stream",
	"temperature", "top_p", "top_k", "tools", "tool_choice", "thinking",
	"metadata",
}

// Handler serves the Anthropic Messages surface.
type Handler struct {
	cfg *config.Manager
	fwd *common.Forwarder
}

func New(cfg *config.Manager, fwd *common.Forwarder) *Handler {
	return &Handler{cfg: cfg, fwd: fwd}
}

// POST /v1/messages
func (h *Handler) Messages(c *gin.Context) {
	body, err := common.ReadBody(c)
	if err != nil {
		common.AbortWithAPIError(c, apperrors.FormatAnthropic, apperrors.InvalidRequest("read request body: "+err.Error()))
		return
	}
	if !gjson.ValidBytes(body) {
		common.AbortWithAPIError(c, apperrors.FormatAnthropic, apperrors.InvalidRequest("request body is not valid JSON"))
		return
	}

	model := strings.TrimSpace(gjson.GetBytes(body, "model").String())
	if model == "" {
		common.AbortWithAPIError(c, apperrors.FormatAnthropic, apperrors.InvalidRequest("model is required"))
		return
	}

	body, stream := upstream.NormalizeStreamFlag(body)

	// Some clients post OpenAI-shaped bodies at the Messages endpoint;
	// reshape those instead of rejecting them.
	if looksLikeOpenAI(body) {
		log.WithField("model", model).Warn("openai-shaped request on messages endpoint, converting")
		body = translator.OpenAIToAnthropicRequest(model, body, stream)
	}

	if !translator.IsThinkingEnabled(body) {
		body, _ = sjson.DeleteBytes(body, "thinking")
	}
	body = translator.SanitizeJSON(translator.FilterFields(body, allowedFields))

	h.fwd.Handle(c, &common.ForwardRequest{
		ClientFormat: translator.FormatAnthropic,
		ErrorFormat:  apperrors.FormatAnthropic,
		Model:        model,
		Body:         body,
		Stream:       stream,
		Creds:        router.ResolveAuth(c),
		Hint:         router.ProviderHintFromPath(c.Request.URL.Path),
	})
}

// looksLikeOpenAI detects chat-completion markers that never appear in a
// native Messages request.
func looksLikeOpenAI(body []byte) bool {
	parsed := gjson.ParseBytes(body)
	for _, field := range []string{
		"max_completion_tokens", "frequency_penalty", "presence_penalty",
		"logit_bias", "response_format", "n",
	} {
		if parsed.Get(field).Exists() {
			return true
		}
	}
	shaped := false
	parsed.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		switch msg.Get("role").String() {
		case "system", "developer", "tool":
			shaped = true
			return false
		}
		if msg.Get("tool_calls").Exists() {
			shaped = true
			return false
		}
		return true
	})
	if shaped {
		return true
	}
	tools := parsed.Get("tools")
	if tools.IsArray() {
		for _, t := range tools.Array() {
			if t.Get("type").String() == "function" && t.Get("function").Exists() {
				return true
			}
		}
	}
	return false
}
