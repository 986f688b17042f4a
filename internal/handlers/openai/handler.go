package openai

import (
	"net/http"
	"strings"

	"llmgate/internal/config"
	"llmgate/internal/constants"
	apperrors "llmgate/internal/errors"
	common "llmgate/internal/handlers/common"
	"llmgate/internal/router"
	"llmgate/internal/translator"
	"llmgate/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// allowedFields is the accepted surface of a chat completion request.
// Unknown fields are dropped before forwarding.
var allowedFields = []string{
	"model", "messages", "stream", "stream_options", "temperature", "top_p",
	"max_tokens", "max_completion_tokens", "stop", "n", "seed", "user",
	"presence_penalty", "frequency_penalty", "logit_bias", "logprobs",
	"top_logprobs", "response_format", "tools", "tool_choice",
	"parallel_tool_calls", "reasoning_effort", "thinking",
}

// Handler serves the OpenAI-compatible surface.
type Handler struct {
	cfg *config.Manager
	fwd *common.Forwarder
}

func New(cfg *config.Manager, fwd *common.Forwarder) *Handler {
	return &Handler{cfg: cfg, fwd: fwd}
}

// POST /v1/chat/completions
func (h *Handler) ChatCompletions(c *gin.Context) {
	body, err := common.ReadBody(c)
	if err != nil {
		common.AbortWithAPIError(c, apperrors.FormatOpenAI, apperrors.InvalidRequest("read request body: "+err.Error()))
		return
	}
	if !gjson.ValidBytes(body) {
		common.AbortWithAPIError(c, apperrors.FormatOpenAI, apperrors.InvalidRequest("request body is not valid JSON"))
		return
	}

	model := strings.TrimSpace(gjson.GetBytes(body, "model").String())
	if model == "" {
		common.AbortWithAPIError(c, apperrors.FormatOpenAI, apperrors.InvalidRequest("model is required"))
		return
	}

	body, stream := upstream.NormalizeStreamFlag(body)
	body = translator.SanitizeJSON(translator.FilterFields(body, allowedFields))

	h.fwd.Handle(c, &common.ForwardRequest{
		ClientFormat: translator.FormatOpenAI,
		ErrorFormat:  apperrors.FormatOpenAI,
		Model:        model,
		Body:         body,
		Stream:       stream,
		Creds:        router.ResolveAuth(c),
		Hint:         router.ProviderHintFromPath(c.Request.URL.Path),
	})
}

// GET /v1/models
func (h *Handler) ListModels(c *gin.Context) {
	s := h.cfg.Current()
	items := make([]gin.H, 0, len(s.Models))
	for _, m := range s.Models {
		items = append(items, modelObject(&m))
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": items})
}

// GET /v1/models/:model
func (h *Handler) GetModel(c *gin.Context) {
	name := c.Param("model")
	s := h.cfg.Current()
	for _, m := range s.Models {
		if strings.EqualFold(m.ID, name) {
			c.JSON(http.StatusOK, modelObject(&m))
			return
		}
	}
	common.AbortWithAPIError(c, apperrors.FormatOpenAI, apperrors.ModelNotFound("model not found: "+name))
}

func modelObject(m *config.ModelCfg) gin.H {
	return gin.H{
		"id":       m.ID,
		"object":   "model",
		"created":  constants.ModelsCreatedEpoch,
		"owned_by": "llmgate",
	}
}
