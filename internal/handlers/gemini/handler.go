package gemini

import (
	"encoding/json"
	"strings"

	"llmgate/internal/config"
	apperrors "llmgate/internal/errors"
	"llmgate/internal/forward"
	common "llmgate/internal/handlers/common"
	"llmgate/internal/router"
	"llmgate/internal/translator"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// allowedFields is the accepted surface of a generateContent request.
var allowedFields = []string{
	"contents", "systemInstruction", "system_instruction", "generationConfig",
	"tools", "toolConfig", "safetySettings", "cachedContent", "labels",
}

// Handler serves the Gemini GenerateContent surface.
type Handler struct {
	cfg *config.Manager
	fwd *common.Forwarder
}

func New(cfg *config.Manager, fwd *common.Forwarder) *Handler {
	return &Handler{cfg: cfg, fwd: fwd}
}

// Generate handles POST /v1beta/models/{model}:{action} and the /v1 alias.
// The model and action live in the path, not the body.
func (h *Handler) Generate(c *gin.Context) {
	model, action := router.ExtractGeminiModel(c.Request.URL.Path)
	if model == "" {
		common.AbortWithAPIError(c, apperrors.FormatGemini, apperrors.InvalidRequest("model missing from path"))
		return
	}
	stream := router.IsGeminiStreamAction(action)

	body, err := common.ReadBody(c)
	if err != nil {
		common.AbortWithAPIError(c, apperrors.FormatGemini, apperrors.InvalidRequest("read request body: "+err.Error()))
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !gjson.ValidBytes(body) {
		common.AbortWithAPIError(c, apperrors.FormatGemini, apperrors.InvalidRequest("request body is not valid JSON"))
		return
	}

	body = normalizeSystemInstruction(body)
	body = filterGenerationConfig(body)
	body = translator.SanitizeJSON(translator.FilterFields(body, allowedFields))

	h.fwd.Handle(c, &common.ForwardRequest{
		ClientFormat:  translator.FormatGemini,
		ErrorFormat:   apperrors.FormatGemini,
		Model:         model,
		Body:          body,
		Stream:        stream,
		Creds:         router.ResolveAuth(c),
		Hint:          forward.ProviderGemini,
		GeminiVersion: router.ExtractGeminiVersion(c.Request.URL.Path),
	})
}

// normalizeSystemInstruction folds the snake_case alias into the canonical key.
func normalizeSystemInstruction(body []byte) []byte {
	snake := gjson.GetBytes(body, "system_instruction")
	if !snake.Exists() {
		return body
	}
	if !gjson.GetBytes(body, "systemInstruction").Exists() {
		body, _ = sjson.SetRawBytes(body, "systemInstruction", []byte(snake.Raw))
	}
	body, _ = sjson.DeleteBytes(body, "system_instruction")
	return body
}

// filterGenerationConfig drops generationConfig keys the upstreams reject.
func filterGenerationConfig(body []byte) []byte {
	cfg := gjson.GetBytes(body, "generationConfig")
	if !cfg.IsObject() {
		return body
	}
	kept := make(map[string]interface{})
	for _, key := range translator.AllowedGenerationConfigFields {
		if v := cfg.Get(key); v.Exists() {
			kept[key] = v.Value()
		}
	}
	raw, err := json.Marshal(kept)
	if err != nil {
		return body
	}
	out, err := sjson.SetRawBytes(body, "generationConfig", raw)
	if err != nil {
		return body
	}
	return out
}

// IsGenerateAction reports whether a wildcard path addresses the
// generate surface this handler serves.
func IsGenerateAction(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, ":generatecontent") ||
		strings.Contains(lower, ":streamgeneratecontent")
}

// ListModels handles GET /v1beta/models.
func (h *Handler) ListModels(c *gin.Context) {
	s := h.cfg.Current()
	models := make([]gin.H, 0, len(s.Models))
	for _, m := range s.Models {
		models = append(models, gin.H{
			"name":                       "models/" + m.ID,
			"displayName":                displayName(&m),
			"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent"},
		})
	}
	c.JSON(200, gin.H{"models": models})
}

func displayName(m *config.ModelCfg) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ID
}
