package translator

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// glmAllowedFields is the reduced whitelist accepted by GLM / Z.ai
// OpenAI-compatible endpoints. Anything else is rejected upstream.
var glmAllowedFields = []string{
	"model", "messages", "max_tokens", "temperature", "top_p",
	"stream", "stop", "tools", "tool_choice", "do_sample", "request_id", "user_id",
}

// IsGLMTarget reports whether the upstream needs the GLM request shape.
// The upstream id is authoritative; model prefix and endpoint host are
// fallbacks for configs that name the upstream something else.
func IsGLMTarget(upstreamID, model, endpoint string) bool {
	if strings.EqualFold(upstreamID, "zai") || strings.EqualFold(upstreamID, "z.ai") {
		return true
	}
	m := strings.ToLower(model)
	if strings.HasPrefix(m, "glm-") || strings.HasPrefix(m, "chatglm") {
		return true
	}
	e := strings.ToLower(endpoint)
	return strings.Contains(e, "bigmodel.cn") || strings.Contains(e, "z.ai")
}

// ReduceForGLM trims an OpenAI-shaped request down to the GLM whitelist and
// collapses multimodal message content into plain text.
func ReduceForGLM(raw []byte) []byte {
	out := FilterFields(raw, glmAllowedFields)

	messages := gjson.GetBytes(out, "messages")
	if !messages.IsArray() {
		return out
	}
	for i, msg := range messages.Array() {
		content := msg.Get("content")
		if !content.IsArray() {
			continue
		}
		var sb strings.Builder
		for _, part := range content.Array() {
			switch part.Get("type").String() {
			case "text":
				sb.WriteString(part.Get("text").String())
			case "image_url":
				sb.WriteString("[Image] ")
				sb.WriteString(part.Get("image_url.url").String())
			}
		}
		path := "messages." + strconv.Itoa(i) + ".content"
		if next, err := sjson.SetBytes(out, path, sb.String()); err == nil {
			out = next
		}
	}
	return out
}
