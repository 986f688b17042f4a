package translator

import "github.com/tidwall/gjson"

// LooksLikeOpenAIResponse reports whether a response body or stream event is
// OpenAI chat-completion shaped, regardless of the dialect the upstream was
// configured to speak. Misconfigured upstreams answer like this on routes
// declared anthropic or gemini.
func LooksLikeOpenAIResponse(body []byte) bool {
	switch gjson.GetBytes(body, "object").String() {
	case "chat.completion", "chat.completion.chunk":
		return true
	}
	return gjson.GetBytes(body, "choices").IsArray()
}
