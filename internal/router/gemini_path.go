package router

import "strings"

// ExtractGeminiModel pulls the model id and action out of a Gemini-style
// path like /v1beta/models/gemini-pro:streamGenerateContent. The model is
// the segment after "models", split on the first colon.
func ExtractGeminiModel(path string) (model, action string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if seg != "models" || i+1 >= len(segments) {
			continue
		}
		rest := segments[i+1]
		if j := strings.IndexByte(rest, ':'); j >= 0 {
			return rest[:j], rest[j+1:]
		}
		return rest, ""
	}
	return "", ""
}

// IsGeminiStreamAction reports whether the action is the streaming variant.
func IsGeminiStreamAction(action string) bool {
	return strings.Contains(strings.ToLower(action), "streamgeneratecontent")
}

// ExtractGeminiVersion pulls the API version segment (v1 or v1beta) out of
// an inbound Gemini path; it defaults to v1beta.
func ExtractGeminiVersion(path string) string {
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		switch seg {
		case "v1", "v1beta", "v1alpha":
			return seg
		}
	}
	return "v1beta"
}
