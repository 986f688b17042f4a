package errors

// ErrorFormat selects the wire shape used when rendering an error envelope.
type ErrorFormat string

const (
	FormatOpenAI    ErrorFormat = "openai"
	FormatAnthropic ErrorFormat = "anthropic"
	FormatGemini    ErrorFormat = "gemini"
)

// APIError is the standardized error carried through the forwarding pipeline.
type APIError struct {
	HTTPStatus int
	Type       string
	Message    string
	Details    map[string]interface{}
}

func (e *APIError) Error() string { return e.Type + ": " + e.Message }

// OpenAIError mirrors OpenAI's error envelope.
type OpenAIError struct {
	Error struct {
		Message string                 `json:"message"`
		Type    string                 `json:"type"`
		Code    string                 `json:"code,omitempty"`
		Param   string                 `json:"param,omitempty"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

// AnthropicError mirrors the Anthropic Messages error envelope.
type AnthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiError mirrors the Gemini API error structure.
type GeminiError struct {
	Error struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Status  string                 `json:"status"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}
