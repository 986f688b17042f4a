package errors

import (
	"encoding/json"
	"net/http"
)

// ToJSON renders the error in the envelope shape of the given dialect.
func (e *APIError) ToJSON(format ErrorFormat) []byte {
	switch format {
	case FormatAnthropic:
		return e.toAnthropicJSON()
	case FormatGemini:
		return e.toGeminiJSON()
	default:
		return e.toOpenAIJSON()
	}
}

func (e *APIError) toOpenAIJSON() []byte {
	errObj := OpenAIError{}
	errObj.Error.Message = e.Message
	errObj.Error.Type = e.Type
	if e.Details != nil {
		errObj.Error.Details = e.Details
	}
	b, _ := json.Marshal(errObj)
	return b
}

func (e *APIError) toAnthropicJSON() []byte {
	errObj := AnthropicError{Type: "error"}
	errObj.Error.Type = e.anthropicType()
	errObj.Error.Message = e.Message
	b, _ := json.Marshal(errObj)
	return b
}

func (e *APIError) anthropicType() string {
	switch e.HTTPStatus {
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusForbidden:
		return "permission_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusServiceUnavailable:
		return "api_error"
	default:
		return "api_error"
	}
}

func (e *APIError) toGeminiJSON() []byte {
	errObj := GeminiError{}
	errObj.Error.Code = e.HTTPStatus
	errObj.Error.Message = e.Message
	errObj.Error.Status = e.toGeminiStatus()
	if e.Details != nil {
		errObj.Error.Details = e.Details
	}
	b, _ := json.Marshal(errObj)
	return b
}

func (e *APIError) toGeminiStatus() string {
	switch e.HTTPStatus {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusInternalServerError:
		return "INTERNAL"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	case http.StatusBadGateway:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}
