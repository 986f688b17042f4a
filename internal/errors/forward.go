package errors

import "net/http"

// Forwarding error kinds. Each maps to a fixed HTTP status.
const (
	TypeUnauthorized     = "unauthorized"
	TypeForbidden        = "forbidden"
	TypeModelNotFound    = "model_not_found"
	TypeUpstreamNotFound = "upstream_not_found"
	TypeRequestFailed    = "request_failed"
	TypeInvalidRequest   = "invalid_request"
	TypeRateLimited      = "rate_limited"
	TypeTimeout          = "timeout"
	TypeInternal         = "internal_error"
)

func New(httpStatus int, errType, message string) *APIError {
	return &APIError{HTTPStatus: httpStatus, Type: errType, Message: message}
}

func Unauthorized(msg string) *APIError     { return New(http.StatusUnauthorized, TypeUnauthorized, msg) }
func Forbidden(msg string) *APIError        { return New(http.StatusForbidden, TypeForbidden, msg) }
func ModelNotFound(msg string) *APIError    { return New(http.StatusNotFound, TypeModelNotFound, msg) }
func UpstreamNotFound(msg string) *APIError { return New(http.StatusNotFound, TypeUpstreamNotFound, msg) }
func RequestFailed(msg string) *APIError    { return New(http.StatusBadGateway, TypeRequestFailed, msg) }
func InvalidRequest(msg string) *APIError   { return New(http.StatusBadRequest, TypeInvalidRequest, msg) }
func RateLimited(msg string) *APIError      { return New(http.StatusTooManyRequests, TypeRateLimited, msg) }
func Timeout(msg string) *APIError          { return New(http.StatusGatewayTimeout, TypeTimeout, msg) }
func Internal(msg string) *APIError         { return New(http.StatusInternalServerError, TypeInternal, msg) }

// FromStatus converts an upstream HTTP status into the matching forwarding error.
func FromStatus(status int, msg string) *APIError {
	switch status {
	case http.StatusUnauthorized:
		return Unauthorized(msg)
	case http.StatusForbidden:
		return Forbidden(msg)
	case http.StatusTooManyRequests:
		return RateLimited(msg)
	case http.StatusGatewayTimeout:
		return Timeout(msg)
	case http.StatusBadRequest:
		return InvalidRequest(msg)
	default:
		return RequestFailed(msg)
	}
}

// AsAPIError extracts an *APIError from err, wrapping unknown errors as internal.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return Internal(err.Error())
}

func (e *APIError) WithDetails(details map[string]interface{}) *APIError {
	e.Details = details
	return e
}

func (e *APIError) IsRetryable() bool {
	switch e.HTTPStatus {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
