package common

import (
	"net/http"
	"strings"

	apperrors "llmgate/internal/errors"
	"llmgate/internal/logging"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AbortWithAPIError serializes the provided APIError in the dialect's envelope
// and aborts the request.
func AbortWithAPIError(c *gin.Context, format apperrors.ErrorFormat, err *apperrors.APIError) {
	if err == nil {
		err = apperrors.Internal("unknown error")
	}

	logging.WithReq(c, log.Fields{
		"source": "forward_error",
		"status": err.HTTPStatus,
		"type":   err.Type,
	}).Error(err.Message)

	c.Data(safeStatus(err.HTTPStatus), "application/json", err.ToJSON(format))
	c.Abort()
}

// AbortWithErr wraps arbitrary errors before aborting.
func AbortWithErr(c *gin.Context, format apperrors.ErrorFormat, err error) {
	AbortWithAPIError(c, format, apperrors.AsAPIError(err))
}

// DetectFormat infers the error envelope format from the request path.
func DetectFormat(c *gin.Context) apperrors.ErrorFormat {
	path := c.FullPath()
	if path == "" && c.Request != nil && c.Request.URL != nil {
		path = c.Request.URL.Path
	}
	path = strings.ToLower(path)

	switch {
	case strings.Contains(path, "/v1beta/"),
		strings.Contains(path, ":generatecontent"),
		strings.Contains(path, ":streamgeneratecontent"):
		return apperrors.FormatGemini
	case strings.Contains(path, "/messages"):
		return apperrors.FormatAnthropic
	default:
		return apperrors.FormatOpenAI
	}
}

func safeStatus(status int) int {
	if status >= 400 && status <= 599 {
		return status
	}
	return http.StatusInternalServerError
}
