package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tripdesk/backend/internal/apperr"
)

// ErrorBody is the JSON envelope for every error response.
type ErrorBody struct {
	Status    string              `json:"status"`
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Errors    []apperr.FieldError `json:"errors,omitempty"`
	Details   any                 `json:"details,omitempty"`
	Debug     string              `json:"debug,omitempty"`
	RequestID string              `json:"requestId,omitempty"`
}

// Errors renders the last error a handler attached with c.Error. Server
// errors keep their cause in the log and out of the response, and debug output
// is only included outside production.
func Errors(l zerolog.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := apperr.Status(err)
		body := ErrorBody{
			Status:    "fail",
			Code:      "INTERNAL",
			Message:   "Internal server error",
			RequestID: GetRequestID(c),
		}

		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
			body.Code = ae.Code
			body.Message = ae.Message
			body.Errors = ae.Fields
			body.Details = ae.Details
		}
		if status >= http.StatusInternalServerError {
			body.Status = "error"
			l.Error().Err(err).Str("request_id", body.RequestID).Str("path", c.Request.URL.Path).Msg("request failed")
		}
		if !production {
			body.Debug = err.Error()
		}
		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(status, body)
	}
}
