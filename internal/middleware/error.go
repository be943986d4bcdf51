package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/medvault/medvault-api/pkg/errors"
)

// ErrorResponse is the envelope for errors surfaced by middleware.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler logs any errors handlers attached to the context and
// renders the last one, mapping AppError codes to HTTP statuses.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		status := apperrors.Status(lastErr.Err)
		c.JSON(status, ErrorResponse{
			Code:    status,
			Message: apperrors.Message(lastErr.Err),
			TraceID: requestID,
		})
	}
}
