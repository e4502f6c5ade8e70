package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/patient-api/internal/handler"
	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

// ErrorHandler logs every error a handler attached with c.Error. When the
// handler attached an error without writing a response, it answers 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 {
			return
		}

		logger := zerolog.Ctx(c.Request.Context())
		for _, e := range c.Errors {
			logger.Error().
				Err(e.Err).
				Str("code", apperrors.CodeOf(e.Err).String()).
				Str("request_id", c.GetString(ContextRequestID)).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("Request error")
		}

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("internal server error"))
		}
	}
}
