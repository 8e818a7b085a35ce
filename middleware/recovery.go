package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/types"
)

// Recovery converts panics into 500 responses with a logged stack trace.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("trace_id", GetTraceID(c)).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Interface("error", r).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					types.NewError(http.StatusInternalServerError, c.Request.URL.Path, 0, "internal server error"))
			}
		}()
		c.Next()
	}
}
