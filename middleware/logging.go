package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Logging logs one line per completed request, leveled by status code.
// Health probes are skipped to keep the log readable.
func Logging(logger zerolog.Logger) gin.HandlerFunc {
	skip := map[string]bool{
		"/health":     true,
		"/api/health": true,
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		reqLogger := logger.With().
			Str("trace_id", GetTraceID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Logger()

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = reqLogger.Error()
		case status >= 400:
			event = reqLogger.Warn()
		default:
			event = reqLogger.Info()
		}
		event.
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request completed")

		for _, err := range c.Errors {
			reqLogger.Error().Err(err.Err).Msg("request error")
		}
	}
}
