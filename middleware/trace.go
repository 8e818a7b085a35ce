package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDKey is the context key the trace identifier is stored under.
	TraceIDKey = "trace_id"
	// TraceIDHeader carries the trace identifier on requests and responses.
	TraceIDHeader = "X-Trace-ID"
)

// TraceID tags every request with a trace identifier, honoring one the
// caller already supplied.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// GetTraceID extracts the trace identifier from a gin context.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
