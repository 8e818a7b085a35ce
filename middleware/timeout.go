package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PixelPet-dev/xlayerslot/types"
)

// Timeout bounds a request's context. Chain calls inherit the deadline,
// so a stalled RPC node cannot hold a handler open indefinitely.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusRequestTimeout,
				types.NewError(http.StatusRequestTimeout, c.Request.URL.Path, 0, "request timeout"))
		}
	}
}
