package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"syscall"

	"catalogsync/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestIDHeader is echoed into panic logs when the caller sets it.
const RequestIDHeader = "X-Request-ID"

// Recovery turns a handler panic into a JSON 500 and logs the route it came
// from. A client that hung up gets no response at all.
func Recovery(logger *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(error); ok && clientGone(err) {
			logger.Debug("Client left during %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			c.Abort()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = "-"
		}
		logger.Error("Panic in %s %s (request %s): %v", c.Request.Method, route, id, recovered)
		logger.Debug("Panic stack for request %s:\n%s", id, debug.Stack())

		if id != "-" {
			c.Header(RequestIDHeader, id)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

func clientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
