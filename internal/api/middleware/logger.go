package middleware

import (
	"time"

	"catalogsync/internal/logger"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request through the service logger. Probes of
// /healthz and /metrics are logged at debug level.
func Logger(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log := logger.Info
		switch {
		case c.Writer.Status() >= 500:
			log = logger.Error
		case path == "/healthz" || path == "/metrics":
			log = logger.Debug
		}
		log("%s %s %d %s %s", c.Request.Method, path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
