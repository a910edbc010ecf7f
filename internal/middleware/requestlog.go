package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ltg-uic/beaconsync/internal/logger"
)

// RequestLog logs one line per request with method, path, status, and
// latency.
func RequestLog(log *logger.Logger) gin.HandlerFunc {
	requestLog := log.With("middleware", "RequestLog")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		requestLog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}
