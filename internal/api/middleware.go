package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ikanisa/dar-ingest/internal/logger"
)

// loggingMiddleware logs each request with method, path, status and latency.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}
