package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"minerva/internal/metrics"
	"minerva/pkg/logger"
)

// Logger returns a middleware that logs each request and records the
// transport metrics. The metric path label is the route template, not the
// raw URL, so ids do not explode cardinality.
func Logger() gin.HandlerFunc {
	log := logger.Get().With("component", "api")

	return func(c *gin.Context) {
		start := time.Now()

		requestID := uuid.New().String()
		c.Header("X-Request-ID", requestID)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, status, latency)

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		switch {
		case status >= 500:
			log.Errorw("Request failed", fields...)
		case status >= 400:
			log.Warnw("Request rejected", fields...)
		default:
			log.Infow("Request completed", fields...)
		}
	}
}
