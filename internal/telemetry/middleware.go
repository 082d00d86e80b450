package telemetry

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware collects HTTP metrics for every request served by a gin
// engine, adapted from the teacher's PrometheusMiddleware.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		RecordHTTP(c.Request.Method, endpoint, c.Writer.Status(), duration)
	}
}
