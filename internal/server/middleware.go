package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voyara/voyara/pkg/telemetry"
)

// MetricsMiddleware records request counts and latency per route template.
func MetricsMiddleware(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPIRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
