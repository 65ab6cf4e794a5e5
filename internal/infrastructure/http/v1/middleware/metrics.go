package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"foodcoop/internal/infrastructure/metrics"
)

// Metrics records request count and latency per route template.
func Metrics(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.Latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
