package middleware

import (
	"strconv"
	"time"

	"trinity/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request latency labelled by route template, so ids in the
// path do not explode label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
