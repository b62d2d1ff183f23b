package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/journey-engine/internal/metrics"
)

// unmatchedRoute labels requests that hit no route, so scanners probing
// random paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// Metrics records latency and counts per route template and status class.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		class := statusClass(c.Writer.Status())
		method := c.Request.Method

		metrics.HTTPRequestDuration.WithLabelValues(method, route, class).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, class).Inc()
	}
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
