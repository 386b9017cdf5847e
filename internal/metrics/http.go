package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// unmeteredRoutes are left out of the HTTP series: scrapes and probes would
// drown real traffic, and /live streams stay open for hours.
var unmeteredRoutes = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/live":    {},
}

// HTTPMetricsMiddleware counts requests and observes latency per route
// pattern. Anything but the Prometheus recorder gets a pass-through handler.
func HTTPMetricsMiddleware(r Recorder) gin.HandlerFunc {
	m, ok := r.(*Metrics)
	if !ok {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, skip := unmeteredRoutes[route]; skip {
			c.Next()
			return
		}
		if route == "" {
			// label cardinality stays bounded for 404 scans
			route = "unmatched"
		}

		m.HTTPRequestsInFlight.Inc()
		start := time.Now()
		c.Next()
		m.HTTPRequestsInFlight.Dec()

		method := c.Request.Method
		m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
