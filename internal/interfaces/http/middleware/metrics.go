package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
)

// HTTPMetrics records request count and latency per route pattern.
// Paths in skip (the scrape endpoint itself) are not recorded.
func HTTPMetrics(metrics *telemetry.Metrics, skip ...string) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}

	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		// FullPath is the route pattern, so token and id values never become labels
		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
