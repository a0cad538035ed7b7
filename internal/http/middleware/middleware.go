package middleware

import (
	"time"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/metrics"

	"github.com/gin-gonic/gin"
)

// RequestTimer records the latency of every request on its route template.
func RequestTimer(m *metrics.HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), start)
	}
}
