package server

import (
	"net/http"
	"time"

	"compliance_checker/internal/metrics"

	"github.com/gin-gonic/gin"
)

// observe records request counts and latency per matched route.
func observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// multipartOverhead leaves room for boundaries and form fields next to the
// file itself.
const multipartOverhead = 1 << 20

// limitBody caps the request body so oversized uploads fail while being
// read instead of after being buffered.
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
