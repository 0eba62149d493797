package telemetry

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPLogger logs one line per request once it has been served and records its latency.
func HTTPLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		lvl := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			lvl = slog.LevelError
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		d := time.Since(start)
		HTTPRequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Observe(d.Seconds())

		slog.Log(c.Request.Context(), lvl, "http: request served",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration", d,
		)
	}
}
