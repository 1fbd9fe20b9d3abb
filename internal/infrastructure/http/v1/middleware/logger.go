package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ledger/pkg/logger"
)

// Logger middleware puts log into the request context and logs every
// request with timing and status once it is served.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		entry := log.WithContext(c.Request.Context())
		kv := []any{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "error", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Errorw("http request", kv...)
		case status >= http.StatusBadRequest:
			entry.Warnw("http request", kv...)
		default:
			entry.Infow("http request", kv...)
		}
	}
}
