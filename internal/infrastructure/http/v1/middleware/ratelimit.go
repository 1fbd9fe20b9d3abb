package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"ledger/internal/core/apperror"
	"ledger/pkg/logger"
)

// NewRateLimiter builds an in-memory limiter from a formatted rate such as
// "100-M" (100 requests per minute).
func NewRateLimiter(formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return limiter.New(memory.NewStore(), rate), nil
}

// RateLimit limits requests per client IP.
func RateLimit(l *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		lctx, err := l.Get(c.Request.Context(), ip)
		if err != nil {
			// a broken limiter must not take the API down
			logger.Error(c.Request.Context(), "rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			logger.Warn(c.Request.Context(), "rate limit exceeded", "ip", ip, "limit", lctx.Limit)
			_ = c.Error(apperror.NewRateLimited(lctx.Limit))
			c.Abort()
			return
		}

		c.Next()
	}
}
