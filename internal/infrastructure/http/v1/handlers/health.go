// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ledger/internal/infrastructure/storage/postgres"
)

// Version is stamped at build time with -ldflags "-X ...handlers.Version=...".
var Version = "dev"

const readyTimeout = 2 * time.Second

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	pool    *postgres.Pool
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(pool *postgres.Pool) *HealthHandler {
	return &HealthHandler{pool: pool, started: time.Now()}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	stats := postgres.GetPoolStats(h.pool.Unwrap())

	c.JSON(http.StatusOK, gin.H{
		"app":            "ledger",
		"version":        Version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"database": map[string]any{
			"total_conns":      stats.TotalConns,
			"acquired_conns":   stats.AcquiredConns,
			"idle_conns":       stats.IdleConns,
			"max_conns":        stats.MaxConns,
			"acquire_count":    stats.AcquireCount,
			"acquire_duration": stats.AcquireDuration.String(),
		},
	})
}
