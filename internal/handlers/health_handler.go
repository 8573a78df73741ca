package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Pinger is anything whose liveness can be checked
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports database and cache health
type HealthHandler struct {
	db      Pinger
	redis   *redis.Client
	version string
}

// NewHealthHandler creates a new HealthHandler. redis may be nil when caching is disabled.
func NewHealthHandler(db Pinger, redisClient *redis.Client, version string) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, version: version}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
			"error":    err.Error(),
		})
		return
	}

	// The cache is optional, an unreachable redis degrades but does not fail the check
	cacheStatus := "disabled"
	if h.redis != nil {
		cacheStatus = "healthy"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			cacheStatus = "unhealthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  "healthy",
		"cache":     cacheStatus,
		"version":   h.version,
		"timestamp": time.Now().Unix(),
	})
}
