package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const Version = "1.0.0"

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handles system-related endpoints
type SystemHandler struct {
	database Pinger
	started  time.Time
	log      *zap.Logger
}

// database may be nil when the request log sink is disabled
func NewSystemHandler(database Pinger, log *zap.Logger) *SystemHandler {
	return &SystemHandler{
		database: database,
		started:  time.Now(),
		log:      log,
	}
}

// Handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	checks := gin.H{}
	status := "healthy"
	statusCode := http.StatusOK

	if h.database != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbHealthy := true
		if err := h.database.Ping(ctx); err != nil {
			dbHealthy = false
			h.log.Warn("database health check failed", zap.Error(err))
		}
		checks["database"] = dbHealthy

		if !dbHealthy {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "quota-gateway",
		"version":   Version,
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}
