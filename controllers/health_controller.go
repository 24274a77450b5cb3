package controllers

import (
	"context"
	"net/http"
	"time"

	"lifeline/models"
	"lifeline/services"

	"github.com/gin-gonic/gin"
)

const apiVersion = "1.0.0"

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

type HealthController struct {
	checks    map[string]HealthChecker
	registry  *services.CoordinatorRegistry
	startTime time.Time
}

func NewHealthController(checks map[string]HealthChecker, registry *services.CoordinatorRegistry) *HealthController {
	return &HealthController{
		checks:    checks,
		registry:  registry,
		startTime: time.Now(),
	}
}

// HealthCheck reports "degraded" with 503 when any dependency is down.
// Emergencies can still be raised without Redis, so callers should read
// the per-service map rather than the status alone.
func (hc *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	results := make(map[string]string, len(hc.checks))
	for name, check := range hc.checks {
		if err := check(ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			status = "degraded"
			continue
		}
		results[name] = "healthy"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"health": models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Services:  results,
			Version:   apiVersion,
			Uptime:    time.Since(hc.startTime).Round(time.Second).String(),
		},
		"coordinators": hc.registry.CountByState(),
	})
}
