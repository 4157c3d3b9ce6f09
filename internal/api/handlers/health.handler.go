package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-insights/internal/version"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

const (
	serviceName      = "mirador-insights"
	readinessTimeout = 5 * time.Second
	statusHealthy    = "healthy"
	statusDegraded   = "degraded"
	statusUnhealthy  = "unhealthy"
)

// ReadinessCheck probes one dependency. A failing critical check makes the
// service unready; a failing optional one only marks it degraded.
type ReadinessCheck struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

type HealthHandler struct {
	checks []ReadinessCheck
	logger logger.Logger
	now    func() time.Time
}

func NewHealthHandler(log logger.Logger, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks, logger: log, now: time.Now}
}

// GET /health - liveness
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    statusHealthy,
		"service":   serviceName,
		"version":   version.Version,
		"timestamp": h.now().Format(time.RFC3339),
	})
}

// GET /ready - dependency readiness
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]interface{}, len(h.checks))
	status := statusHealthy
	httpStatus := http.StatusOK

	for _, chk := range h.checks {
		err := chk.Probe(ctx)
		if err == nil {
			checks[chk.Name] = map[string]interface{}{"status": statusHealthy}
			continue
		}

		if chk.Critical {
			checks[chk.Name] = map[string]interface{}{"status": statusUnhealthy, "error": err.Error()}
			status = statusUnhealthy
			httpStatus = http.StatusServiceUnavailable
			h.logger.Warn("Readiness check failed", "check", chk.Name, "error", err)
			continue
		}
		checks[chk.Name] = map[string]interface{}{"status": statusDegraded, "error": err.Error()}
		if status == statusHealthy {
			status = statusDegraded
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   serviceName,
		"version":   version.Version,
		"checks":    checks,
		"timestamp": h.now().Format(time.RFC3339),
	})
}
