package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/services"
	"github.com/platformbuilds/mirador-insights/internal/utils/timeutil"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

// InsightsProvider is the part of services.AlertInsightsProvider the API uses.
type InsightsProvider interface {
	GetInsights(ctx context.Context, alert *models.AlertSpec) (*models.AlertInsights, error)
	GetInsightsForAlert(ctx context.Context, alertID string) (*models.AlertInsights, error)
}

// InsightsRequest is the body of POST /api/v1/alerts/insights.
type InsightsRequest struct {
	Alert *models.AlertSpec `json:"alert"`
}

// AlertInsightsHandler serves alert insights and ad-hoc default windows.
// Failures are attached to the gin context and rendered by the error
// middleware.
type AlertInsightsHandler struct {
	provider InsightsProvider
	window   *services.DefaultWindowCalculator
	logger   logger.Logger
}

func NewAlertInsightsHandler(provider InsightsProvider, window *services.DefaultWindowCalculator, log logger.Logger) *AlertInsightsHandler {
	if window == nil {
		window = services.NewDefaultWindowCalculator(time.UTC)
	}
	return &AlertInsightsHandler{provider: provider, window: window, logger: log}
}

// POST /api/v1/alerts/insights
func (h *AlertInsightsHandler) GetInsights(c *gin.Context) {
	var req InsightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(services.InvalidRequestError(err, "invalid payload"))
		return
	}
	if req.Alert == nil {
		_ = c.Error(services.InvalidRequestError(nil, "alert is required"))
		return
	}

	insights, err := h.provider.GetInsights(c.Request.Context(), req.Alert)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

// GET /api/v1/alerts/:id/insights
func (h *AlertInsightsHandler) GetAlertInsights(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		_ = c.Error(services.InvalidRequestError(nil, "alert id is required"))
		return
	}

	insights, err := h.provider.GetInsightsForAlert(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

// GET /api/v1/insights/default-window?start=&end=&granularity=&timezone=
//
// start and end bound the dataset and accept epoch milliseconds or RFC3339.
func (h *AlertInsightsHandler) GetDefaultWindow(c *gin.Context) {
	start, err := timeutil.ParseInstant(c.Query("start"))
	if err != nil {
		_ = c.Error(services.InvalidRequestError(err, "invalid start"))
		return
	}
	end, err := timeutil.ParseInstant(c.Query("end"))
	if err != nil {
		_ = c.Error(services.InvalidRequestError(err, "invalid end"))
		return
	}
	if start > end {
		_ = c.Error(services.InvalidRequestError(nil, "start must not be after end"))
		return
	}
	granularity, err := timeutil.ParsePeriod(c.Query("granularity"))
	if err != nil {
		_ = c.Error(services.InvalidRequestError(err, "invalid granularity"))
		return
	}

	window, err := h.window.Compute(start, end, c.Query("timezone"), granularity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, window)
}
