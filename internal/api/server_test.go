package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-insights/internal/api/handlers"
	"github.com/platformbuilds/mirador-insights/internal/api/middleware"
	"github.com/platformbuilds/mirador-insights/internal/config"
	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/services"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

type fixedProvider struct{}

func (fixedProvider) GetInsights(context.Context, *models.AlertSpec) (*models.AlertInsights, error) {
	return &models.AlertInsights{DatasetEndTime: models.Int64Ptr(42)}, nil
}

func (fixedProvider) GetInsightsForAlert(_ context.Context, id string) (*models.AlertInsights, error) {
	return nil, services.NotFoundError(services.StatusAlertNotFound, "alert %s not found", id)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Port:        0,
		LogLevel:    "info",
		Monitoring:  config.MonitoringConfig{PrometheusEnabled: true},
	}
}

func newTestServer(checks ...handlers.ReadinessCheck) *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(testConfig(), logger.NewNop(), fixedProvider{}, services.NewDefaultWindowCalculator(time.UTC), checks...)
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{http.MethodGet, "/api/v1/ready", "", http.StatusOK},
		{http.MethodPost, "/api/v1/alerts/insights", `{"alert":{"name":"a"}}`, http.StatusOK},
		{http.MethodGet, "/api/v1/alerts/9/insights", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/insights/default-window?start=0&end=86400000&granularity=PT1H", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/", "", http.StatusFound},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestServer_InsightsBody(t *testing.T) {
	w := do(newTestServer(), http.MethodPost, "/api/v1/alerts/insights", `{"alert":{"name":"a"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"datasetEndTime":42}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestServer_ErrorBody(t *testing.T) {
	w := do(newTestServer(), http.MethodGet, "/api/v1/alerts/9/insights", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"ERR_ALERT_NOT_FOUND: alert 9 not found","code":"ERR_ALERT_NOT_FOUND"}`, w.Body.String())
}

func TestServer_ReadinessUsesChecks(t *testing.T) {
	s := newTestServer(handlers.ReadinessCheck{
		Name:     "datasources",
		Critical: true,
		Probe:    func(context.Context) error { return errors.New("vm unreachable") },
	})
	w := do(s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "vm unreachable")
}

func TestServer_MetricsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Monitoring.PrometheusEnabled = false
	s := NewServer(cfg, logger.NewNop(), fixedProvider{}, nil)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/metrics", "").Code)
}

func TestServer_StartStops(t *testing.T) {
	s := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
