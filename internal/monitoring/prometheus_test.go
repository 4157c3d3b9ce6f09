package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupPrometheusMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	SetupPrometheusMetrics(r, "test")
	r.GET("/api/v1/alerts/:id/insights", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/alerts/7/insights", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "mirador_insights_build_info")
	assert.Contains(t, body, `endpoint="/api/v1/alerts/:id/insights"`)
}

func TestSetupPrometheusMetrics_Twice(t *testing.T) {
	gin.SetMode(gin.TestMode)
	assert.NotPanics(t, func() {
		SetupPrometheusMetrics(gin.New(), "a")
		SetupPrometheusMetrics(gin.New(), "b")
	})
}

func TestRecordSuspiciousMaxTime(t *testing.T) {
	before := testutil.ToFloat64(suspiciousMaxTimeTotal.WithLabelValues("pageviews"))
	RecordSuspiciousMaxTime("pageviews")
	assert.Equal(t, before+1, testutil.ToFloat64(suspiciousMaxTimeTotal.WithLabelValues("pageviews")))
}

func TestRecordBoundaryQuery_CountsErrors(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("boundary_query", "min"))
	RecordBoundaryQuery("min", 10*time.Millisecond, StatusSuccess)
	RecordBoundaryQuery("min", time.Second, StatusTimeout)
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("boundary_query", "min")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(boundaryQueriesTotal.WithLabelValues("min", StatusTimeout)), 1.0)
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "/api/v1/alerts/:id/insights", normalizeEndpoint("/api/v1/alerts/42/insights"))
	assert.Equal(t, "/health", normalizeEndpoint("/health"))
}
