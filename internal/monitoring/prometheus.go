// Package monitoring exposes Prometheus metrics for mirador-insights.
//
// Usage:
//
//  1. Expose the endpoint when building the router:
//     router := gin.New()
//     router.Use(monitoring.HTTPMetricsMiddleware())
//     monitoring.SetupPrometheusMetrics(router, version)
//
//  2. Record domain metrics where the work happens:
//
//     start := time.Now()
//     // ... boundary query ...
//     monitoring.RecordBoundaryQuery("max", time.Since(start), monitoring.StatusSuccess)
//
// Available Metrics:
//
// HTTP:
//   - mirador_insights_http_requests_total{method, endpoint, status_code}
//   - mirador_insights_http_request_duration_seconds{method, endpoint}
//   - mirador_insights_active_connections
//
// Insights:
//   - mirador_insights_requests_total{outcome}
//   - mirador_insights_boundary_queries_total{kind, status}
//   - mirador_insights_boundary_query_duration_seconds{kind}
//   - mirador_insights_boundary_timeouts_total{dataset}
//   - mirador_insights_suspicious_max_time_total{dataset}
//
// Backends:
//   - mirador_insights_db_operations_total{operation, table, status}
//   - mirador_insights_db_operation_duration_seconds{operation, table}
//   - mirador_insights_victoria_metrics_queries_total{query_type, status}
//   - mirador_insights_victoria_metrics_query_duration_seconds{query_type}
//   - mirador_insights_cache_operations_total{operation, result}
//
// Errors and build:
//   - mirador_insights_errors_total{type, component}
//   - mirador_insights_build_info{version, component, go_version}
package monitoring

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_insights_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_insights_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_insights_active_connections",
			Help: "Number of active connections",
		},
	)

	insightsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_insights_requests_total",
			Help: "Total number of insights computations by outcome",
		},
		[]string{"outcome"}, // complete, degraded, or an ERR_* status
	)

	boundaryQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_insights_boundary_queries_total",
			Help: "Total number of dataset boundary queries",
		},
		[]string{"kind", "status"}, // kind: min, max, safe_max
	)

	boundaryQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_insights_boundary_query_duration_seconds",
			Help:    "Dataset boundary query duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	boundaryTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_insights_boundary_timeouts_total",
			Help: "Total number of boundary resolutions that failed on timeout",
		},
		[]string{"dataset"},
	)

	suspiciousMaxTimeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_insights_suspicious_max_time_total",
			Help: "Total number of implausible dataset max timestamps replaced by the safe-interval max",
		},
		[]string{"dataset"},
	)

	dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_insights_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "table", "status"},
	)

	dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_insights_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "table"},
	)

	victoriaMetricsQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_insights_victoria_metrics_queries_total",
			Help: "Total number of Victoria Metrics queries",
		},
		[]string{"query_type", "status"},
	)

	victoriaMetricsQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_insights_victoria_metrics_query_duration_seconds",
			Help:    "Victoria Metrics query duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"query_type"},
	)

	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_insights_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, error, success
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_insights_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)

	registerOnce sync.Once
)

// Register adds every collector to the default registry. It is safe to call
// more than once.
func Register(version string) {
	registerOnce.Do(func() {
		_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mirador_insights_build_info",
			Help: "Build information for mirador-insights",
			ConstLabels: prometheus.Labels{
				"version":    version,
				"component":  "mirador-insights",
				"go_version": runtime.Version(),
			},
		}, func() float64 { return 1 }))

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, activeConnections,
			insightsRequestsTotal, boundaryQueriesTotal, boundaryQueryDuration,
			boundaryTimeoutsTotal, suspiciousMaxTimeTotal,
			dbOperationsTotal, dbOperationDuration,
			victoriaMetricsQueriesTotal, victoriaMetricsQueryDuration,
			cacheOperationsTotal, errorsTotal,
		} {
			_ = prometheus.Register(c)
		}
	})
}

// SetupPrometheusMetrics registers the collectors and mounts GET /metrics.
func SetupPrometheusMetrics(router gin.IRoutes, version string) {
	Register(version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		activeConnections.Inc()
		defer activeConnections.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = normalizeEndpoint(c.Request.URL.Path)
		}
		statusCode := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())

		if c.Writer.Status() >= 400 {
			errorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordInsightsRequest counts one insights computation.
func RecordInsightsRequest(outcome string) {
	insightsRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordBoundaryQuery records one min, max or safe_max query.
func RecordBoundaryQuery(kind string, duration time.Duration, status string) {
	boundaryQueriesTotal.WithLabelValues(kind, status).Inc()
	boundaryQueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if status != StatusSuccess {
		errorsTotal.WithLabelValues("boundary_query", kind).Inc()
	}
}

func RecordBoundaryTimeout(dataset string) {
	boundaryTimeoutsTotal.WithLabelValues(dataset).Inc()
}

func RecordSuspiciousMaxTime(dataset string) {
	suspiciousMaxTimeTotal.WithLabelValues(dataset).Inc()
}

// RecordDBOperation records database operation metrics
func RecordDBOperation(operation, table string, duration time.Duration, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusError
		errorsTotal.WithLabelValues("db", table).Inc()
	}

	dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
	dbOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordVictoriaMetricsQuery records Victoria Metrics query metrics
func RecordVictoriaMetricsQuery(queryType string, duration time.Duration, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusError
		errorsTotal.WithLabelValues("victoria_metrics", queryType).Inc()
	}

	victoriaMetricsQueriesTotal.WithLabelValues(queryType, status).Inc()
	victoriaMetricsQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

// RecordCacheOperation records cache operation metrics
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// normalizeEndpoint replaces numeric path segments with :id for requests
// that did not match a route.
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if i > 0 && isNumeric(part) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
