package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/platformbuilds/mirador-insights/internal/api/handlers"
	"github.com/platformbuilds/mirador-insights/internal/api/middleware"
	"github.com/platformbuilds/mirador-insights/internal/config"
	"github.com/platformbuilds/mirador-insights/internal/monitoring"
	"github.com/platformbuilds/mirador-insights/internal/services"
	"github.com/platformbuilds/mirador-insights/internal/version"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

type Server struct {
	config     *config.Config
	logger     logger.Logger
	insights   handlers.InsightsProvider
	window     *services.DefaultWindowCalculator
	checks     []handlers.ReadinessCheck
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	insights handlers.InsightsProvider,
	window *services.DefaultWindowCalculator,
	checks ...handlers.ReadinessCheck,
) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   cfg,
		logger:   log,
		insights: insights,
		window:   window,
		checks:   checks,
		router:   gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.CORSMiddleware(s.config.CORS))

	if s.config.LogLevel == "debug" {
		s.router.Use(middleware.RequestLoggerWithBody(s.logger))
	} else {
		s.router.Use(middleware.RequestLogger(s.logger))
	}

	if s.config.Monitoring.PrometheusEnabled {
		s.router.Use(monitoring.HTTPMetricsMiddleware())
	}

	s.router.Use(middleware.ErrorHandler(s.logger))

	// OpenAPI document and Swagger UI at /swagger/index.html
	s.router.StaticFile("/api/openapi.yaml", "api/openapi.yaml")
	s.router.GET("/api/openapi.json", handlers.GetOpenAPISpec)
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/api/openapi.json")))

	if s.config.Monitoring.PrometheusEnabled {
		monitoring.SetupPrometheusMetrics(s.router, version.Version)
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.logger, s.checks...)
	insightsHandler := handlers.NewAlertInsightsHandler(s.insights, s.window, s.logger)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/swagger/index.html")
	})

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", healthHandler.HealthCheck)
	v1.GET("/ready", healthHandler.ReadinessCheck)

	v1.POST("/alerts/insights", insightsHandler.GetInsights)
	v1.GET("/alerts/:id/insights", insightsHandler.GetAlertInsights)
	v1.GET("/insights/default-window", insightsHandler.GetDefaultWindow)
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a request may wait a full fetch timeout on its boundary queries
		WriteTimeout: s.config.FetchTimeout() + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mirador-insights API server starting",
			"port", s.config.Port,
			"fetch_timeout", s.config.FetchTimeout(),
			"version", version.Version,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down mirador-insights gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
