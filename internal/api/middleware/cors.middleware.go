package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-insights/internal/config"
)

const (
	defaultAllowedMethods = "GET, POST, OPTIONS"
	defaultAllowedHeaders = "Origin, Content-Type, Accept, Authorization, " + RequestIDHeader
	defaultExposedHeaders = RequestIDHeader
)

// CORSMiddleware lets the alert editor UI call the insights API from another origin.
func CORSMiddleware(corsConfig config.CORSConfig) gin.HandlerFunc {
	methods := joinOr(corsConfig.AllowedMethods, defaultAllowedMethods)
	headers := joinOr(corsConfig.AllowedHeaders, defaultAllowedHeaders)
	exposed := joinOr(corsConfig.ExposedHeaders, defaultExposedHeaders)
	maxAge := "43200"
	if corsConfig.MaxAge > 0 {
		maxAge = strconv.Itoa(corsConfig.MaxAge)
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && isOriginAllowed(origin, corsConfig.AllowedOrigins) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Header("Access-Control-Expose-Headers", exposed)
		c.Header("Access-Control-Max-Age", maxAge)
		if corsConfig.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

// isOriginAllowed checks origin against the configured list. An empty list
// admits local development origins only.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
	}

	for _, allowedOrigin := range allowedOrigins {
		if allowedOrigin == "*" || origin == allowedOrigin {
			return true
		}
		// Wildcard subdomains, e.g. *.mirador.io
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := strings.TrimPrefix(allowedOrigin, "*")
			if strings.HasSuffix(origin, domain) {
				return true
			}
		}
	}

	return false
}
