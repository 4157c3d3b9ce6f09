package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-insights/internal/repo"
	"github.com/platformbuilds/mirador-insights/internal/services"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorHandler renders the last error attached to the context. Classified
// insights errors keep their status; everything else goes through
// classifyUnknown.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if last := c.Errors.Last(); last != nil {
			status, code := classify(last.Err)
			logHTTPError(log, c, status, last.Err.Error())
			c.JSON(status, ErrorResponse{Error: last.Err.Error(), Code: code})
			return
		}

		// a bare c.Status(4xx/5xx) still gets a JSON body
		status := c.Writer.Status()
		if status >= http.StatusBadRequest && !c.Writer.Written() {
			msg := http.StatusText(status)
			logHTTPError(log, c, status, msg)
			c.JSON(status, ErrorResponse{Error: msg, Code: codeForStatus(status)})
		}
	}
}

func classify(err error) (int, string) {
	var ierr *services.InsightsError
	switch {
	case errors.As(err, &ierr):
		return ierr.HTTPStatus(), string(ierr.Status)
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound, codeForStatus(http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, string(services.StatusTimeout)
	}
	return classifyUnknown(err)
}

type messageRule struct {
	status  int
	code    string
	needles []string
}

// Checked in order; the first rule with a matching needle wins.
var messageRules = []messageRule{
	{http.StatusBadRequest, string(services.StatusInvalidRequest), []string{"invalid", "required", "cannot be empty", "must be", "malformed"}},
	{http.StatusNotFound, "NOT_FOUND", []string{"not found", "does not exist"}},
	{http.StatusGatewayTimeout, string(services.StatusTimeout), []string{"timeout", "timed out", "deadline exceeded"}},
	{http.StatusInternalServerError, "CONNECTION_ERROR", []string{"connection", "network"}},
}

func classifyUnknown(err error) (int, string) {
	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		for _, n := range rule.needles {
			if strings.Contains(msg, n) {
				return rule.status, rule.code
			}
		}
	}
	return http.StatusInternalServerError, string(services.StatusUnknown)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(services.StatusInvalidRequest)
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return string(services.StatusTimeout)
	default:
		return string(services.StatusUnknown)
	}
}

func logHTTPError(log logger.Logger, c *gin.Context, status int, msg string) {
	fields := []interface{}{
		"status", status,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"client_ip", c.ClientIP(),
		"error", msg,
	}
	if id := GetRequestID(c); id != "" {
		fields = append(fields, "request_id", id)
	}
	if status >= http.StatusInternalServerError {
		log.Error("HTTP Error", fields...)
		return
	}
	log.Warn("HTTP Error", fields...)
}
