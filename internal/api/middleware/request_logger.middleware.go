package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

const maxLoggedBody = 1024

// RequestLogger logs one line per request at a level derived from the status:
// error for 5xx, warn for 4xx, info otherwise.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return requestLogger(log, false)
}

// RequestLoggerWithBody additionally records small request bodies and the
// response body of failed requests. Successful requests drop to debug.
func RequestLoggerWithBody(log logger.Logger) gin.HandlerFunc {
	return requestLogger(log, true)
}

func requestLogger(log logger.Logger, withBody bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var reqBody []byte
		var captured *bodyRecorder
		if withBody {
			if c.Request.Body != nil {
				reqBody, _ = io.ReadAll(c.Request.Body)
				c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
			}
			captured = &bodyRecorder{ResponseWriter: c.Writer}
			c.Writer = captured
		}

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"request_id", GetRequestID(c),
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "alert_id", id)
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, "query", q)
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			fields = append(fields, "error", errs.String())
		}
		if withBody {
			if n := len(reqBody); n > 0 && n < maxLoggedBody {
				fields = append(fields, "request_body", string(reqBody))
			}
			if status >= 400 && captured.buf.Len() < maxLoggedBody {
				fields = append(fields, "response_body", captured.buf.String())
			}
		}

		switch {
		case status >= 500:
			log.Error("HTTP Request", fields...)
		case status >= 400:
			log.Warn("HTTP Request", fields...)
		case withBody:
			log.Debug("HTTP Request", fields...)
		default:
			log.Info("HTTP Request", fields...)
		}
	}
}

type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
