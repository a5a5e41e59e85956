package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studyhub-backend/internal/shared/metrics"
	"studyhub-backend/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the access log line.
const (
	LogDocumentID       = "documentId"
	LogJobID            = "jobId"
	LogStatusTransition = "statusTransition"
)

// Logging writes one request.complete line per request and feeds the HTTP
// metrics. Preflight requests are skipped.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, elapsed)

		fields := map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             route,
			"status":            status,
			"duration_ms":       float64(elapsed.Microseconds()) / 1000.0,
			"user_id":           UserIDFromContext(c),
			"document_id":       c.GetString(LogDocumentID),
			"job_id":            c.GetString(LogJobID),
			"status_transition": c.GetString(LogStatusTransition),
			"bytes_out":         c.Writer.Size(),
			"client_ip":         c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields["errors"] = errs.String()
		}
		telemetry.Info("request.complete", fields)
	}
}
