package respond

import (
	"github.com/gin-gonic/gin"

	"studyhub-backend/internal/shared/telemetry"
)

// ErrorResponse is the payload of every non-2xx response. Error carries the
// human readable message; Code is a stable machine key.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Error logs the failure and aborts with {"error":message,"code":code}.
// 5xx responses are logged at error level, everything else at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if id := c.Param("id"); id != "" {
		fields["resource_id"] = id
	}
	log := telemetry.Warn
	if status >= 500 {
		log = telemetry.Error
	}
	log("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, Code: code, Details: details})
}
