package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub-backend/internal/shared/telemetry"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.SetOutput(os.Stdout) })
	return &buf
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines[0], "expected log output")
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &payload))
	return payload
}

func TestLoggingRequestFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestID(), Auth("dev"), Logging())
	router.POST("/api/v1/documents/:id/complete", func(c *gin.Context) {
		c.Set(LogDocumentID, c.Param("id"))
		c.Set(LogJobID, "job-9")
		c.Set(LogStatusTransition, "uploaded->processing")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-7/complete", nil)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-Request-Id", "req-abc")
	router.ServeHTTP(httptest.NewRecorder(), req)

	line := lastLogLine(t, buf)
	assert.Equal(t, "request.complete", line["msg"])
	assert.Equal(t, "req-abc", line["request_id"])
	assert.Equal(t, "user-1", line["user_id"])
	assert.Equal(t, "doc-7", line["document_id"])
	assert.Equal(t, "job-9", line["job_id"])
	assert.Equal(t, "uploaded->processing", line["status_transition"])
	assert.Equal(t, "/api/v1/documents/:id/complete", line["route"])
	assert.EqualValues(t, 200, line["status"])
	for _, key := range []string{"ts", "level", "duration_ms"} {
		assert.Contains(t, line, key)
	}
}

func TestLoggingUnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	router := gin.New()
	router.Use(Logging())
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	line := lastLogLine(t, buf)
	assert.Equal(t, "unmatched", line["route"])
	assert.EqualValues(t, 404, line["status"])
}

func TestRequestIDReplacesInvalidHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFromContext(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "bad id\nwith newline")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	got := rec.Header().Get("X-Request-Id")
	assert.Len(t, got, 36)
	assert.Equal(t, got, rec.Body.String())
}
