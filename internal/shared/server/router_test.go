package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"studyhub-backend/internal/shared/config"
	"studyhub-backend/internal/shared/server/middleware"
)

func TestRateLimitGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		route string
		path  string
		want  string
	}{
		{"/api/v1/documents/:id/jobs", "/api/v1/documents/abc/jobs", GroupPolling},
		{"/api/v1/documents/:id/summary", "/api/v1/documents/abc/summary", GroupAI},
		{"/api/v1/documents/:id/chat", "/api/v1/documents/abc/chat", GroupAI},
		{"/api/v1/documents/fix-parsed-text", "/api/v1/documents/fix-parsed-text", GroupAI},
		{"/api/v1/documents/:id", "/api/v1/documents/abc", GroupDefault},
		{"/api/v1/notes", "/api/v1/notes", GroupDefault},
	}
	for _, tc := range cases {
		r := gin.New()
		var got string
		r.GET(tc.route, func(c *gin.Context) { got = RateLimitGroup(c) })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.want, got, tc.route)
	}
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	r := NewRouter(RouterDeps{Config: config.Config{Env: "dev"}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRateLimitsPerGroup(t *testing.T) {
	r := NewRouter(RouterDeps{
		Config: config.Config{Env: "dev"},
		RateLimits: map[string]middleware.RateLimitRule{
			GroupDefault: {Rate: 0.001, Burst: 1},
		},
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":8080", Addr(""))
	assert.Equal(t, ":9000", Addr("9000"))
	assert.Equal(t, ":9000", Addr(":9000"))
}
