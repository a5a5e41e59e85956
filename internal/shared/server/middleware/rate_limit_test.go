package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(limiter *RateLimiter, rules map[string]RateLimitRule, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(userIDKey, userID)
		}
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		Limiter: limiter,
		Rules:   rules,
		GroupFor: func(c *gin.Context) string {
			if c.FullPath() == "/api/v1/documents/:id/jobs" {
				return "POLLING"
			}
			return ""
		},
	}))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.GET("/api/v1/documents/:id/jobs", ok)
	r.GET("/api/v1/documents", ok)
	return r
}

func hit(r http.Handler, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if ip != "" {
		req.RemoteAddr = ip + ":1234"
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitGroupsHaveSeparateBuckets(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	r := newLimitedRouter(limiter, map[string]RateLimitRule{
		"DEFAULT": {Rate: 1, Burst: 2},
		"POLLING": {Rate: 5, Burst: 10},
	}, "user-1")

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(r, "/api/v1/documents/doc-1/jobs", "").Code, "poll %d", i)
	}
	assert.Equal(t, http.StatusOK, hit(r, "/api/v1/documents", "").Code)
	assert.Equal(t, http.StatusOK, hit(r, "/api/v1/documents", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "/api/v1/documents", "").Code)
	assert.Equal(t, http.StatusOK, hit(r, "/api/v1/documents/doc-1/jobs", "").Code)
}

func TestRateLimitRejectionBody(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	r := newLimitedRouter(limiter, map[string]RateLimitRule{"DEFAULT": {Rate: 0.5, Burst: 1}}, "user-1")

	require.Equal(t, http.StatusOK, hit(r, "/api/v1/documents", "").Code)
	rec := hit(r, "/api/v1/documents", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	var body struct {
		Error        string `json:"error"`
		Code         string `json:"code"`
		RetryAfterMs int64  `json:"retryAfterMs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "too many requests", body.Error)
	assert.Equal(t, "rate_limited", body.Code)
	assert.Equal(t, int64(2000), body.RetryAfterMs)
}

func TestRateLimitAnonymousCallersKeyedByIP(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	r := newLimitedRouter(limiter, map[string]RateLimitRule{"DEFAULT": {Rate: 1, Burst: 1}}, "")

	assert.Equal(t, http.StatusOK, hit(r, "/api/v1/documents", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "/api/v1/documents", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(r, "/api/v1/documents", "10.0.0.2").Code)
}

func TestRateLimiterRefillAndSweep(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 1}

	ok, _ := limiter.Allow("u|AI", rule)
	require.True(t, ok)
	ok, wait := limiter.Allow("u|AI", rule)
	require.False(t, ok)
	assert.True(t, wait > 0 && wait <= time.Second, "wait %s", wait)

	now = now.Add(time.Second)
	ok, _ = limiter.Allow("u|AI", rule)
	assert.True(t, ok)

	now = now.Add(10 * time.Minute)
	ok, _ = limiter.Allow("v|AI", rule)
	assert.True(t, ok)
	assert.Equal(t, 1, limiter.size())
}

func TestRateLimiterZeroRuleIsUnlimited(t *testing.T) {
	limiter := NewRateLimiter(nil)
	for i := 0; i < 50; i++ {
		ok, _ := limiter.Allow("u|X", RateLimitRule{})
		require.True(t, ok)
	}
}
