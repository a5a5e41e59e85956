package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedauth "studyhub-backend/internal/shared/auth"
	"studyhub-backend/internal/users"
)

func newProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "abc", "email": "a@example.com", "name": "Ada"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newRouter(t *testing.T) (*gin.Engine, *users.Service) {
	t.Helper()
	accounts := users.NewService(users.NewMemoryRepo())
	return newInstance(newProvider(t), accounts, nil), accounts
}

// newInstance builds one API instance; instances share nothing unless the
// caller passes the same accounts or replay guard.
func newInstance(provider *httptest.Server, accounts *users.Service, replay ReplayGuard) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewOAuthService(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		AuthURL:      provider.URL + "/authorize",
		TokenURL:     provider.URL + "/token",
		UserInfoURL:  provider.URL + "/userinfo",
		RedirectURL:  "http://api.local/api/v1/auth/callback",
		AppBaseURL:   "http://app.local/",
		Replay:       replay,
	}, accounts)
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func loginState(t *testing.T, r http.Handler, next string) string {
	t.Helper()
	rec := get(r, "/api/v1/auth/login?next="+url.QueryEscape(next))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func fragmentToken(t *testing.T, target *url.URL) string {
	t.Helper()
	values, err := url.ParseQuery(target.Fragment)
	require.NoError(t, err)
	return values.Get("token")
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLoginThenCallbackIssuesToken(t *testing.T) {
	r, accounts := newRouter(t)

	rec := get(r, "/api/v1/auth/login?next=/documents")
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	rec = get(r, "/api/v1/auth/callback?code=good-code&state="+state)
	require.Equal(t, http.StatusFound, rec.Code)
	target, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.local", target.Host)
	assert.Equal(t, "/documents", target.Path)

	assert.Empty(t, target.Query().Get("token"), "token must not travel in the query string")
	claims, err := sharedauth.VerifyJWT(fragmentToken(t, target))
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.Subject)
	assert.Equal(t, "free", claims.Role)

	u, err := accounts.GetByID(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FullName)

	rec = get(r, "/api/v1/auth/callback?code=good-code&state="+state)
	assert.True(t, strings.HasSuffix(rec.Header().Get("Location"), "/login?error=auth-failed"), "state is single use")
}

func TestCallbackFailuresRedirectToLogin(t *testing.T) {
	r, _ := newRouter(t)

	for _, path := range []string{
		"/api/v1/auth/callback",
		"/api/v1/auth/callback?code=good-code&state=unknown",
	} {
		rec := get(r, path)
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "http://app.local/login?error=auth-failed", rec.Header().Get("Location"))
	}

	loc, _ := url.Parse(get(r, "/api/v1/auth/login").Header().Get("Location"))
	rec := get(r, "/api/v1/auth/callback?code=bad-code&state="+loc.Query().Get("state"))
	assert.Equal(t, "http://app.local/login?error=auth-failed", rec.Header().Get("Location"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/notes", safeNext("/notes"))
	assert.Equal(t, defaultNext, safeNext("//evil.example"))
	assert.Equal(t, defaultNext, safeNext("https://evil.example"))
	assert.Equal(t, defaultNext, safeNext(""))
}

func TestCallbackOnAnotherInstance(t *testing.T) {
	provider := newProvider(t)
	accounts := users.NewService(users.NewMemoryRepo())
	first := newInstance(provider, accounts, nil)
	second := newInstance(provider, accounts, nil)

	state := loginState(t, first, "/notes")
	rec := get(second, "/api/v1/auth/callback?code=good-code&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusFound, rec.Code)
	target, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/notes", target.Path)
	claims, err := sharedauth.VerifyJWT(fragmentToken(t, target))
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.Subject)
}

func TestSharedReplayGuardRejectsReuseAcrossInstances(t *testing.T) {
	provider := newProvider(t)
	accounts := users.NewService(users.NewMemoryRepo())
	guard := NewMemoryReplayGuard()
	first := newInstance(provider, accounts, guard)
	second := newInstance(provider, accounts, guard)

	state := url.QueryEscape(loginState(t, first, "/"))
	rec := get(first, "/api/v1/auth/callback?code=good-code&state="+state)
	assert.NotContains(t, rec.Header().Get("Location"), "auth-failed")

	rec = get(second, "/api/v1/auth/callback?code=good-code&state="+state)
	assert.Equal(t, "http://app.local/login?error=auth-failed", rec.Header().Get("Location"))
}

type brokenGuard struct{}

func (brokenGuard) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestCallbackToleratesReplayGuardOutage(t *testing.T) {
	r := newInstance(newProvider(t), users.NewService(users.NewMemoryRepo()), brokenGuard{})
	state := loginState(t, r, "/documents")
	rec := get(r, "/api/v1/auth/callback?code=good-code&state="+url.QueryEscape(state))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "http://app.local/documents#token="))
}

func TestCallbackRejectsTamperedState(t *testing.T) {
	r, _ := newRouter(t)
	state := loginState(t, r, "/documents")
	rec := get(r, "/api/v1/auth/callback?code=good-code&state="+url.QueryEscape(state+"x"))
	assert.Equal(t, "http://app.local/login?error=auth-failed", rec.Header().Get("Location"))
}
