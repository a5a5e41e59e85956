package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	sharedauth "studyhub-backend/internal/shared/auth"
	"studyhub-backend/internal/shared/server/respond"
	"studyhub-backend/internal/shared/telemetry"
	"studyhub-backend/internal/users"
)

const (
	defaultNext = "/dashboard"
	failurePath = "/login?error=auth-failed"
	stateTTL    = 10 * time.Minute
)

// Accounts persists signed-in users.
type Accounts interface {
	UpsertFromAuth(ctx context.Context, user users.User) error
	RoleOf(ctx context.Context, userID string) (string, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	AppBaseURL   string
	// Replay defaults to a process-local guard.
	Replay ReplayGuard
}

// OAuthService runs the authorization-code flow and issues our own JWT.
type OAuthService struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	appBaseURL  string
	accounts    Accounts
	replay      ReplayGuard
}

func NewOAuthService(cfg Config, accounts Accounts) *OAuthService {
	replay := cfg.Replay
	if replay == nil {
		replay = NewMemoryReplayGuard()
	}
	return &OAuthService{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		appBaseURL:  strings.TrimRight(cfg.AppBaseURL, "/"),
		accounts:    accounts,
		replay:      replay,
	}
}

func (s *OAuthService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/login", s.login)
	rg.GET("/auth/callback", s.callback)
}

func (s *OAuthService) configured() bool {
	return s.oauthConfig.ClientID != "" && s.oauthConfig.ClientSecret != "" && s.oauthConfig.RedirectURL != ""
}

func (s *OAuthService) login(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "OAuth is not configured", nil)
		return
	}
	state, err := sharedauth.SignState(safeNext(c.Query("next")), stateTTL)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "unable to start sign-in", nil)
		return
	}
	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// callback always answers with a redirect: to next on success, to the login
// page with an error flag otherwise.
func (s *OAuthService) callback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" || !s.configured() {
		s.fail(c, "invalid_callback", nil)
		return
	}
	ctx := c.Request.Context()
	next, err := s.consumeState(ctx, c.Query("state"))
	if err != nil {
		s.fail(c, "invalid_state", err)
		return
	}
	if q := c.Query("next"); q != "" {
		next = safeNext(q)
	}

	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		s.fail(c, "exchange_failed", err)
		return
	}
	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		s.fail(c, "userinfo_failed", err)
		return
	}

	user := users.User{ID: info.Sub, Email: info.Email, FullName: info.Name, PictureURL: info.Picture}
	if err := s.accounts.UpsertFromAuth(ctx, user); err != nil {
		s.fail(c, "upsert_failed", err)
		return
	}
	role, err := s.accounts.RoleOf(ctx, user.ID)
	if err != nil {
		telemetry.Warn("auth.role_lookup_failed", map[string]any{"user_id": user.ID, "error": err.Error()})
		role = string(users.RoleFree)
	}

	claims := sharedauth.Claims{Email: info.Email, Name: info.Name, Picture: info.Picture, Role: role}
	claims.Subject = info.Sub
	jwt, err := sharedauth.SignJWT(claims)
	if err != nil {
		s.fail(c, "sign_failed", err)
		return
	}

	target, err := withTokenFragment(s.appBaseURL+next, jwt)
	if err != nil {
		s.fail(c, "redirect_failed", err)
		return
	}
	telemetry.Info("auth.signed_in", map[string]any{"user_id": user.ID})
	c.Redirect(http.StatusFound, target)
}

func (s *OAuthService) fail(c *gin.Context, reason string, err error) {
	fields := map[string]any{"reason": reason}
	if err != nil {
		fields["error"] = err.Error()
	}
	telemetry.Warn("auth.callback_failed", fields)
	c.Redirect(http.StatusFound, s.appBaseURL+failurePath)
}

type userInfo struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *OAuthService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (userInfo, error) {
	client := s.oauthConfig.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return userInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return userInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return userInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return userInfo{}, err
	}
	if info.Sub == "" {
		info.Sub = info.ID
	}
	if info.Sub == "" || info.Email == "" {
		return userInfo{}, errors.New("profile missing sub or email")
	}
	return info, nil
}

// safeNext only allows same-site relative paths.
func safeNext(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return defaultNext
	}
	return raw
}

// consumeState verifies the signed state and burns its nonce.
func (s *OAuthService) consumeState(ctx context.Context, raw string) (string, error) {
	if raw == "" {
		return "", errors.New("state missing")
	}
	claims, err := sharedauth.VerifyState(raw)
	if err != nil {
		return "", err
	}
	fresh, err := s.replay.Claim(ctx, claims.ID, stateTTL)
	if err != nil {
		// the signature and expiry still bound the state
		telemetry.Warn("auth.replay_guard_unavailable", map[string]any{"error": err.Error()})
		fresh = true
	}
	if !fresh {
		return "", errors.New("state already used")
	}
	return safeNext(claims.Next), nil
}

// withTokenFragment returns rawURL with "#token=<jwt>"; fragments never
// reach server logs.
func withTokenFragment(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Fragment = url.Values{"token": {token}}.Encode()
	u.RawFragment = ""
	return u.String(), nil
}
