package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studyhub-backend/internal/shared/auth"
	"studyhub-backend/internal/shared/server/respond"
)

const (
	userIDKey      = "userId"
	userEmailKey   = "userEmail"
	userNameKey    = "userName"
	userPictureKey = "userPicture"
	userRoleKey    = "userRole"
)

// publicPrefixes are reachable without identity.
var publicPrefixes = []string{
	"/api/v1/health",
	"/api/v1/metrics",
	"/api/v1/auth/",
	"/api/v1/stripe/webhook",
}

// Auth resolves the caller's identity from a bearer JWT. In dev and local
// environments an X-User-Id header is accepted when no token is sent.
// Public prefixes and CORS preflights pass through untouched.
func Auth(env string) gin.HandlerFunc {
	devMode := env == "dev" || env == "local"
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if isPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
			claims, ok := bearerClaims(header)
			if !ok {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			setIdentity(c, claims)
			c.Next()
			return
		}

		if devID := strings.TrimSpace(c.GetHeader("X-User-Id")); devMode && devID != "" {
			c.Set(userIDKey, devID)
			c.Next()
			return
		}
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
	}
}

func isPublic(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func bearerClaims(header string) (auth.Claims, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return auth.Claims{}, false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, false
	}
	claims, err := auth.VerifyJWT(token)
	return claims, err == nil
}

func setIdentity(c *gin.Context, claims auth.Claims) {
	c.Set(userIDKey, claims.Subject)
	for key, val := range map[string]string{
		userEmailKey:   claims.Email,
		userNameKey:    claims.Name,
		userPictureKey: claims.Picture,
		userRoleKey:    claims.Role,
	} {
		if val != "" {
			c.Set(key, val)
		}
	}
}

// UserIDFromContext returns the authenticated user id, or "" on public routes.
func UserIDFromContext(c *gin.Context) string {
	return stringFromContext(c, userIDKey)
}

func UserEmailFromContext(c *gin.Context) string {
	return stringFromContext(c, userEmailKey)
}

func UserNameFromContext(c *gin.Context) string {
	return stringFromContext(c, userNameKey)
}

func UserPictureFromContext(c *gin.Context) string {
	return stringFromContext(c, userPictureKey)
}

// UserRoleFromContext fetches the role claim, if the token carried one.
func UserRoleFromContext(c *gin.Context) string {
	return stringFromContext(c, userRoleKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	return c.GetString(key)
}
