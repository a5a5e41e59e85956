package auth

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer is stamped on every session token and required on verify.
	Issuer = "studyhub"

	sessionTTL = 24 * time.Hour
	clockSkew  = 30 * time.Second
	devSecret  = "dev-secret"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("JWT_SECRET is required in production")
)

// Claims is the session identity carried in the bearer token. Subject is
// the user id.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SignJWT issues an HS256 session token. Missing iat, exp and jti are filled
// in; exp defaults to 24h.
func SignJWT(claims Claims) (string, error) {
	secret, err := signingSecret()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("jwt subject is required")
	}

	now := time.Now().UTC()
	claims.Issuer = Issuer
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(sessionTTL))
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyJWT checks signature, algorithm, issuer and expiry. Every failure is
// reported as ErrInvalidToken except a missing production secret.
func VerifyJWT(raw string) (Claims, error) {
	secret, err := signingSecret()
	if err != nil {
		return Claims{}, err
	}
	var claims Claims
	_, err = jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil || strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// signingSecret reads JWT_SECRET on every call so rotations and tests take
// effect without a restart. Outside production a fixed dev secret is used.
func signingSecret() ([]byte, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret != "" {
		return []byte(secret), nil
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ENV"))) {
	case "prod", "production":
		return nil, ErrMissingSecret
	}
	return []byte(devSecret), nil
}
