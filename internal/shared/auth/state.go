package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// stateAudience keeps OAuth state tokens and session tokens apart.
const stateAudience = "oauth-state"

// StateClaims is the payload of the OAuth state parameter. ID is a nonce
// used to make each state single use.
type StateClaims struct {
	Next string `json:"next"`
	jwt.RegisteredClaims
}

// SignState issues a short-lived HS256 state token carrying the post-login
// path, so the callback can be served by any instance.
func SignState(next string, ttl time.Duration) (string, error) {
	secret, err := signingSecret()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := StateClaims{
		Next: next,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyState checks a state token minted by SignState.
func VerifyState(raw string) (StateClaims, error) {
	secret, err := signingSecret()
	if err != nil {
		return StateClaims{}, err
	}
	var claims StateClaims
	_, err = jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil || strings.TrimSpace(claims.ID) == "" {
		return StateClaims{}, ErrInvalidToken
	}
	return claims, nil
}
