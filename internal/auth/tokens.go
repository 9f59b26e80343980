// Package auth issues and verifies the HMAC-signed tokens used by the
// API: short-lived access tokens, refresh tokens, and long-lived guest
// tokens. The token type travels in a dedicated claim so principal
// resolution can tell them apart.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeGuest   = "guest"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the JWT claims for all token types. Subject holds the
// user id (access/refresh) or the guest id (guest).
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies tokens with a shared HMAC secret.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// IssueAccess creates an access token for the given user id.
func (i *TokenIssuer) IssueAccess(subject string, ttl time.Duration) (string, error) {
	return i.issue(subject, TokenTypeAccess, ttl)
}

// IssueRefresh creates a refresh token for the given user id.
func (i *TokenIssuer) IssueRefresh(subject string, ttl time.Duration) (string, error) {
	return i.issue(subject, TokenTypeRefresh, ttl)
}

// IssueGuest creates a guest token and returns its expiry.
func (i *TokenIssuer) IssueGuest(guestID string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)
	token, err := i.issue(guestID, TokenTypeGuest, ttl)
	return token, expiresAt, err
}

func (i *TokenIssuer) issue(subject, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "whazzaudio-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses and validates a token, returning its claims.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
