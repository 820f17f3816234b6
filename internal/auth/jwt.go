// Package auth covers identity for the API: GitHub OAuth login, the JWT
// session cookie, long-lived API tokens for extension/CLI clients, and the
// middleware that puts the authenticated user ID into the request context.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "linkstash"

// sessionLifetime is how long a browser session cookie stays valid before
// the user has to log in through GitHub again.
const sessionLifetime = 24 * time.Hour

// TokenService signs and verifies the JWT session tokens. It holds the HMAC
// secret; the same secret must be used for both operations.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService. Secrets shorter than 16 characters
// are rejected outright rather than silently accepted.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate creates a signed session token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, sessionLifetime)
}

// GenerateWithDuration creates a token with a custom lifetime. Tests use
// this to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string, returning the user ID from
// the subject claim. The allowed-methods list pins HS256 so a token signed
// with "none" or an asymmetric algorithm never validates.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
