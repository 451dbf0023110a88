// Package auth resolves the requesting user from a signed session cookie.
// It deliberately stops there: login, signup and session issuance belong to
// the upstream identity service.
package auth

import (
	"fmt"
	"net/http"
	"time"

	"resumeanalyzer/internal/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the resolved requesting user.
type Identity struct {
	Email string `json:"email"`
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Resolver validates session cookies and extracts the user identity.
type Resolver struct {
	cookieName string
	signingKey []byte
}

// NewResolver creates a session resolver. The signing key must match the
// key the identity service signs session cookies with.
func NewResolver(cookieName, signingKey string) (*Resolver, error) {
	if cookieName == "" {
		return nil, fmt.Errorf("session cookie name is required")
	}
	if signingKey == "" {
		return nil, fmt.Errorf("session signing key is required")
	}
	return &Resolver{
		cookieName: cookieName,
		signingKey: []byte(signingKey),
	}, nil
}

// ResolveRequest returns the identity carried by the request's session
// cookie. A missing, malformed or expired cookie yields an UNAUTHENTICATED
// error.
func (r *Resolver) ResolveRequest(req *http.Request) (*Identity, error) {
	cookie, err := req.Cookie(r.cookieName)
	if err != nil {
		return nil, errors.NewAuthError(errors.ErrCodeUnauthenticated,
			"No session cookie present", err)
	}
	return r.ResolveToken(cookie.Value)
}

// ResolveToken validates a raw session token.
func (r *Resolver) ResolveToken(tokenString string) (*Identity, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.signingKey, nil
	})
	if err != nil {
		return nil, errors.NewAuthError(errors.ErrCodeUnauthenticated,
			"Invalid session token", err)
	}
	if !token.Valid || claims.Email == "" {
		return nil, errors.NewAuthError(errors.ErrCodeUnauthenticated,
			"Session token carries no identity", nil)
	}
	return &Identity{Email: claims.Email}, nil
}

// IssueToken signs a session token for the given email. Used by the CLI and
// tests; the production identity service issues its own.
func (r *Resolver) IssueToken(email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// CookieName returns the configured session cookie name.
func (r *Resolver) CookieName() string { return r.cookieName }
