// Package auth provides session tokens, password hashing, Google sign-in
// and one-time codes.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The user signs in with one of three methods: email + password,
//     Google (OAuth authorization code flow), or phone + one-time code.
//  2. The service layer resolves the method to a user document and issues a
//     JWT whose subject is the internal user ID.
//  3. The JWT travels in an HttpOnly "token" cookie.
//  4. On each request, LoadSession validates the cookie and rebuilds the
//     session state from the user document. A valid token whose profile
//     cannot be loaded yields a logged-out session (fail closed).
//
// The JWT carries no role or profile data: the DB stays the source of truth,
// so a profile edit is visible on the very next request.
//
// TOKEN CONTENTS:
//
//	sub  internal user ID (an xid, never the email or phone)
//	iss  "toptuitions"
//	iat  issue time
//	exp  issue time + TOKEN_TTL (required; a token without exp is rejected)
//
// Logging out deletes the cookie. A copied token stays valid until exp, so
// keep TOKEN_TTL short enough for that to be acceptable.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "toptuitions"

// TokenService handles JWT creation and validation (HS256).
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; generate one with `openssl rand -hex 32`.
//
// Every token ever issued is signed with this secret. Changing JWT_SECRET
// signs everyone out on their next request.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens issued by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for userID that expires after the configured TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime.
// Negative durations produce already-expired tokens (useful in tests).
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a subject")
	}
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

// Validate parses and verifies a JWT string and returns its subject.
//
// Rejected: bad signature, expiry in the past, missing expiry, wrong issuer,
// and any algorithm other than HS256.
//
// ALGORITHM PINNING:
// The alg field is chosen by whoever built the token. Validate only accepts
// HS256, both in the key func and through WithValidMethods, so a token that
// claims "none" or HS512 is refused before its signature is looked at.
// See TestValidate_Rejects for the cases.
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
