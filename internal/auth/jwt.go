// Package auth provides session tokens, the session guard middleware, the
// ownership rule and the GitHub identity provider.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The client posts its identity (an email) to /jwt, or logs in with GitHub
//  2. The server issues a signed JWT and stores it in the HttpOnly "token" cookie
//  3. Routes guarded by RequireSession read the cookie, verify the JWT and put
//     the identity in the request context
//  4. /logout deletes the cookie; there is no server-side session to destroy
//
// JWT STRUCTURE (three base64url parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"student@example.com","iss":"group-study","iat":...,"exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
//
// Validity is decided by the signature and the embedded expiry alone.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/group-study/internal/apperror"
)

const (
	issuer = "group-study"

	// DefaultTokenTTL is used when NewTokenService receives a non-positive TTL.
	DefaultTokenTTL = time.Hour
)

// Verification failures. Verify wraps exactly one of these.
var (
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrExpired          = errors.New("auth: token expired")
)

// TokenService issues and verifies session tokens.
//
// It holds the HMAC secret used for both operations. The secret is read-only
// after construction, so one TokenService is shared by all requests.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and token lifetime.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL reports how long issued tokens stay valid. The session cookie uses the
// same value for Max-Age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. The identity lives in the standard "sub" claim.
type claims struct {
	jwt.RegisteredClaims
}

// Issue signs a new session token for identity, valid for the service TTL.
func (s *TokenService) Issue(identity string) (string, error) {
	return s.IssueWithTTL(identity, s.ttl)
}

// IssueWithTTL signs a token with a custom lifetime. Tests use a negative
// duration to mint already-expired tokens.
func (s *TokenService) IssueWithTTL(identity string, d time.Duration) (string, error) {
	if identity == "" {
		return "", apperror.InvalidArgument("identity", "identity must not be empty")
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
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

// Verify checks the token signature and expiry and returns the embedded identity.
//
// The jwt library verifies the HMAC first (with hmac.Equal, a constant-time
// comparison) and only then validates claims, so a tampered token reports
// ErrInvalidSignature even when it is also past its expiry.
//
// Anything that was not produced by this service's secret (wrong key, wrong
// algorithm, malformed input, missing subject) is reported as ErrInvalidSignature.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		// Reject non-zero trailing bits so every character of the signature counts.
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrInvalidSignature)
	}

	return c.Subject, nil
}
