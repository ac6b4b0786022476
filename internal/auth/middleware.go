package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/group-study/internal/apperror"
)

// CookieName is the cookie carrying the session token.
const CookieName = "token"

// contextKey is an unexported type so no other package can read or shadow
// the identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// ErrNoSession is returned by SessionIdentity when the request carries no token cookie.
var ErrNoSession = errors.New("auth: no session cookie")

// RequireSession is the session guard for protected routes.
//
// It reads the JWT from the "token" HttpOnly cookie and verifies it. A missing
// cookie and a token that fails verification are both rejected with
// 401 unauthenticated: the client has to log in again. On success the
// recovered identity is stored in the request context for handlers.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireSession(tokens *TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := SessionIdentity(r, tokens)
			if err != nil {
				logger.Info("session rejected",
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
				)
				writeRejection(w, http.StatusUnauthorized, "unauthenticated", "unauthorized access")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity attached by RequireSession.
//
// Returns ("", false) if the request is anonymous.
func IdentityFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey).(string)
	return id, ok && id != ""
}

// MatchIdentity is the second tier of the guard for per-identity private data:
// the caller is authenticated, but may only read the data of its own identity.
// A missing session is still reported as unauthenticated.
func MatchIdentity(sessionIdentity, targetIdentity string) error {
	if sessionIdentity == "" {
		return apperror.Unauthenticated("unauthorized access")
	}
	if sessionIdentity != targetIdentity {
		return apperror.Forbidden("forbidden access")
	}
	return nil
}

// SessionIdentity reads the token cookie and verifies it.
//
// COOKIE FLOW:
//  1. Set-Cookie: token=<jwt>; HttpOnly; Secure; SameSite=None (set on /jwt)
//  2. The browser sends Cookie: token=<jwt> on subsequent credentialed requests
//  3. We read r.Cookie("token") and verify it
func SessionIdentity(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSession
	}

	return tokens.Verify(cookie.Value)
}

// writeRejection mirrors the handler package's error body:
// {"error": "<code>", "message": "..."}
func writeRejection(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
