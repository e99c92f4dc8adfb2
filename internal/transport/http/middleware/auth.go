package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	jwtinfra "github.com/go-auth-core/internal/infrastructure/jwt"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// SessionBlacklist answers whether a session id has been revoked.
type SessionBlacklist interface {
	SessionBlacklisted(ctx context.Context, sessionID string) (bool, error)
}

// Auth returns middleware that validates the Bearer JWT, rejects tokens bound
// to a blacklisted session, and injects the claims into the request context.
// A signed token is self-verifying until it expires; the blacklist lookup is
// what makes revocation take effect before then.
func Auth(verifier TokenVerifier, blacklist SessionBlacklist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := verifier.Verify(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			revoked, err := blacklist.SessionBlacklisted(r.Context(), claims.SessionID)
			if err != nil {
				// Fail closed: an unreachable cache must not resurrect
				// revoked sessions.
				slog.Warn("blacklist lookup failed", "session_id", claims.SessionID, "err", err)
				writeJSONError(w, http.StatusUnauthorized, "could not validate session")
				return
			}
			if revoked {
				writeJSONError(w, http.StatusUnauthorized, "session revoked")
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}
