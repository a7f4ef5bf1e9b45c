package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/La-Sectoblique/septotrip-api/internal/response"
	"github.com/La-Sectoblique/septotrip-api/internal/session"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UserIDKey is the context key for the authenticated user's ID.
const UserIDKey contextKey = "userID"

// UserEmailKey is the context key for the authenticated user's email.
const UserEmailKey contextKey = "userEmail"

// RenewedTokenHeader carries a fresh session token when the presented one is
// about to expire.
const RenewedTokenHeader = "X-Renewed-JWT-Token"

// RequireAuth returns middleware that validates a Bearer session token and
// injects the user into the request context.
func RequireAuth(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := sessions.Parse(parts[1])
			if err != nil {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			if sessions.NeedsRenewal(claims) {
				if renewed, err := sessions.Issue(claims.UserID, claims.Email); err == nil {
					w.Header().Set(RenewedTokenHeader, renewed)
				}
			}

			ctx := WithUser(r.Context(), claims.UserID, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, userID int64, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserEmailKey, email)
}

// UserID returns the authenticated user's ID from ctx.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok && id > 0
}
