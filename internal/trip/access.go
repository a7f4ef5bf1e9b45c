package trip

import (
	"context"
	"errors"
	"net/http"

	"github.com/La-Sectoblique/septotrip-api/internal/middleware"
	"github.com/La-Sectoblique/septotrip-api/internal/response"
)

type contextKey int

const (
	tripKey contextKey = iota
	memberKey
)

// WithTrip returns a copy of ctx carrying the resolved trip and whether the
// caller travels on it.
func WithTrip(ctx context.Context, t *Trip, member bool) context.Context {
	ctx = context.WithValue(ctx, tripKey, t)
	return context.WithValue(ctx, memberKey, member)
}

// FromContext returns the trip resolved by RequireAccess.
func FromContext(ctx context.Context) (*Trip, bool) {
	t, ok := ctx.Value(tripKey).(*Trip)
	return t, ok && t != nil
}

// CallerIsMember reports whether the caller travels on the trip in ctx.
func CallerIsMember(ctx context.Context) bool {
	member, _ := ctx.Value(memberKey).(bool)
	return member
}

// RequireAccess resolves the {tripID} URL parameter. Members get full access;
// other authenticated users may only read public trips.
func RequireAccess(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := middleware.UserID(r.Context())
			if !ok {
				response.Unauthorized(w, "unauthorized")
				return
			}
			tripID, ok := middleware.IDParam(r, "tripID")
			if !ok {
				response.BadRequest(w, "invalid trip id")
				return
			}

			t, err := svc.Get(r.Context(), tripID)
			if errors.Is(err, ErrNotFound) {
				response.NotFound(w, "trip not found")
				return
			}
			if err != nil {
				response.InternalError(w)
				return
			}

			member, err := svc.IsMember(r.Context(), t.ID, userID)
			if err != nil {
				response.InternalError(w)
				return
			}
			if !member {
				// hide private trips entirely
				if t.Visibility != Public {
					response.NotFound(w, "trip not found")
					return
				}
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					response.Forbidden(w, "only trip members can modify this trip")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithTrip(r.Context(), t, member)))
		})
	}
}
