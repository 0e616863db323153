package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/verdandi/internal"
	"github.com/dukerupert/verdandi/internal/domain"
)

type contextKey string

const (
	// ActorContextKey is the context key for the authenticated caller
	ActorContextKey contextKey = "actor"

	// ActorHeader optionally names the operator acting through the admin token.
	// It ends up in order notes and logs.
	ActorHeader = "X-Admin-Actor"

	defaultActor = "admin"
)

// RequireToken rejects requests without a matching bearer token.
// An empty token disables the check, which config only allows outside prod.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got, ok := bearerToken(r)
				if !ok {
					refuse(w, r, domain.EUNAUTHORIZED, "Authentication required")
					return
				}
				if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
					refuse(w, r, domain.EFORBIDDEN, "Invalid admin token")
					return
				}
			}

			actor := strings.TrimSpace(r.Header.Get(ActorHeader))
			if actor == "" {
				actor = defaultActor
			}
			ctx := context.WithValue(r.Context(), ActorContextKey, actor)
			ctx = internal.WithLogAttrs(ctx, slog.String("actor", actor))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// GetActor returns the caller recorded by RequireToken, or "" outside it.
func GetActor(ctx context.Context) string {
	actor, _ := ctx.Value(ActorContextKey).(string)
	return actor
}
