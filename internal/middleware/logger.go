package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// LoggerContextKey is the context key for the request-scoped logger.
const LoggerContextKey contextKey = "logger"

// WithRequestLogger stores a logger carrying the method and route in the
// context. request_id, client_ip and actor are added to records by the
// context log handler, so log through the *Context methods.
func WithRequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.URL.Path
			if r.Pattern != "" {
				route = strings.TrimPrefix(r.Pattern, r.Method+" ")
			}
			l := base.With(slog.String("method", r.Method), slog.String("route", route))
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), LoggerContextKey, l)))
		})
	}
}

// GetLogger returns the request-scoped logger, then fallback, then
// slog.Default.
func GetLogger(ctx context.Context, fallback ...*slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(LoggerContextKey).(*slog.Logger); ok {
		return l
	}
	if len(fallback) > 0 && fallback[0] != nil {
		return fallback[0]
	}
	return slog.Default()
}
