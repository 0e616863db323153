package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/verdandi/internal"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	RequestIDContextKey contextKey = "request_id"

	maxRequestIDLength = 128
)

// RequestID accepts an inbound X-Request-ID from the proxy or generates one,
// echoes it on the response and attaches it to every record logged with the
// request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), RequestIDContextKey, id)
		ctx = internal.WithLogAttrs(ctx, slog.String("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID accepts up to maxRequestIDLength printable ASCII bytes.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}
