package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/verdandi/internal/domain"
)

// codeStatus maps domain error codes to HTTP statuses. Unknown codes are 500.
var codeStatus = map[string]int{
	domain.EINVALID:      http.StatusBadRequest,
	domain.EUNAUTHORIZED: http.StatusUnauthorized,
	domain.EPAYMENT:      http.StatusPaymentRequired,
	domain.EFORBIDDEN:    http.StatusForbidden,
	domain.ENOTFOUND:     http.StatusNotFound,
	domain.ECONFLICT:     http.StatusConflict,
	domain.EGONE:         http.StatusGone,
	domain.ETOOLARGE:     http.StatusRequestEntityTooLarge,
	domain.ERATELIMIT:    http.StatusTooManyRequests,
	domain.ENOTIMPL:      http.StatusNotImplemented,
	domain.EUNAVAILABLE:  http.StatusServiceUnavailable,
}

// StatusForCode returns the HTTP status for a domain error code.
func StatusForCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WantsText reports whether the client asked for a plain-text error. JSON
// is the default for the admin API.
func WantsText(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return false
	}
	return strings.Contains(accept, "text/plain") || strings.Contains(accept, "text/html")
}

// respondWithError is the middleware-level twin of handler.ErrorResponse,
// which this package cannot import.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := StatusForCode(code)

	logger := GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request refused", "error", err, "code", code, "status", status)
	} else {
		logger.InfoContext(r.Context(), "request refused", "code", code, "status", status)
	}

	if WantsText(r) {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}

func refuse(w http.ResponseWriter, r *http.Request, code, message string) {
	respondWithError(w, r, domain.Errorf(code, "", "%s", message))
}
