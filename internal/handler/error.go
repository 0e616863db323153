package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/middleware"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	return middleware.StatusForCode(code)
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse logs err and writes it as {"error":{"code","message"}}.
// Validation errors add "fields". Internal errors never expose their message.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	logError(r, err, code, status)

	body := errorBody{Code: code, Message: domain.ErrorMessage(err)}
	if fields := domain.GetValidationFields(err); fields != nil {
		body.Fields = fields
		body.Message = "Validation failed"
	}
	writeError(w, r, status, body)
}

func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required"))
}

func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.EFORBIDDEN, "", "You don't have permission to access this resource"))
}

func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

func logError(r *http.Request, err error, code string, status int) {
	logger := middleware.GetLogger(r.Context())
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"op", domain.ErrorOp(err),
		"status", status,
	}
	if status >= 500 {
		logger.ErrorContext(r.Context(), "request failed", attrs...)
	} else {
		logger.InfoContext(r.Context(), "request rejected", attrs...)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body errorBody) {
	if !acceptsJSON(r) {
		http.Error(w, body.Message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]errorBody{"error": body})
}

// acceptsJSON is true unless the client explicitly asks for text. A JSON
// request body or a .json path wins over the Accept header.
func acceptsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") || strings.HasSuffix(r.URL.Path, ".json") {
		return true
	}
	return !middleware.WantsText(r)
}
