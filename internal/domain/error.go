package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes of the engine. The HTTP layer maps each one to a status;
// commands and repositories never pick a status themselves.
const (
	ECONFLICT     = "conflict"         // 409 - State conflict (already cancelled, stale version)
	EINTERNAL     = "internal"         // 500 - Internal server error (hide details)
	EINVALID      = "invalid"          // 400 - Validation error (bad input)
	ENOTFOUND     = "not_found"        // 404 - Resource not found
	EUNAUTHORIZED = "unauthorized"     // 401 - Authentication required
	EFORBIDDEN    = "forbidden"        // 403 - Authenticated but not permitted
	ENOTIMPL      = "not_implemented"  // 501 - Capability not offered by the gateway
	EPAYMENT      = "payment_required" // 402 - Gateway rejected the operation
	EGONE         = "gone"             // 410 - Resource soft-deleted
	ETOOLARGE     = "too_large"        // 413 - Request body over the limit
	ERATELIMIT    = "rate_limited"     // 429 - Too many requests
	EUNAVAILABLE  = "unavailable"      // 503 - Timed out or dependency down
)

// internalMessage replaces the message of every EINTERNAL error on its way
// to a caller.
const internalMessage = "An internal error occurred. Please try again later."

// Error is a coded engine error. Sentinels such as ErrOrderCancelled are
// *Error values; commands wrap them with WrapError so errors.Is still finds
// the sentinel under an operation-specific message.
type Error struct {
	Code string
	// Message is safe to show to API callers unless Code is EINTERNAL.
	Message string
	// Op names the command or repository call, e.g. "order.cancel".
	Op  string
	Err error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	parts = append(parts, e.Message)
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the code of the outermost *Error in err's chain.
// Validation failures report EINVALID and anything else EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &e):
		return e.Code
	case IsValidationError(err):
		return EINVALID
	default:
		return EINTERNAL
	}
}

// ErrorMessage returns the caller-facing message of err. Internal details
// are never exposed.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return internalMessage
}

// ErrorOp returns the operation recorded on err, for logging.
func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Errorf builds an unwrapped error with a formatted message.
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches code, op and message to err. A nil err stays nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// NotFound reports a missing resource, e.g. NotFound("order.get", "order", id).
func NotFound(op, resource, identifier string) error {
	return Errorf(ENOTFOUND, op, "%s not found: %s", resource, identifier)
}

func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// Internal wraps an infrastructure failure. Callers only ever see
// internalMessage; message and err are for the logs.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}

// ErrVersionConflict is returned by repositories when an update carries a
// stale version token.
var ErrVersionConflict = &Error{
	Code:    ECONFLICT,
	Message: "The record was modified by another request. Reload and try again.",
}

// =============================================================================
// Validation Errors
// =============================================================================

// ValidationError collects field failures of command or request parameters.
// Field names are the JSON names the caller sent.
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	prefix := ""
	if e.Op != "" {
		prefix = e.Op + ": "
	}
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return prefix + field + ": " + msg
		}
	}
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	return prefix + "invalid fields: " + strings.Join(names, ", ")
}

// NewValidationError reports a single invalid field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationFields returns the field failures of err, or nil.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
