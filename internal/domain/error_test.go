package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"sentinel", ErrOrderCancelled, "Order is already cancelled"},
		{"with op", &Error{Code: EGONE, Op: "order.get", Message: "Order has been deleted"}, "order.get: Order has been deleted"},
		{"wrapped", &Error{Code: EINTERNAL, Op: "order.update", Message: "failed to save order", Err: cause}, "order.update: failed to save order: connection refused"},
		{"wrapped without op", &Error{Code: EUNAVAILABLE, Message: "gateway timed out", Err: cause}, "gateway timed out: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOrderStateSentinels(t *testing.T) {
	sentinels := []*Error{ErrOrderCancelled, ErrOrderAlreadyInStatus, ErrOrderStatusTransition}

	for _, s := range sentinels {
		t.Run(s.Message, func(t *testing.T) {
			wrapped := WrapError(s, s.Code, "order.set_status", s.Message)
			if ErrorCode(wrapped) != ECONFLICT {
				t.Errorf("ErrorCode() = %q, want %q", ErrorCode(wrapped), ECONFLICT)
			}
			for _, other := range sentinels {
				if got := errors.Is(wrapped, other); got != (other == s) {
					t.Errorf("errors.Is(%q, %q) = %v", s.Message, other.Message, got)
				}
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deleted order", ErrOrderDeleted, EGONE},
		{"deleted order behind fmt", fmt.Errorf("load: %w", ErrOrderDeleted), EGONE},
		{"outermost code wins", WrapError(ErrVersionConflict, EUNAVAILABLE, "order.cancel", "retry later"), EUNAVAILABLE},
		{"validation", NewValidationError("order.insert_item", "quantity", "must be greater than 0"), EINVALID},
		{"plain error", errors.New("boom"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Codes raised outside the order model keep their code and message
// through WrapError.
func TestErrorCode_GatewayAndEdgeCodes(t *testing.T) {
	tests := []struct {
		code    string
		op      string
		message string
	}{
		{EPAYMENT, "payment_transaction.capture", "Payment gateway rejected the operation"},
		{ETOOLARGE, "http.body", "Request body too large"},
		{ERATELIMIT, "http.rate_limit", "Too many requests"},
		{EUNAVAILABLE, "payment_transaction.capture", "Payment gateway timed out"},
		{ENOTIMPL, "payment_transaction.void", "Payment gateway does not support void"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			cause := errors.New("upstream detail")
			err := WrapError(cause, tt.code, tt.op, tt.message)

			if ErrorCode(err) != tt.code {
				t.Errorf("ErrorCode() = %q, want %q", ErrorCode(err), tt.code)
			}
			if ErrorMessage(err) != tt.message {
				t.Errorf("ErrorMessage() = %q, want %q", ErrorMessage(err), tt.message)
			}
			if ErrorOp(err) != tt.op {
				t.Errorf("ErrorOp() = %q, want %q", ErrorOp(err), tt.op)
			}
			if !errors.Is(err, cause) {
				t.Error("cause lost")
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"sentinel", ErrItemNotDispatched, ErrItemNotDispatched.Message},
		{"internal is hidden", Internal(errors.New("pq: password authentication failed"), "order.update", "failed to save order"), internalMessage},
		{"plain error is hidden", errors.New("dial tcp 10.0.0.3:5432"), internalMessage},
		{"validation lists the field", NewValidationError("payment_transaction.refund", "amount", "must be greater than 0"), "payment_transaction.refund: amount: must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.want {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, EINTERNAL, "order.update", "failed to save order") != nil {
		t.Error("WrapError(nil) should stay nil")
	}

	err := WrapError(ErrVersionConflict, ECONFLICT, "order.cancel", "Order changed, reload and retry")
	if !errors.Is(err, ErrVersionConflict) {
		t.Error("errors.Is should find ErrVersionConflict")
	}
	if !IsCode(err, ECONFLICT) {
		t.Errorf("IsCode(ECONFLICT) = false for %v", err)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		msg  string
	}{
		{"not found", NotFound("order.get", "order", "ord-1"), ENOTFOUND, "order not found: ord-1"},
		{"invalid", Invalid("shipment.insert", "Shipment has no items"), EINVALID, "Shipment has no items"},
		{"conflict", Conflict("gift_voucher.insert", "gift voucher code already exists"), ECONFLICT, "gift voucher code already exists"},
		{"errorf", Errorf(EINVALID, "order.status", "unknown order status: %s", "lost"), EINVALID, "unknown order status: lost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ErrorCode(tt.err) != tt.code {
				t.Errorf("ErrorCode() = %q, want %q", ErrorCode(tt.err), tt.code)
			}
			if ErrorMessage(tt.err) != tt.msg {
				t.Errorf("ErrorMessage() = %q, want %q", ErrorMessage(tt.err), tt.msg)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single field", func(t *testing.T) {
		err := NewValidationError("order.insert_item", "quantity", "must be greater than 0")
		if got := GetValidationFields(err)["quantity"]; got != "must be greater than 0" {
			t.Errorf("Fields[quantity] = %q", got)
		}
	})

	t.Run("several fields are listed in order", func(t *testing.T) {
		err := &ValidationError{Op: "order.cancel_items", Fields: map[string]string{
			"items[1].quantity": "must be greater than 0",
			"items[0].item_id":  "is required",
		}}
		want := "order.cancel_items: invalid fields: items[0].item_id, items[1].quantity"
		if err.Error() != want {
			t.Errorf("Error() = %q, want %q", err.Error(), want)
		}
	})

	t.Run("other errors have no fields", func(t *testing.T) {
		if GetValidationFields(ErrOrderItemNotFound) != nil {
			t.Error("GetValidationFields should be nil for a coded error")
		}
		if IsValidationError(ErrItemQuantityInvalid) {
			t.Error("a coded EINVALID error is not a ValidationError")
		}
	})
}

func TestPreDefinedErrors(t *testing.T) {
	tests := []struct {
		err  *Error
		code string
	}{
		{ErrVersionConflict, ECONFLICT},
		{ErrOrderDeleted, EGONE},
		{ErrOrderItemNotFound, ENOTFOUND},
		{ErrOrderItemNotOpen, ECONFLICT},
		{ErrItemQuantityExceedsOpen, EINVALID},
		{ErrItemNotDispatched, EINVALID},
		{ErrItemQuantityBelowProcessed, EINVALID},
		{ErrShipmentAlreadyShipped, ECONFLICT},
	}

	for _, tt := range tests {
		t.Run(tt.err.Message, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.code {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.code)
			}
		})
	}
}
