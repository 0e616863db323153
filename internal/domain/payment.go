package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GatewayCapabilities describes which online operations the payment method
// behind a transaction supports. Offline variants never consult it.
type GatewayCapabilities struct {
	Capture       bool `json:"capture"`
	Void          bool `json:"void"`
	Refund        bool `json:"refund"`
	PartialRefund bool `json:"partial_refund"`
}

// PaymentTransaction is a financial operation record referencing an order by
// OrderGUID. It has its own lifecycle so refunds can be retried after the
// order changed.
type PaymentTransaction struct {
	ID            string
	OrderGUID     string
	OrderCode     string
	CustomerID    string
	StoreID       string
	PaymentMethod string
	CurrencyCode  string

	TransactionAmount decimal.Decimal
	PaidAmount        decimal.Decimal
	RefundedAmount    decimal.Decimal
	Status            TransactionStatus

	AuthorizationTransactionID string
	CaptureTransactionID       string
	RefundTransactionID        string

	// Errors holds the messages of the last failed gateway call.
	Errors []string

	PaidAt    *time.Time
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefundableAmount is what has been paid and not yet refunded.
func (t *PaymentTransaction) RefundableAmount() decimal.Decimal {
	r := t.PaidAmount.Sub(t.RefundedAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// OutstandingAmount is what is still to be paid.
func (t *PaymentTransaction) OutstandingAmount() decimal.Decimal {
	r := t.TransactionAmount.Sub(t.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// CanCapture reports whether an authorized amount can be captured online.
func (t *PaymentTransaction) CanCapture(caps GatewayCapabilities) bool {
	return caps.Capture && t.Status == TransactionStatusAuthorized
}

// CanVoid reports whether the transaction can be voided through the gateway.
func (t *PaymentTransaction) CanVoid(caps GatewayCapabilities) bool {
	return caps.Void && t.CanVoidOffline()
}

func (t *PaymentTransaction) CanVoidOffline() bool {
	if !t.TransactionAmount.IsPositive() {
		return false
	}
	return t.Status == TransactionStatusAuthorized || t.Status == TransactionStatusPaid
}

// CanRefund reports whether the whole refundable amount can be refunded online.
func (t *PaymentTransaction) CanRefund(caps GatewayCapabilities) bool {
	return caps.Refund && t.CanRefundOffline()
}

func (t *PaymentTransaction) CanRefundOffline() bool {
	return t.canRefundAmount(t.RefundableAmount())
}

// CanPartiallyRefund reports whether amount can be refunded online.
func (t *PaymentTransaction) CanPartiallyRefund(caps GatewayCapabilities, amount decimal.Decimal) bool {
	return caps.PartialRefund && t.canRefundAmount(amount)
}

func (t *PaymentTransaction) CanPartiallyRefundOffline(amount decimal.Decimal) bool {
	return t.canRefundAmount(amount)
}

func (t *PaymentTransaction) canRefundAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if amount.GreaterThan(t.RefundableAmount()) {
		return false
	}
	return t.Status == TransactionStatusPaid || t.Status == TransactionStatusPartiallyRefunded
}

// CanMarkPaymentTransactionAsPaid reports whether the transaction can be
// recorded as paid without a gateway call.
func (t *PaymentTransaction) CanMarkPaymentTransactionAsPaid() bool {
	return t.Status == TransactionStatusPending || t.Status == TransactionStatusPartiallyPaid
}

// CanPartiallyPaidOffline reports whether amount can be recorded as received.
// The running paid amount may reach but never exceed the transaction amount.
func (t *PaymentTransaction) CanPartiallyPaidOffline(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if t.Status != TransactionStatusPending && t.Status != TransactionStatusPartiallyPaid {
		return false
	}
	return t.PaidAmount.Add(amount).LessThanOrEqual(t.TransactionAmount)
}

// CanMarkAsCaptured reports whether a capture made outside the engine can be
// recorded against the authorization.
func (t *PaymentTransaction) CanMarkAsCaptured() bool {
	return t.Status == TransactionStatusAuthorized
}

// CanMarkAsAuthorized reports whether a gateway authorization can be recorded.
func (t *PaymentTransaction) CanMarkAsAuthorized() bool {
	return t.Status == TransactionStatusPending
}

// TransactionGuards is the full set of guard answers for a transaction.
type TransactionGuards struct {
	CanCapture                bool `json:"can_capture"`
	CanVoid                   bool `json:"can_void"`
	CanVoidOffline            bool `json:"can_void_offline"`
	CanRefund                 bool `json:"can_refund"`
	CanRefundOffline          bool `json:"can_refund_offline"`
	CanPartiallyRefund        bool `json:"can_partially_refund"`
	CanPartiallyRefundOffline bool `json:"can_partially_refund_offline"`
	CanMarkAsPaid             bool `json:"can_mark_as_paid"`
	CanPartiallyPaidOffline   bool `json:"can_partially_paid_offline"`
}

// Guards evaluates every guard. Amount-based guards are evaluated against the
// smallest meaningful amount so they answer "is any partial operation possible".
func (t *PaymentTransaction) Guards(caps GatewayCapabilities) TransactionGuards {
	cent := decimal.New(1, -2)
	return TransactionGuards{
		CanCapture:                t.CanCapture(caps),
		CanVoid:                   t.CanVoid(caps),
		CanVoidOffline:            t.CanVoidOffline(),
		CanRefund:                 t.CanRefund(caps),
		CanRefundOffline:          t.CanRefundOffline(),
		CanPartiallyRefund:        t.CanPartiallyRefund(caps, cent),
		CanPartiallyRefundOffline: t.CanPartiallyRefundOffline(cent),
		CanMarkAsPaid:             t.CanMarkPaymentTransactionAsPaid(),
		CanPartiallyPaidOffline:   t.CanPartiallyPaidOffline(cent),
	}
}
