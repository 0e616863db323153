package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func paymentTx(status TransactionStatus, amount, paid, refunded int64) PaymentTransaction {
	return PaymentTransaction{
		Status:            status,
		TransactionAmount: decimal.NewFromInt(amount),
		PaidAmount:        decimal.NewFromInt(paid),
		RefundedAmount:    decimal.NewFromInt(refunded),
	}
}

func TestPaymentTransaction_Guards(t *testing.T) {
	all := GatewayCapabilities{Capture: true, Void: true, Refund: true, PartialRefund: true}
	none := GatewayCapabilities{}

	tests := []struct {
		name  string
		tx    PaymentTransaction
		check func(tx *PaymentTransaction) bool
		want  bool
	}{
		{"capture authorized", paymentTx(TransactionStatusAuthorized, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanCapture(all) }, true},
		{"capture without capability", paymentTx(TransactionStatusAuthorized, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanCapture(none) }, false},
		{"capture paid", paymentTx(TransactionStatusPaid, 100, 100, 0), func(tx *PaymentTransaction) bool { return tx.CanCapture(all) }, false},

		{"void authorized", paymentTx(TransactionStatusAuthorized, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanVoid(all) }, true},
		{"void paid offline", paymentTx(TransactionStatusPaid, 100, 100, 0), func(tx *PaymentTransaction) bool { return tx.CanVoidOffline() }, true},
		{"void zero amount", paymentTx(TransactionStatusAuthorized, 0, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanVoidOffline() }, false},
		{"void pending", paymentTx(TransactionStatusPending, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanVoidOffline() }, false},

		{"refund paid", paymentTx(TransactionStatusPaid, 100, 100, 0), func(tx *PaymentTransaction) bool { return tx.CanRefund(all) }, true},
		{"refund partially refunded", paymentTx(TransactionStatusPartiallyRefunded, 100, 100, 40), func(tx *PaymentTransaction) bool { return tx.CanRefundOffline() }, true},
		{"refund fully refunded", paymentTx(TransactionStatusRefunded, 100, 100, 100), func(tx *PaymentTransaction) bool { return tx.CanRefundOffline() }, false},
		{"refund authorized", paymentTx(TransactionStatusAuthorized, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanRefundOffline() }, false},

		{"partial refund within bounds", paymentTx(TransactionStatusPaid, 100, 100, 0), func(tx *PaymentTransaction) bool {
			return tx.CanPartiallyRefund(all, decimal.NewFromInt(40))
		}, true},
		{"partial refund of everything left", paymentTx(TransactionStatusPartiallyRefunded, 100, 100, 40), func(tx *PaymentTransaction) bool {
			return tx.CanPartiallyRefundOffline(decimal.NewFromInt(60))
		}, true},
		{"partial refund above refundable", paymentTx(TransactionStatusPaid, 100, 100, 0), func(tx *PaymentTransaction) bool {
			return tx.CanPartiallyRefundOffline(decimal.NewFromInt(150))
		}, false},
		{"partial refund of zero", paymentTx(TransactionStatusPaid, 100, 100, 0), func(tx *PaymentTransaction) bool {
			return tx.CanPartiallyRefundOffline(decimal.Zero)
		}, false},

		{"mark pending as paid", paymentTx(TransactionStatusPending, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanMarkPaymentTransactionAsPaid() }, true},
		{"mark partially paid as paid", paymentTx(TransactionStatusPartiallyPaid, 100, 30, 0), func(tx *PaymentTransaction) bool { return tx.CanMarkPaymentTransactionAsPaid() }, true},
		{"mark voided as paid", paymentTx(TransactionStatusVoided, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanMarkPaymentTransactionAsPaid() }, false},

		{"partial payment reaching the total", paymentTx(TransactionStatusPartiallyPaid, 100, 30, 0), func(tx *PaymentTransaction) bool {
			return tx.CanPartiallyPaidOffline(decimal.NewFromInt(70))
		}, true},
		{"partial payment above the total", paymentTx(TransactionStatusPartiallyPaid, 100, 30, 0), func(tx *PaymentTransaction) bool {
			return tx.CanPartiallyPaidOffline(decimal.NewFromInt(71))
		}, false},

		{"authorize pending", paymentTx(TransactionStatusPending, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanMarkAsAuthorized() }, true},
		{"authorize paid", paymentTx(TransactionStatusPaid, 100, 100, 0), func(tx *PaymentTransaction) bool { return tx.CanMarkAsAuthorized() }, false},
		{"external capture of authorized", paymentTx(TransactionStatusAuthorized, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanMarkAsCaptured() }, true},
		{"external capture of pending", paymentTx(TransactionStatusPending, 100, 0, 0), func(tx *PaymentTransaction) bool { return tx.CanMarkAsCaptured() }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := tt.tx
			if got := tt.check(&tx); got != tt.want {
				t.Errorf("guard = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaymentTransaction_Amounts(t *testing.T) {
	tx := paymentTx(TransactionStatusPartiallyRefunded, 100, 80, 30)
	if !tx.RefundableAmount().Equal(decimal.NewFromInt(50)) {
		t.Errorf("RefundableAmount = %s, want 50", tx.RefundableAmount())
	}
	if !tx.OutstandingAmount().Equal(decimal.NewFromInt(20)) {
		t.Errorf("OutstandingAmount = %s, want 20", tx.OutstandingAmount())
	}

	over := paymentTx(TransactionStatusPaid, 100, 120, 130)
	if !over.RefundableAmount().IsZero() || !over.OutstandingAmount().IsZero() {
		t.Error("amounts must never go negative")
	}
}

func TestTransactionStatus_PaymentStatus(t *testing.T) {
	tests := map[TransactionStatus]PaymentStatus{
		TransactionStatusPending:           PaymentStatusPending,
		TransactionStatusCancelled:         PaymentStatusPending,
		TransactionStatusAuthorized:        PaymentStatusAuthorized,
		TransactionStatusPaid:              PaymentStatusPaid,
		TransactionStatusPartiallyPaid:     PaymentStatusPartiallyPaid,
		TransactionStatusPartiallyRefunded: PaymentStatusPartiallyRefunded,
		TransactionStatusRefunded:          PaymentStatusRefunded,
		TransactionStatusVoided:            PaymentStatusVoided,
	}
	for in, want := range tests {
		if got := in.PaymentStatus(); got != want {
			t.Errorf("%s.PaymentStatus() = %s, want %s", in, got, want)
		}
	}
}
