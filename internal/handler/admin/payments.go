package admin

import (
	"context"
	"net/http"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/handler"
	"github.com/dukerupert/verdandi/internal/service"
	"github.com/shopspring/decimal"
)

// PaymentTransactionHandler exposes the payment transaction state machine.
type PaymentTransactionHandler struct {
	payments service.PaymentTransactionService
}

// NewPaymentTransactionHandler creates a new payment transaction handler
func NewPaymentTransactionHandler(payments service.PaymentTransactionService) *PaymentTransactionHandler {
	return &PaymentTransactionHandler{payments: payments}
}

// Get handles GET /admin/payment-transactions/{id}. The response carries the
// guard summary so a client can tell which actions are currently legal.
func (h *PaymentTransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	tx, err := h.payments.GetTransaction(ctx, id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	guards, err := h.payments.GuardSummary(ctx, id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := newTransactionResponse(tx)
	resp.Guards = &guards
	handler.WriteJSON(w, http.StatusOK, resp)
}

type txAction func(ctx context.Context, id string) (*domain.PaymentTransaction, error)

type txAmountAction func(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error)

func (h *PaymentTransactionHandler) Capture(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.payments.Capture)
}

func (h *PaymentTransactionHandler) Void(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.payments.Void)
}

func (h *PaymentTransactionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.payments.Refund)
}

func (h *PaymentTransactionHandler) PartiallyRefund(w http.ResponseWriter, r *http.Request) {
	h.runAmount(w, r, "admin.payments.partial_refund", h.payments.PartiallyRefund)
}

func (h *PaymentTransactionHandler) MarkAsPaid(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.payments.MarkAsPaid)
}

func (h *PaymentTransactionHandler) PartiallyPaidOffline(w http.ResponseWriter, r *http.Request) {
	h.runAmount(w, r, "admin.payments.partially_paid", h.payments.PartiallyPaidOffline)
}

func (h *PaymentTransactionHandler) VoidOffline(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.payments.VoidOffline)
}

func (h *PaymentTransactionHandler) RefundOffline(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.payments.RefundOffline)
}

func (h *PaymentTransactionHandler) PartiallyRefundOffline(w http.ResponseWriter, r *http.Request) {
	h.runAmount(w, r, "admin.payments.partial_refund_offline", h.payments.PartiallyRefundOffline)
}

func (h *PaymentTransactionHandler) run(w http.ResponseWriter, r *http.Request, action txAction) {
	tx, err := action(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, newTransactionResponse(tx))
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *PaymentTransactionHandler) runAmount(w http.ResponseWriter, r *http.Request, op string, action txAmountAction) {
	var req amountRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if !req.Amount.IsPositive() {
		handler.ErrorResponse(w, r, domain.NewValidationError(op, "amount", "must be greater than 0"))
		return
	}

	tx, err := action(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, newTransactionResponse(tx))
}
