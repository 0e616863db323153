package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
	"github.com/shopspring/decimal"
)

// PaymentTransactionService runs the payment transaction state machine.
// Every mutating operation loads the transaction and its order, checks the
// guard, calls the gateway for online variants only, then saves the
// transaction and the order together and re-applies the order status rules.
type PaymentTransactionService interface {
	GetTransaction(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	GetByAuthorizationTransactionID(ctx context.Context, authorizationID string) (*domain.PaymentTransaction, error)
	ListByOrderGUID(ctx context.Context, orderGUID string) ([]domain.PaymentTransaction, error)

	// GuardSummary answers every guard for the admin UI.
	GuardSummary(ctx context.Context, id string) (domain.TransactionGuards, error)

	Capture(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	Void(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	Refund(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	PartiallyRefund(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error)

	MarkAsPaid(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	PartiallyPaidOffline(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error)
	VoidOffline(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	RefundOffline(ctx context.Context, id string) (*domain.PaymentTransaction, error)
	PartiallyRefundOffline(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error)

	// MarkAsAuthorized records a gateway authorization, usually from a webhook.
	MarkAsAuthorized(ctx context.Context, id, authorizationID string) (*domain.PaymentTransaction, error)

	// MarkAsCaptured records a capture of an authorized transaction made
	// outside the engine, e.g. from the gateway dashboard.
	MarkAsCaptured(ctx context.Context, id, captureID string) (*domain.PaymentTransaction, error)
}

type paymentTransactionService struct {
	*engine
}

// NewPaymentTransactionService creates a PaymentTransactionService.
func NewPaymentTransactionService(deps Dependencies) (PaymentTransactionService, error) {
	e, err := newEngine(deps)
	if err != nil {
		return nil, err
	}
	return &paymentTransactionService{engine: e}, nil
}

// txOperation describes one state machine operation.
type txOperation struct {
	name string

	// guard rejects the operation before any side effect.
	guard func(tx *domain.PaymentTransaction, caps domain.GatewayCapabilities) error

	// online calls the gateway. Nil for offline operations.
	online func(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error)

	// apply performs the state assignment. result is nil for offline operations.
	apply func(tx *domain.PaymentTransaction, order *domain.Order, result *domain.GatewayResult)

	// after runs the operation's notifications once everything is saved.
	after func(ctx context.Context, tx *domain.PaymentTransaction, order *domain.Order)
}

func paymentLockKey(id string) string {
	return "payment_transaction:" + id
}

func (s *paymentTransactionService) GetTransaction(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	if id == "" {
		return nil, domain.Invalid("payment_transaction.get", "payment transaction id is required")
	}
	tx, err := s.Transactions.GetByID(ctx, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrPaymentTransactionNotFound
		}
		return nil, domain.Internal(err, "payment_transaction.get", "failed to load payment transaction")
	}
	return tx, nil
}

func (s *paymentTransactionService) GetByAuthorizationTransactionID(ctx context.Context, authorizationID string) (*domain.PaymentTransaction, error) {
	if authorizationID == "" {
		return nil, domain.Invalid("payment_transaction.get_by_authorization", "authorization id is required")
	}
	tx, err := s.Transactions.GetByAuthorizationTransactionID(ctx, authorizationID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrPaymentTransactionNotFound
		}
		return nil, domain.Internal(err, "payment_transaction.get_by_authorization", "failed to load payment transaction")
	}
	return tx, nil
}

func (s *paymentTransactionService) ListByOrderGUID(ctx context.Context, orderGUID string) ([]domain.PaymentTransaction, error) {
	if orderGUID == "" {
		return nil, domain.Invalid("payment_transaction.list", "order guid is required")
	}
	txs, err := s.Transactions.ListByOrderGUID(ctx, orderGUID)
	if err != nil {
		return nil, domain.Internal(err, "payment_transaction.list", "failed to list payment transactions")
	}
	return txs, nil
}

func (s *paymentTransactionService) GuardSummary(ctx context.Context, id string) (domain.TransactionGuards, error) {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return domain.TransactionGuards{}, err
	}
	return tx.Guards(s.capabilities(tx)), nil
}

func (s *paymentTransactionService) capabilities(tx *domain.PaymentTransaction) domain.GatewayCapabilities {
	if s.Gateway == nil {
		return domain.GatewayCapabilities{}
	}
	return s.Gateway.Capabilities(tx.PaymentMethod)
}

// =============================================================================
// Online operations
// =============================================================================

func (s *paymentTransactionService) Capture(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return s.run(ctx, id, txOperation{
		name: "capture",
		guard: func(tx *domain.PaymentTransaction, caps domain.GatewayCapabilities) error {
			if !caps.Capture {
				return ErrGatewayNotSupported
			}
			if !tx.CanCapture(caps) {
				return statusError("capture", tx, domain.TransactionStatusPaid)
			}
			return nil
		},
		online: func(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
			return s.Gateway.Capture(ctx, tx)
		},
		apply: func(tx *domain.PaymentTransaction, order *domain.Order, result *domain.GatewayResult) {
			if result.TransactionID != "" {
				tx.CaptureTransactionID = result.TransactionID
			}
			recordPayment(tx, order, tx.OutstandingAmount())
		},
	})
}

func (s *paymentTransactionService) Void(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	op := s.voidOperation("void")
	op.guard = func(tx *domain.PaymentTransaction, caps domain.GatewayCapabilities) error {
		if !caps.Void {
			return ErrGatewayNotSupported
		}
		if !tx.CanVoid(caps) {
			return statusError("void", tx, domain.TransactionStatusVoided)
		}
		return nil
	}
	op.online = func(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
		return s.Gateway.Void(ctx, tx)
	}
	return s.run(ctx, id, op)
}

func (s *paymentTransactionService) Refund(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	// The amount is only known once the transaction is loaded.
	var amount decimal.Decimal
	op := s.refundOperation("refund", &amount)
	op.guard = func(tx *domain.PaymentTransaction, caps domain.GatewayCapabilities) error {
		if !caps.Refund {
			return ErrGatewayNotSupported
		}
		if !tx.CanRefund(caps) {
			return statusError("refund", tx, domain.TransactionStatusRefunded)
		}
		amount = tx.RefundableAmount()
		return nil
	}
	op.online = func(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
		return s.Gateway.Refund(ctx, domain.RefundRequest{Transaction: tx, Amount: amount})
	}
	return s.run(ctx, id, op)
}

func (s *paymentTransactionService) PartiallyRefund(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	op := s.refundOperation("partial_refund", &amount)
	op.guard = func(tx *domain.PaymentTransaction, caps domain.GatewayCapabilities) error {
		if !caps.PartialRefund {
			return ErrGatewayNotSupported
		}
		return partialRefundGuard(tx, amount, func() bool { return tx.CanPartiallyRefund(caps, amount) })
	}
	op.online = func(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
		return s.Gateway.Refund(ctx, domain.RefundRequest{Transaction: tx, Amount: amount, IsPartial: true})
	}
	return s.run(ctx, id, op)
}

// =============================================================================
// Offline operations
// =============================================================================

func (s *paymentTransactionService) MarkAsPaid(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return s.run(ctx, id, txOperation{
		name: "mark_paid",
		guard: func(tx *domain.PaymentTransaction, _ domain.GatewayCapabilities) error {
			if !tx.CanMarkPaymentTransactionAsPaid() {
				return statusError("mark_paid", tx, domain.TransactionStatusPaid)
			}
			return nil
		},
		apply: func(tx *domain.PaymentTransaction, order *domain.Order, _ *domain.GatewayResult) {
			recordPayment(tx, order, tx.OutstandingAmount())
		},
	})
}

func (s *paymentTransactionService) PartiallyPaidOffline(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return s.run(ctx, id, txOperation{
		name: "partially_paid",
		guard: func(tx *domain.PaymentTransaction, _ domain.GatewayCapabilities) error {
			if tx.CanPartiallyPaidOffline(amount) {
				return nil
			}
			if tx.Status == domain.TransactionStatusPending || tx.Status == domain.TransactionStatusPartiallyPaid {
				return ErrPaymentExceedsOutstanding
			}
			return statusError("partially_paid", tx, domain.TransactionStatusPaid)
		},
		apply: func(tx *domain.PaymentTransaction, order *domain.Order, _ *domain.GatewayResult) {
			recordPayment(tx, order, amount)
		},
	})
}

func (s *paymentTransactionService) VoidOffline(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	op := s.voidOperation("void_offline")
	op.guard = func(tx *domain.PaymentTransaction, _ domain.GatewayCapabilities) error {
		if !tx.CanVoidOffline() {
			return statusError("void_offline", tx, domain.TransactionStatusVoided)
		}
		return nil
	}
	return s.run(ctx, id, op)
}

func (s *paymentTransactionService) RefundOffline(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	var amount decimal.Decimal
	op := s.refundOperation("refund_offline", &amount)
	op.guard = func(tx *domain.PaymentTransaction, _ domain.GatewayCapabilities) error {
		if !tx.CanRefundOffline() {
			return statusError("refund_offline", tx, domain.TransactionStatusRefunded)
		}
		amount = tx.RefundableAmount()
		return nil
	}
	return s.run(ctx, id, op)
}

func (s *paymentTransactionService) PartiallyRefundOffline(ctx context.Context, id string, amount decimal.Decimal) (*domain.PaymentTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	op := s.refundOperation("partial_refund_offline", &amount)
	op.guard = func(tx *domain.PaymentTransaction, _ domain.GatewayCapabilities) error {
		return partialRefundGuard(tx, amount, func() bool { return tx.CanPartiallyRefundOffline(amount) })
	}
	return s.run(ctx, id, op)
}

func (s *paymentTransactionService) MarkAsAuthorized(ctx context.Context, id, authorizationID string) (*domain.PaymentTransaction, error) {
	return s.run(ctx, id, txOperation{
		name: "mark_authorized",
		guard: func(tx *domain.PaymentTransaction, _ domain.GatewayCapabilities) error {
			if !tx.CanMarkAsAuthorized() {
				return statusError("mark_authorized", tx, domain.TransactionStatusAuthorized)
			}
			return nil
		},
		apply: func(tx *domain.PaymentTransaction, _ *domain.Order, _ *domain.GatewayResult) {
			tx.Status = domain.TransactionStatusAuthorized
			if authorizationID != "" {
				tx.AuthorizationTransactionID = authorizationID
			}
		},
	})
}

func (s *paymentTransactionService) MarkAsCaptured(ctx context.Context, id, captureID string) (*domain.PaymentTransaction, error) {
	return s.run(ctx, id, txOperation{
		name: "mark_captured",
		guard: func(tx *domain.PaymentTransaction, _ domain.GatewayCapabilities) error {
			if !tx.CanMarkAsCaptured() {
				return statusError("mark_captured", tx, domain.TransactionStatusPaid)
			}
			return nil
		},
		apply: func(tx *domain.PaymentTransaction, order *domain.Order, _ *domain.GatewayResult) {
			if captureID != "" {
				tx.CaptureTransactionID = captureID
			}
			recordPayment(tx, order, tx.OutstandingAmount())
		},
	})
}

// =============================================================================
// Shared operation pieces
// =============================================================================

func (s *paymentTransactionService) voidOperation(name string) txOperation {
	return txOperation{
		name: name,
		apply: func(tx *domain.PaymentTransaction, order *domain.Order, result *domain.GatewayResult) {
			// A paid transaction is voided by giving the money back.
			if tx.Status == domain.TransactionStatusPaid {
				if result != nil && result.TransactionID != "" {
					tx.RefundTransactionID = result.TransactionID
				}
				recordRefund(tx, order, tx.RefundableAmount())
			}
			tx.Status = domain.TransactionStatusVoided
		},
		after: func(ctx context.Context, tx *domain.PaymentTransaction, order *domain.Order) {
			s.notify(ctx, "payment_voided", order.ID, func(n domain.Notifier) error {
				return n.PaymentVoided(ctx, order, tx)
			})
		},
	}
}

// refundOperation refunds *amount, which the guard may fill in.
func (s *paymentTransactionService) refundOperation(name string, amount *decimal.Decimal) txOperation {
	return txOperation{
		name: name,
		apply: func(tx *domain.PaymentTransaction, order *domain.Order, result *domain.GatewayResult) {
			if result != nil && result.TransactionID != "" {
				tx.RefundTransactionID = result.TransactionID
			}
			recordRefund(tx, order, *amount)
		},
		after: func(ctx context.Context, tx *domain.PaymentTransaction, order *domain.Order) {
			if telemetry.Business != nil {
				telemetry.Business.RefundAmount.WithLabelValues(tx.StoreID, tx.CurrencyCode).Observe(amount.InexactFloat64())
			}
			s.notify(ctx, "order_refunded", order.ID, func(n domain.Notifier) error {
				return n.OrderRefunded(ctx, order, *amount)
			})
		},
	}
}

func partialRefundGuard(tx *domain.PaymentTransaction, amount decimal.Decimal, allowed func() bool) error {
	if allowed() {
		return nil
	}
	if (tx.Status == domain.TransactionStatusPaid || tx.Status == domain.TransactionStatusPartiallyRefunded) &&
		amount.GreaterThan(tx.RefundableAmount()) {
		return ErrRefundExceedsRefundable
	}
	return statusError("partial_refund", tx, domain.TransactionStatusRefunded)
}

// statusError distinguishes a transaction already in the operation's target
// status from one in a status the operation cannot start from.
func statusError(op string, tx *domain.PaymentTransaction, target domain.TransactionStatus) error {
	if tx.Status == target {
		return domain.WrapError(ErrTransactionAlreadyInStatus, domain.ECONFLICT, "payment_transaction."+op,
			"Payment transaction is already "+string(target))
	}
	return domain.WrapError(ErrTransactionStatusNotAllowed, domain.ECONFLICT, "payment_transaction."+op,
		"Payment transaction cannot be processed from status "+string(tx.Status))
}

// recordPayment adds amount to the paid totals of the transaction and order
// and sets the transaction status accordingly.
func recordPayment(tx *domain.PaymentTransaction, order *domain.Order, amount decimal.Decimal) {
	tx.PaidAmount = tx.PaidAmount.Add(amount)
	order.PaidAmount = order.PaidAmount.Add(amount)
	if tx.PaidAmount.GreaterThanOrEqual(tx.TransactionAmount) {
		tx.Status = domain.TransactionStatusPaid
		now := time.Now().UTC()
		tx.PaidAt = &now
		return
	}
	tx.Status = domain.TransactionStatusPartiallyPaid
}

// recordRefund adds amount to the refunded totals. The transaction becomes
// refunded once everything paid has been given back.
func recordRefund(tx *domain.PaymentTransaction, order *domain.Order, amount decimal.Decimal) {
	tx.RefundedAmount = tx.RefundedAmount.Add(amount)
	order.RefundedAmount = order.RefundedAmount.Add(amount)
	if tx.RefundedAmount.GreaterThanOrEqual(tx.PaidAmount) {
		tx.Status = domain.TransactionStatusRefunded
		return
	}
	tx.Status = domain.TransactionStatusPartiallyRefunded
}

// run executes op against the transaction identified by id.
func (s *paymentTransactionService) run(ctx context.Context, id string, op txOperation) (*domain.PaymentTransaction, error) {
	opName := "payment_transaction." + op.name

	unlock, err := s.lock(ctx, paymentLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	order, err := s.orderByGUID(ctx, opName, tx.OrderGUID)
	if err != nil {
		return nil, err
	}
	// The order lock is always taken after the transaction lock.
	unlockOrder, err := s.lock(ctx, orderLockKey(order.ID))
	if err != nil {
		return nil, err
	}
	defer unlockOrder()
	if order, err = s.orderByGUID(ctx, opName, tx.OrderGUID); err != nil {
		return nil, err
	}

	if err := op.guard(tx, s.capabilities(tx)); err != nil {
		s.countOperation(op.name, "rejected")
		return nil, err
	}

	var result *domain.GatewayResult
	if op.online != nil {
		if s.Gateway == nil {
			return nil, ErrGatewayNotSupported
		}
		result, err = s.callGateway(ctx, op, tx)
		if err != nil {
			return nil, err
		}
	}

	prevStatus, prevPaid, prevRefunded := tx.Status, tx.PaidAmount, tx.RefundedAmount
	tx.Errors = nil
	op.apply(tx, order, result)
	moved := tx.PaidAmount.Sub(prevPaid).Add(tx.RefundedAmount.Sub(prevRefunded))
	if moved.IsZero() {
		moved = tx.TransactionAmount
	}
	order.PaymentStatus = tx.Status.PaymentStatus()
	if prevStatus != tx.Status {
		order.AddNote("Payment transaction "+tx.ID+" is now "+string(tx.Status), false)
	}

	change := s.advanceStatus(order)
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if change.changed() {
			s.enterStatus(ctx, order, change.prev, change.next)
		}
		if err := s.Transactions.Update(ctx, tx); err != nil {
			if domain.IsCode(err, domain.ECONFLICT) {
				return err
			}
			return domain.Internal(err, opName, "failed to save payment transaction")
		}
		return s.updateOrder(ctx, opName, order)
	})
	if err != nil {
		s.countOperation(op.name, "error")
		if result != nil {
			s.reportUnrecorded(ctx, op.name, tx, result, err)
		}
		return nil, err
	}

	s.logger.Info("payment transaction updated",
		"transaction_id", tx.ID,
		"operation", op.name,
		"from", prevStatus,
		"to", tx.Status,
	)
	s.countOperation(op.name, "success")
	if tx.Status == domain.TransactionStatusPaid && prevStatus != domain.TransactionStatusPaid && telemetry.Business != nil {
		telemetry.Business.RevenueCollected.WithLabelValues(tx.StoreID, tx.CurrencyCode).Add(tx.PaidAmount.InexactFloat64())
	}

	s.publish(ctx, domain.PaymentTransactionChangedEvent{
		TransactionID: tx.ID,
		OrderGUID:     tx.OrderGUID,
		Operation:     op.name,
		PrevStatus:    prevStatus,
		NewStatus:     tx.Status,
		Amount:        moved,
		OccurredAt:    time.Now().UTC(),
	})
	s.afterStatusChange(ctx, order, change, true)
	if op.after != nil {
		op.after(ctx, tx, order)
	}
	return tx, nil
}

func (s *paymentTransactionService) orderByGUID(ctx context.Context, op, guid string) (*domain.Order, error) {
	order, err := s.Orders.GetByGUID(ctx, guid)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrOrderNotFound
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	return order, nil
}

// reportUnrecorded flags a gateway operation that succeeded but could not be
// saved, and records the gateway reference on the transaction for
// reconciliation.
func (s *paymentTransactionService) reportUnrecorded(ctx context.Context, opName string, tx *domain.PaymentTransaction, result *domain.GatewayResult, cause error) {
	s.logger.ErrorContext(ctx, "gateway operation succeeded but was not saved",
		"transaction_id", tx.ID,
		"operation", opName,
		"gateway_reference", result.TransactionID,
		"error", cause,
	)
	s.countOperation(opName, "unrecorded")
	telemetry.CaptureError(ctx, cause,
		map[string]string{"payment_operation": opName, "payment_unrecorded": "true"},
		map[string]interface{}{"transaction_id": tx.ID, "gateway_reference": result.TransactionID},
	)

	// Reload so the note does not race the version of the failed write.
	current, err := s.Transactions.GetByID(ctx, tx.ID)
	if err != nil {
		return
	}
	current.Errors = append(current.Errors,
		"gateway "+opName+" succeeded ("+result.TransactionID+") but was not recorded: "+cause.Error())
	if err := s.Transactions.Update(ctx, current); err != nil {
		s.logger.ErrorContext(ctx, "failed to flag unrecorded gateway operation", "transaction_id", tx.ID, "error", err)
	}
}

// callGateway invokes the online half of op. A refusal records the gateway
// messages on the transaction, leaves its status alone and returns EPAYMENT.
func (s *paymentTransactionService) callGateway(ctx context.Context, op txOperation, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
	ctx, finish := telemetry.StartSpan(ctx, "payment.gateway", op.name)
	start := time.Now()
	result, err := op.online(ctx, tx)
	finish()
	if telemetry.Business != nil {
		telemetry.Business.GatewayLatency.WithLabelValues(op.name).Observe(time.Since(start).Seconds())
	}

	if err == nil && result.Success() {
		return result, nil
	}

	var messages []string
	if result != nil {
		messages = append(messages, result.Errors...)
	}
	if err != nil {
		messages = append(messages, err.Error())
	}
	if err == nil {
		err = ErrGatewayRejected
	}

	tx.Errors = messages
	if uerr := s.Transactions.Update(ctx, tx); uerr != nil {
		s.logger.Error("failed to record gateway errors", "transaction_id", tx.ID, "error", uerr)
	}

	s.logger.Warn("payment gateway refused operation",
		"transaction_id", tx.ID,
		"operation", op.name,
		"errors", messages,
	)
	s.countOperation(op.name, "gateway_error")
	telemetry.CaptureError(ctx, err, map[string]string{"payment_operation": op.name}, map[string]interface{}{"transaction_id": tx.ID})

	if errors.Is(err, ErrGatewayNotSupported) {
		return nil, err
	}
	return nil, domain.WrapError(err, domain.EPAYMENT, "payment_transaction."+op.name, strings.Join(messages, "; "))
}

func (s *paymentTransactionService) countOperation(operation, result string) {
	if telemetry.Business != nil {
		telemetry.Business.PaymentOperations.WithLabelValues(operation, result).Inc()
	}
}
