package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// statusChange describes what advanceStatus did to an in-memory order.
type statusChange struct {
	prev    domain.OrderStatus
	next    domain.OrderStatus
	paidNow bool
}

func (c statusChange) changed() bool {
	return c.prev != c.next
}

// advanceStatus applies the automatic status rules to order without
// persisting it. It stamps PaidAt the first time payment reaches paid, moves
// pending orders to processing once payment or shipping has started, and
// completes paid orders whose shipping is done.
func (e *engine) advanceStatus(order *domain.Order) statusChange {
	change := statusChange{prev: order.OrderStatus, next: order.OrderStatus}
	if order.OrderStatus == domain.OrderStatusCancelled {
		return change
	}

	if order.PaymentStatus == domain.PaymentStatusPaid && order.PaidAt == nil {
		now := time.Now().UTC()
		order.PaidAt = &now
		change.paidNow = true
	}

	if order.OrderStatus == domain.OrderStatusPending {
		if order.PaymentStatus == domain.PaymentStatusAuthorized ||
			order.PaymentStatus == domain.PaymentStatusPaid ||
			order.ShippingStatus.Started() {
			order.OrderStatus = domain.OrderStatusProcessing
		}
	}

	if order.OrderStatus != domain.OrderStatusComplete && order.PaymentStatus == domain.PaymentStatusPaid {
		if e.shippingDone(order.ShippingStatus) {
			order.OrderStatus = domain.OrderStatusComplete
		}
	}

	change.next = order.OrderStatus
	return change
}

func (e *engine) shippingDone(s domain.ShippingStatus) bool {
	switch s {
	case domain.ShippingStatusNotRequired, domain.ShippingStatusDelivered:
		return true
	case domain.ShippingStatusShipped:
		return !e.OrderSettings.CompleteOrderWhenDelivered
	case domain.ShippingStatusNotYetShipped, domain.ShippingStatusPartiallyShipped:
		return false
	}
	return false
}

// enterStatus runs the side effects of the order reaching next inside the
// caller's transaction: the status note, the loyalty award on completion and
// gift voucher toggling. A failed effect is noted and reported but never
// undoes the status or payment being saved; AwardLoyaltyPoints retries a
// missed award.
func (e *engine) enterStatus(ctx context.Context, order *domain.Order, prev, next domain.OrderStatus) {
	order.AddNote(fmt.Sprintf("Order status has been changed from %s to %s", prev, next), false)

	var effects []CascadeStep
	if next == domain.OrderStatusComplete {
		effects = append(effects, cascadeStep{stepLoyaltyPoints, func(ctx context.Context, order *domain.Order) error {
			_, err := e.awardPoints(ctx, order)
			return err
		}})
	}

	s := e.OrderSettings
	if s.GiftVouchersActivatedStatus != "" && next == s.GiftVouchersActivatedStatus {
		effects = append(effects, cascadeStep{stepGiftVouchers, func(ctx context.Context, order *domain.Order) error {
			return e.setGiftVouchersActive(ctx, order, true)
		}})
	}
	if s.GiftVouchersDeactivatedStatus != "" && next == s.GiftVouchersDeactivatedStatus {
		effects = append(effects, cascadeStep{stepGiftVouchers, func(ctx context.Context, order *domain.Order) error {
			return e.setGiftVouchersActive(ctx, order, false)
		}})
	}
	e.savepointSteps(ctx, statusEffects, order, effects)
}

// afterStatusChange runs the side channels of a persisted status change.
func (e *engine) afterStatusChange(ctx context.Context, order *domain.Order, change statusChange, notify bool) {
	if change.paidNow {
		e.publish(ctx, domain.OrderPaidEvent{
			OrderID:   order.ID,
			OrderGUID: order.OrderGUID,
			Amount:    order.OrderTotal,
			PaidAt:    *order.PaidAt,
		})
		if notify {
			e.notify(ctx, "order_paid", order.ID, func(n domain.Notifier) error {
				return n.OrderPaid(ctx, order)
			})
		}
	}

	if !change.changed() {
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.OrderStatusTransitions.
			WithLabelValues(order.StoreID, string(change.prev), string(change.next)).Inc()
	}
	e.publish(ctx, domain.OrderStatusChangedEvent{
		OrderID:    order.ID,
		OrderGUID:  order.OrderGUID,
		PrevStatus: change.prev,
		NewStatus:  change.next,
		ChangedAt:  time.Now().UTC(),
	})

	if change.next == domain.OrderStatusComplete {
		invoiceURL := e.generateInvoice(ctx, order)
		if notify {
			e.notify(ctx, "order_completed", order.ID, func(n domain.Notifier) error {
				return n.OrderCompleted(ctx, order, invoiceURL)
			})
		}
	}
}

// generateInvoice renders the invoice when completed e-mails carry one.
// Failures leave the e-mail without an attachment.
func (e *engine) generateInvoice(ctx context.Context, order *domain.Order) string {
	if e.Invoices == nil || !e.OrderSettings.AttachInvoiceToCompletedEmail {
		return ""
	}
	url, err := e.Invoices.Generate(ctx, order)
	if err != nil {
		e.logger.Error("failed to generate invoice", "order_id", order.ID, "error", err)
		telemetry.CaptureError(ctx, err, map[string]string{"component": "invoice"}, map[string]interface{}{"order_id": order.ID})
		return ""
	}
	return url
}

// persistStatus saves order after advanceStatus when something changed,
// running enterStatus inside the same transaction. It reports whether a
// write happened.
func (e *engine) persistStatus(ctx context.Context, op string, order *domain.Order, change statusChange) (bool, error) {
	if !change.changed() && !change.paidNow {
		return false, nil
	}
	err := e.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if change.changed() {
			e.enterStatus(ctx, order, change.prev, change.next)
		}
		return e.updateOrder(ctx, op, order)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
