package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// CascadeStep is one dependent side effect of cancelling or deleting an order.
// Steps may mutate the in-memory order; runCascade persists it.
type CascadeStep interface {
	Name() string
	Execute(ctx context.Context, order *domain.Order) error
}

type cascadeStep struct {
	name string
	run  func(ctx context.Context, order *domain.Order) error
}

func (s cascadeStep) Name() string { return s.name }

func (s cascadeStep) Execute(ctx context.Context, order *domain.Order) error {
	return s.run(ctx, order)
}

// Step names, also used as metric labels.
const (
	stepShipments      = "shipments"
	stepInventory      = "inventory"
	stepReservations   = "reservations"
	stepAuctionBids    = "auction_bids"
	stepDiscounts      = "discounts"
	stepGiftVouchers   = "gift_vouchers"
	stepLoyaltyPoints  = "loyalty_points"
	stepRedeemedPoints = "redeemed_points"
)

const (
	cascadeCancel = "cancel"
	cascadeDelete = "delete"
	// statusEffects labels the side effects of entering a status.
	statusEffects = "status"
)

// stockRelease is an open quantity cancelled on the order whose reserved
// stock still has to be returned.
type stockRelease struct {
	itemID      string
	productID   string
	qty         int
	attributes  []domain.CustomAttribute
	warehouseID string
}

// collaboratorSteps are the cascade steps served outside the database.
// Cancelling reservations, bids and discounts by order is repeatable; stock
// is released only for the units recorded by the checkpoint.
func (e *engine) collaboratorSteps(releases []stockRelease) []CascadeStep {
	return []CascadeStep{
		cascadeStep{stepInventory, func(ctx context.Context, order *domain.Order) error {
			return e.releaseStock(ctx, releases)
		}},
		cascadeStep{stepReservations, func(ctx context.Context, order *domain.Order) error {
			if e.Reservations == nil {
				return nil
			}
			return e.Reservations.CancelReservationsByOrderID(ctx, order.ID)
		}},
		cascadeStep{stepAuctionBids, func(ctx context.Context, order *domain.Order) error {
			if e.Auctions == nil {
				return nil
			}
			return e.Auctions.CancelBidByOrder(ctx, order.ID)
		}},
		cascadeStep{stepDiscounts, func(ctx context.Context, order *domain.Order) error {
			if e.Discounts == nil {
				return nil
			}
			return e.Discounts.CancelDiscount(ctx, order.ID)
		}},
	}
}

// ledgerSteps are the cascade steps that write to the database. They run in
// the terminal transaction, each in its own savepoint.
func (e *engine) ledgerSteps(deactivateVouchers, loyalty bool) []CascadeStep {
	var steps []CascadeStep
	if deactivateVouchers {
		steps = append(steps, cascadeStep{stepGiftVouchers, func(ctx context.Context, order *domain.Order) error {
			return e.setGiftVouchersActive(ctx, order, false)
		}})
	}
	if !loyalty {
		return steps
	}
	if e.LoyaltySettings.ReduceLoyaltyPointsAfterCancelOrder {
		steps = append(steps, cascadeStep{stepLoyaltyPoints, func(ctx context.Context, order *domain.Order) error {
			_, err := e.reducePoints(ctx, order)
			return err
		}})
	}
	steps = append(steps, cascadeStep{stepRedeemedPoints, func(ctx context.Context, order *domain.Order) error {
		_, err := e.returnRedeemedPoints(ctx, order)
		return err
	}})
	return steps
}

// cascadeRun describes one cancel or delete cascade.
type cascadeRun struct {
	operation string
	// full runs the stock and collaborator steps. A delete of an already
	// cancelled order only deals with gift vouchers.
	full       bool
	vouchers   bool
	terminalOp string
	// terminal applies the final state to the order before the last write.
	terminal func(order *domain.Order)
}

// runCascade executes the cascade and the terminal order write. It returns
// the names of the failed steps, or an error when the order could not be
// persisted; the order then keeps its previous status.
//
// Open shipments are unlinked and open quantities cancelled first, and that
// checkpoint is saved before any stock is released, so a retried cascade
// never releases the same units twice. Collaborator steps follow. The ledger
// steps and the terminal write share one transaction, so a failed terminal
// write takes their entries with it.
func (e *engine) runCascade(ctx context.Context, run cascadeRun, order *domain.Order) ([]string, error) {
	start := time.Now()
	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.CascadeDuration.WithLabelValues(run.operation).Observe(time.Since(start).Seconds())
		}
	}()

	var failed []string
	if run.full {
		releases, stepErrs, err := e.checkpointStock(ctx, run, order)
		if err != nil {
			return nil, err
		}
		failed = append(failed, stepErrs...)
		failed = append(failed, e.executeSteps(ctx, run.operation, order, e.collaboratorSteps(releases))...)
	}

	err := e.Tx.WithinTx(ctx, func(ctx context.Context) error {
		failed = append(failed, e.savepointSteps(ctx, run.operation, order, e.ledgerSteps(run.vouchers, run.full))...)
		run.terminal(order)
		return e.updateOrder(ctx, run.terminalOp, order)
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

// checkpointStock unlinks undispatched shipments, cancels every open unit
// and persists the order, all in one transaction. It returns the stock to
// release. Nothing is written when there is nothing to release or unlink.
func (e *engine) checkpointStock(ctx context.Context, run cascadeRun, order *domain.Order) ([]stockRelease, []string, error) {
	var (
		releases []stockRelease
		failed   []string
		unlinked []string
	)
	err := e.Tx.WithinTx(ctx, func(ctx context.Context) error {
		err := e.Tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			unlinked, err = e.unlinkOpenShipments(ctx, order)
			return err
		})
		if err != nil {
			failed = append(failed, stepShipments)
			e.stepFailed(ctx, run.operation, stepShipments, order, err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			if item.OpenQty <= 0 {
				continue
			}
			qty := item.OpenQty
			if err := item.Cancel(qty); err != nil {
				return domain.Internal(err, run.terminalOp, "failed to cancel open quantity")
			}
			releases = append(releases, stockRelease{
				itemID:      item.ID,
				productID:   item.ProductID,
				qty:         qty,
				attributes:  item.Attributes,
				warehouseID: item.WarehouseID,
			})
		}
		if len(releases) == 0 && len(unlinked) == 0 {
			return nil
		}
		order.AddNote(fmt.Sprintf("Open quantity of %d items cancelled before order %s", len(releases), run.operation), false)
		return e.updateOrder(ctx, run.terminalOp, order)
	})
	if err != nil {
		return nil, nil, err
	}

	for _, id := range unlinked {
		e.publish(ctx, domain.NewEntityEvent(domain.EntityShipment, domain.EntityDeleted, id, order.ID))
	}
	return releases, failed, nil
}

// executeSteps runs every step in order. A failing step is recorded by
// stepFailed and the next step still runs. It returns the failed names.
func (e *engine) executeSteps(ctx context.Context, operation string, order *domain.Order, steps []CascadeStep) []string {
	var failed []string
	for _, step := range steps {
		if err := step.Execute(ctx, order); err != nil {
			failed = append(failed, step.Name())
			e.stepFailed(ctx, operation, step.Name(), order, err)
		}
	}
	return failed
}

// savepointSteps runs database steps inside the caller's transaction, each
// in its own savepoint so a failed step leaves no partial writes.
func (e *engine) savepointSteps(ctx context.Context, operation string, order *domain.Order, steps []CascadeStep) []string {
	var failed []string
	for _, step := range steps {
		err := e.Tx.WithinTx(ctx, func(ctx context.Context) error {
			return step.Execute(ctx, order)
		})
		if err != nil {
			failed = append(failed, step.Name())
			e.stepFailed(ctx, operation, step.Name(), order, err)
		}
	}
	return failed
}

// stepFailed logs, counts and reports a skipped side effect and notes it on
// the order.
func (e *engine) stepFailed(ctx context.Context, operation, step string, order *domain.Order, err error) {
	e.logger.ErrorContext(ctx, "cascade step failed",
		"operation", operation,
		"step", step,
		"order_id", order.ID,
		"error", err,
	)
	if telemetry.Business != nil {
		telemetry.Business.CascadeStepFailures.WithLabelValues(operation, step).Inc()
	}
	telemetry.CaptureCascadeFailure(ctx, operation, step, order.ID, err)
	order.AddNote(fmt.Sprintf("Order %s step %q failed: %v", operation, step, err), false)
}

// unlinkOpenShipments returns the quantities of undispatched shipments to
// the order and deletes those shipments. It returns the deleted ids.
func (e *engine) unlinkOpenShipments(ctx context.Context, order *domain.Order) ([]string, error) {
	if !e.OrderSettings.UnlinkOpenShipmentsOnCancel {
		return nil, nil
	}

	shipments, err := e.Shipments.ListByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	var (
		deleted []string
		errs    []error
	)
	for _, sh := range shipments {
		if sh.Shipped() {
			continue
		}
		for _, line := range sh.Items {
			item, err := order.Item(line.OrderItemID)
			if err != nil {
				errs = append(errs, fmt.Errorf("shipment %s: %w", sh.ID, err))
				continue
			}
			if err := item.Unship(line.Quantity); err != nil {
				errs = append(errs, fmt.Errorf("shipment %s item %s: %w", sh.ID, item.ID, err))
			}
		}
		if err := e.Shipments.Delete(ctx, sh.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete shipment %s: %w", sh.ID, err))
			continue
		}
		deleted = append(deleted, sh.ID)
	}
	return deleted, errors.Join(errs...)
}

// releaseStock returns reserved stock for the checkpointed units.
func (e *engine) releaseStock(ctx context.Context, releases []stockRelease) error {
	var errs []error
	for _, r := range releases {
		if err := e.Inventory.AdjustReserved(ctx, r.productID, r.qty, r.attributes, r.warehouseID); err != nil {
			errs = append(errs, fmt.Errorf("item %s: %w", r.itemID, err))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// Cancel / Delete
// =============================================================================

func (s *orderService) CancelOrder(ctx context.Context, orderID string, notify bool) (*domain.Order, error) {
	unlock, err := s.lock(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, "order.cancel", orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanCancel() {
		return nil, domain.ErrOrderCancelled
	}
	return s.cancel(ctx, order, notify)
}

// cancel runs the cascade and persists the cancelled status as the last
// write. The caller holds the order lock.
func (e *engine) cancel(ctx context.Context, order *domain.Order, notify bool) (*domain.Order, error) {
	deactivate := e.OrderSettings.DeactivateGiftVouchersOnCancel ||
		e.OrderSettings.GiftVouchersDeactivatedStatus == domain.OrderStatusCancelled

	prev := order.OrderStatus
	failed, err := e.runCascade(ctx, cascadeRun{
		operation:  cascadeCancel,
		full:       true,
		vouchers:   deactivate,
		terminalOp: "order.cancel",
		terminal: func(order *domain.Order) {
			order.OrderStatus = domain.OrderStatusCancelled
			order.AddNote(fmt.Sprintf("Order status has been changed from %s to %s", prev, domain.OrderStatusCancelled), false)
		},
	}, order)
	if err != nil {
		return nil, err
	}

	e.logger.Info("order cancelled", "order_id", order.ID, "failed_steps", failed)
	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.WithLabelValues(order.StoreID).Inc()
		telemetry.Business.OrderStatusTransitions.
			WithLabelValues(order.StoreID, string(prev), string(domain.OrderStatusCancelled)).Inc()
	}

	now := time.Now().UTC()
	e.publish(ctx, domain.OrderCancelledEvent{
		OrderID:     order.ID,
		OrderGUID:   order.OrderGUID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		FailedSteps: failed,
		CancelledAt: now,
	})
	e.publish(ctx, domain.OrderStatusChangedEvent{
		OrderID:    order.ID,
		OrderGUID:  order.OrderGUID,
		PrevStatus: prev,
		NewStatus:  domain.OrderStatusCancelled,
		ChangedAt:  now,
	})
	if notify {
		e.notify(ctx, "order_cancelled", order.ID, func(n domain.Notifier) error {
			return n.OrderCancelled(ctx, order)
		})
	}
	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	const op = "order.delete"

	unlock, err := s.lock(ctx, orderLockKey(orderID))
	if err != nil {
		return err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, orderID)
	if err != nil {
		return err
	}

	failed, err := s.runCascade(ctx, cascadeRun{
		operation:  cascadeDelete,
		full:       order.OrderStatus != domain.OrderStatusCancelled,
		vouchers:   s.OrderSettings.DeactivateGiftVouchersOnDelete,
		terminalOp: op,
		terminal: func(order *domain.Order) {
			order.Deleted = true
			order.AddNote("Order has been deleted", false)
		},
	}, order)
	if err != nil {
		return err
	}

	s.logger.Info("order deleted", "order_id", order.ID, "failed_steps", failed)
	if telemetry.Business != nil {
		telemetry.Business.OrdersDeleted.WithLabelValues(order.StoreID).Inc()
	}
	s.publish(ctx, domain.NewEntityEvent(domain.EntityOrder, domain.EntityDeleted, order.ID, ""))
	return nil
}
