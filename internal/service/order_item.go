package service

import (
	"context"
	"fmt"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// CancelOrderItem cancels quantity open units of an item and releases their
// reserved stock. A quantity of 0 cancels every open unit.
func (s *orderService) CancelOrderItem(ctx context.Context, orderID, itemID string, quantity int) (*domain.Order, error) {
	const op = "order_item.cancel"

	unlock, err := s.lock(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == domain.OrderStatusCancelled {
		return nil, domain.ErrOrderCancelled
	}

	item, err := order.Item(itemID)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		quantity = item.OpenQty
	}
	if err := item.CanCancel(quantity); err != nil {
		return nil, err
	}

	if err := s.Inventory.AdjustReserved(ctx, item.ProductID, quantity, item.Attributes, item.WarehouseID); err != nil {
		return nil, domain.Internal(err, op, "failed to release reserved inventory")
	}

	if err := item.Cancel(quantity); err != nil {
		return nil, err
	}
	order.AddNote(fmt.Sprintf("%d unit(s) of %s have been cancelled", quantity, itemLabel(item)), false)

	change := s.advanceStatus(order)
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if change.changed() {
			s.enterStatus(ctx, order, change.prev, change.next)
		}
		return s.updateOrder(ctx, op, order)
	})
	if err != nil {
		s.restock(ctx, item, -quantity)
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.OrderItemsCancelled.WithLabelValues(order.StoreID).Add(float64(quantity))
	}
	s.publish(ctx, domain.NewEntityEvent(domain.EntityOrderItem, domain.EntityUpdated, item.ID, order.ID))
	s.afterStatusChange(ctx, order, change, true)
	return order, nil
}

// InsertOrderItem adds an item to an existing order, reserving its stock and
// creating the gift vouchers it purchases.
func (s *orderService) InsertOrderItem(ctx context.Context, orderID string, params InsertOrderItemParams) (*domain.Order, error) {
	const op = "order_item.insert"

	if err := validateParams(op, params); err != nil {
		return nil, err
	}
	if params.UnitPriceInclTax.IsNegative() || params.UnitPriceExclTax.IsNegative() {
		return nil, domain.NewValidationError(op, "unit_price", "cannot be negative")
	}

	unlock, err := s.lock(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == domain.OrderStatusCancelled {
		return nil, domain.ErrOrderCancelled
	}

	item := domain.NewOrderItem(params.ProductID, params.Quantity, params.UnitPriceInclTax, params.UnitPriceExclTax)
	item.ProductName = params.ProductName
	item.SKU = params.SKU
	item.WarehouseID = params.WarehouseID
	item.Attributes = params.Attributes
	item.DiscountAmount = params.DiscountAmount
	item.IsGiftVoucher = params.IsGiftVoucher

	if err := s.Inventory.AdjustReserved(ctx, item.ProductID, -item.Quantity, item.Attributes, item.WarehouseID); err != nil {
		return nil, domain.Internal(err, op, "failed to reserve inventory")
	}

	order.Items = append(order.Items, item)
	order.RecalculateTotals()
	added := &order.Items[len(order.Items)-1]
	order.AddNote(fmt.Sprintf("%d unit(s) of %s have been added", added.Quantity, itemLabel(added)), false)

	var vouchers []string
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if vouchers, err = s.syncGiftVouchers(ctx, order, added); err != nil {
			return err
		}
		return s.updateOrder(ctx, op, order)
	})
	if err != nil {
		s.restock(ctx, &item, item.Quantity)
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.OrderItemsInserted.WithLabelValues(order.StoreID).Inc()
	}
	s.publish(ctx, domain.NewEntityEvent(domain.EntityOrderItem, domain.EntityInserted, added.ID, order.ID))
	s.publishVouchersCreated(ctx, order.ID, vouchers)
	return order, nil
}

// UpdateOrderItem changes an item's quantity and prices. The reserved stock
// follows the change in open quantity.
func (s *orderService) UpdateOrderItem(ctx context.Context, orderID, itemID string, params UpdateOrderItemParams) (*domain.Order, error) {
	const op = "order_item.update"

	if err := validateParams(op, params); err != nil {
		return nil, err
	}
	if (params.UnitPriceInclTax != nil && params.UnitPriceInclTax.IsNegative()) ||
		(params.UnitPriceExclTax != nil && params.UnitPriceExclTax.IsNegative()) {
		return nil, domain.NewValidationError(op, "unit_price", "cannot be negative")
	}

	unlock, err := s.lock(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == domain.OrderStatusCancelled {
		return nil, domain.ErrOrderCancelled
	}

	item, err := order.Item(itemID)
	if err != nil {
		return nil, err
	}

	openDelta, err := item.SetQuantity(params.Quantity)
	if err != nil {
		return nil, err
	}
	if params.UnitPriceInclTax != nil {
		item.UnitPriceInclTax = *params.UnitPriceInclTax
	}
	if params.UnitPriceExclTax != nil {
		item.UnitPriceExclTax = *params.UnitPriceExclTax
	}
	if params.DiscountAmount != nil {
		item.DiscountAmount = *params.DiscountAmount
	}

	if openDelta != 0 {
		if err := s.Inventory.AdjustReserved(ctx, item.ProductID, -openDelta, item.Attributes, item.WarehouseID); err != nil {
			return nil, domain.Internal(err, op, "failed to adjust reserved inventory")
		}
	}

	order.RecalculateTotals()
	order.AddNote(fmt.Sprintf("%s has been updated", itemLabel(item)), false)

	var vouchers []string
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if vouchers, err = s.syncGiftVouchers(ctx, order, item); err != nil {
			return err
		}
		return s.updateOrder(ctx, op, order)
	})
	if err != nil {
		if openDelta != 0 {
			s.restock(ctx, item, openDelta)
		}
		return nil, err
	}

	s.publish(ctx, domain.NewEntityEvent(domain.EntityOrderItem, domain.EntityUpdated, item.ID, order.ID))
	s.publishVouchersCreated(ctx, order.ID, vouchers)
	return order, nil
}

// restock undoes an inventory adjustment after the order could not be saved.
func (s *orderService) restock(ctx context.Context, item *domain.OrderItem, quantity int) {
	if err := s.Inventory.AdjustReserved(ctx, item.ProductID, quantity, item.Attributes, item.WarehouseID); err != nil {
		s.logger.Error("failed to undo inventory adjustment",
			"product_id", item.ProductID,
			"quantity", quantity,
			"error", err,
		)
		telemetry.CaptureError(ctx, err, map[string]string{"component": "inventory"}, map[string]interface{}{"product_id": item.ProductID})
	}
}

func itemLabel(item *domain.OrderItem) string {
	if item.ProductName != "" {
		return item.ProductName
	}
	return item.ProductID
}
