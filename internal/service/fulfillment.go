package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
	"github.com/google/uuid"
)

// FulfillmentService manages shipments and returns of order items.
type FulfillmentService interface {
	// CreateShipment moves the requested quantities from open to shipped and
	// records them in a new, not yet dispatched shipment.
	// Returns ErrExceedsOrderedQuantity if a quantity exceeds the open quantity.
	CreateShipment(ctx context.Context, params CreateShipmentParams) (*domain.Shipment, error)

	GetShipment(ctx context.Context, shipmentID string) (*domain.Shipment, error)
	ListShipmentsForOrder(ctx context.Context, orderID string) ([]domain.Shipment, error)

	// MarkShipped dispatches a shipment, recomputes the order shipping status
	// and re-applies the order status rules.
	MarkShipped(ctx context.Context, shipmentID string) (*domain.Shipment, error)

	// MarkDelivered records delivery of a dispatched shipment.
	MarkDelivered(ctx context.Context, shipmentID string) (*domain.Shipment, error)

	// ReturnOrderItem moves shipped units of an item to returned.
	ReturnOrderItem(ctx context.Context, orderID, itemID string, quantity int) (*domain.Order, error)
}

// CreateShipmentParams contains parameters for creating a shipment.
type CreateShipmentParams struct {
	OrderID        string               `validate:"required"`
	Items          []ShipmentItemParams `validate:"required,min=1,dive"`
	Carrier        string
	TrackingNumber string
}

// ShipmentItemParams specifies quantity to ship for an order item.
type ShipmentItemParams struct {
	OrderItemID string `validate:"required"`
	Quantity    int    `validate:"gt=0"`
}

type fulfillmentService struct {
	*engine
}

// NewFulfillmentService creates a new FulfillmentService instance.
func NewFulfillmentService(deps Dependencies) (FulfillmentService, error) {
	e, err := newEngine(deps)
	if err != nil {
		return nil, err
	}
	return &fulfillmentService{engine: e}, nil
}

// CreateShipment creates a shipment for one or more order items.
func (s *fulfillmentService) CreateShipment(ctx context.Context, params CreateShipmentParams) (*domain.Shipment, error) {
	const op = "shipment.create"

	if len(params.Items) == 0 {
		return nil, ErrNoItemsToShip
	}
	if err := validateParams(op, params); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, orderLockKey(params.OrderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, params.OrderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == domain.OrderStatusCancelled {
		return nil, domain.ErrOrderCancelled
	}
	if order.ShippingStatus == domain.ShippingStatusNotRequired {
		return nil, ErrShippingNotRequired
	}

	// Validate every line before moving any quantity
	for _, line := range params.Items {
		item, err := order.Item(line.OrderItemID)
		if err != nil {
			return nil, err
		}
		if item.OpenQty == 0 || item.Status != domain.OrderItemStatusOpen {
			return nil, ErrItemAlreadyFulfilled
		}
		if line.Quantity > item.OpenQty {
			return nil, ErrExceedsOrderedQuantity
		}
	}

	existing, err := s.Shipments.ListByOrderID(ctx, order.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list shipments")
	}

	shipment := &domain.Shipment{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		ShipmentNumber: len(existing) + 1,
		TrackingNumber: params.TrackingNumber,
		Carrier:        params.Carrier,
		CreatedAt:      time.Now().UTC(),
	}
	for _, line := range params.Items {
		item, _ := order.Item(line.OrderItemID)
		if err := item.Ship(line.Quantity); err != nil {
			return nil, err
		}
		shipment.Items = append(shipment.Items, domain.ShipmentItem{
			OrderItemID: line.OrderItemID,
			Quantity:    line.Quantity,
		})
	}
	order.AddNote(fmt.Sprintf("Shipment #%d has been added", shipment.ShipmentNumber), false)

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Shipments.Insert(ctx, shipment); err != nil {
			return domain.Internal(err, op, "failed to create shipment")
		}
		return s.updateOrder(ctx, op, order)
	})
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.ShipmentsCreated.WithLabelValues(order.StoreID).Inc()
	}
	s.publish(ctx, domain.NewEntityEvent(domain.EntityShipment, domain.EntityInserted, shipment.ID, order.ID))
	return shipment, nil
}

// GetShipment retrieves shipment details by ID.
func (s *fulfillmentService) GetShipment(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	if shipmentID == "" {
		return nil, domain.Invalid("shipment.get", "shipment id is required")
	}
	shipment, err := s.Shipments.GetByID(ctx, shipmentID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrShipmentNotFound
		}
		return nil, domain.Internal(err, "shipment.get", "failed to load shipment")
	}
	return shipment, nil
}

// ListShipmentsForOrder lists all shipments for an order.
func (s *fulfillmentService) ListShipmentsForOrder(ctx context.Context, orderID string) ([]domain.Shipment, error) {
	if orderID == "" {
		return nil, domain.Invalid("shipment.list", "order id is required")
	}
	shipments, err := s.Shipments.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, domain.Internal(err, "shipment.list", "failed to list shipments")
	}
	return shipments, nil
}

func (s *fulfillmentService) MarkShipped(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	return s.updateShipment(ctx, "shipment.ship", shipmentID, func(sh *domain.Shipment) error {
		if sh.Shipped() {
			return domain.ErrShipmentAlreadyShipped
		}
		now := time.Now().UTC()
		sh.ShippedAt = &now
		return nil
	})
}

func (s *fulfillmentService) MarkDelivered(ctx context.Context, shipmentID string) (*domain.Shipment, error) {
	return s.updateShipment(ctx, "shipment.deliver", shipmentID, func(sh *domain.Shipment) error {
		if !sh.Shipped() {
			return domain.ErrShipmentNotShipped
		}
		if sh.Delivered() {
			return domain.ErrShipmentAlreadyDelivered
		}
		now := time.Now().UTC()
		sh.DeliveredAt = &now
		return nil
	})
}

// updateShipment applies mutate to a shipment, recomputes the order's
// shipping status and saves both.
func (s *fulfillmentService) updateShipment(ctx context.Context, op, shipmentID string, mutate func(*domain.Shipment) error) (*domain.Shipment, error) {
	shipment, err := s.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, orderLockKey(shipment.OrderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, shipment.OrderID)
	if err != nil {
		return nil, err
	}
	shipments, err := s.Shipments.ListByOrderID(ctx, order.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list shipments")
	}

	// Work on the freshest copy of the shipment
	idx := -1
	for i := range shipments {
		if shipments[i].ID == shipment.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrShipmentNotFound
	}
	shipment = &shipments[idx]
	if err := mutate(shipment); err != nil {
		return nil, err
	}

	order.ShippingStatus = domain.DeriveShippingStatus(order, shipments)
	change := s.advanceStatus(order)

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Shipments.Update(ctx, shipment); err != nil {
			return domain.Internal(err, op, "failed to save shipment")
		}
		if change.changed() {
			s.enterStatus(ctx, order, change.prev, change.next)
		}
		return s.updateOrder(ctx, op, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shipment updated",
		"shipment_id", shipment.ID,
		"order_id", order.ID,
		"shipping_status", order.ShippingStatus,
	)
	s.publish(ctx, domain.NewEntityEvent(domain.EntityShipment, domain.EntityUpdated, shipment.ID, order.ID))
	s.afterStatusChange(ctx, order, change, true)
	return shipment, nil
}

func (s *fulfillmentService) ReturnOrderItem(ctx context.Context, orderID, itemID string, quantity int) (*domain.Order, error) {
	const op = "order_item.return"

	unlock, err := s.lock(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	item, err := order.Item(itemID)
	if err != nil {
		return nil, err
	}
	shipments, err := s.Shipments.ListByOrderID(ctx, order.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list shipments")
	}
	if quantity > 0 && quantity > domain.ReturnableQuantity(item, shipments) {
		return nil, domain.ErrItemNotDispatched
	}
	if err := item.Return(quantity); err != nil {
		return nil, err
	}
	order.AddNote(fmt.Sprintf("%d unit(s) of %s have been returned", quantity, itemLabel(item)), false)

	if err := s.updateOrder(ctx, op, order); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.NewEntityEvent(domain.EntityOrderItem, domain.EntityUpdated, item.ID, order.ID))
	return order, nil
}
