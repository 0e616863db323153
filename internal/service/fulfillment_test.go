package service

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withShipments makes the shipment mock stateful: lookups see seeded,
// inserted and updated shipments, latest write wins.
func (e *testEnv) withShipments(seed ...domain.Shipment) {
	current := func() []domain.Shipment {
		all := append([]domain.Shipment(nil), seed...)
		all = append(all, e.shipments.Inserted...)
		for _, u := range e.shipments.Updated {
			for i := range all {
				if all[i].ID == u.ID {
					all[i] = u
				}
			}
		}
		return all
	}
	e.shipments.GetByIDFunc = func(ctx context.Context, id string) (*domain.Shipment, error) {
		for _, s := range current() {
			if s.ID == id {
				return &s, nil
			}
		}
		return nil, domain.NotFound("shipment.get", "shipment", id)
	}
	e.shipments.ListByOrderIDFunc = func(ctx context.Context, orderID string) ([]domain.Shipment, error) {
		var out []domain.Shipment
		for _, s := range current() {
			if s.OrderID == orderID {
				out = append(out, s)
			}
		}
		return out, nil
	}
}

func newTestFulfillmentService(t *testing.T, env *testEnv) FulfillmentService {
	t.Helper()
	svc, err := NewFulfillmentService(env.deps())
	require.NoError(t, err)
	return svc
}

func paidOrder() domain.Order {
	o := testOrder()
	paidAt := time.Now().UTC()
	o.OrderStatus = domain.OrderStatusProcessing
	o.PaymentStatus = domain.PaymentStatusPaid
	o.PaidAt = &paidAt
	o.PaidAmount = o.OrderTotal
	return o
}

func TestFulfillmentService_CreateShipment(t *testing.T) {
	env := newTestEnv()
	env.withOrder(testOrder())
	env.withShipments()
	svc := newTestFulfillmentService(t, env)

	shipment, err := svc.CreateShipment(context.Background(), CreateShipmentParams{
		OrderID:        "id",
		Carrier:        "ups",
		TrackingNumber: "1Z999",
		Items:          []ShipmentItemParams{{OrderItemID: "item-a", Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, shipment.ShipmentNumber)
	assert.False(t, shipment.Shipped())
	require.Len(t, env.shipments.Inserted, 1)

	require.Len(t, env.orders.Updated, 1)
	itemA, _ := env.orders.Updated[0].Item("item-a")
	assert.Equal(t, 1, itemA.OpenQty)
	assert.Equal(t, 1, itemA.ShipQty)
	assert.True(t, itemA.QuantityConsistent())
	assert.Contains(t, env.events.names(), "shipment.inserted")

	second, err := svc.CreateShipment(context.Background(), CreateShipmentParams{
		OrderID: "id",
		Items:   []ShipmentItemParams{{OrderItemID: "item-a", Quantity: 1}, {OrderItemID: "item-b", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.ShipmentNumber)
}

func TestFulfillmentService_CreateShipment_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		order   func(*domain.Order)
		params  CreateShipmentParams
		wantErr error
	}{
		{
			name:    "no items",
			params:  CreateShipmentParams{OrderID: "id"},
			wantErr: ErrNoItemsToShip,
		},
		{
			name:    "more than open",
			params:  CreateShipmentParams{OrderID: "id", Items: []ShipmentItemParams{{OrderItemID: "item-a", Quantity: 3}}},
			wantErr: ErrExceedsOrderedQuantity,
		},
		{
			name: "item already shipped",
			order: func(o *domain.Order) {
				_ = o.Items[1].Ship(1)
			},
			params:  CreateShipmentParams{OrderID: "id", Items: []ShipmentItemParams{{OrderItemID: "item-b", Quantity: 1}}},
			wantErr: ErrItemAlreadyFulfilled,
		},
		{
			name:    "unknown item",
			params:  CreateShipmentParams{OrderID: "id", Items: []ShipmentItemParams{{OrderItemID: "item-z", Quantity: 1}}},
			wantErr: domain.ErrOrderItemNotFound,
		},
		{
			name: "shipping not required",
			order: func(o *domain.Order) {
				o.ShippingStatus = domain.ShippingStatusNotRequired
			},
			params:  CreateShipmentParams{OrderID: "id", Items: []ShipmentItemParams{{OrderItemID: "item-a", Quantity: 1}}},
			wantErr: ErrShippingNotRequired,
		},
		{
			name: "cancelled order",
			order: func(o *domain.Order) {
				o.OrderStatus = domain.OrderStatusCancelled
			},
			params:  CreateShipmentParams{OrderID: "id", Items: []ShipmentItemParams{{OrderItemID: "item-a", Quantity: 1}}},
			wantErr: domain.ErrOrderCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			order := testOrder()
			if tt.order != nil {
				tt.order(&order)
			}
			env.withOrder(order)
			env.withShipments()
			svc := newTestFulfillmentService(t, env)

			_, err := svc.CreateShipment(context.Background(), tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, env.shipments.Inserted)
			assert.Empty(t, env.orders.Updated)
		})
	}

	t.Run("line with zero quantity", func(t *testing.T) {
		env := newTestEnv()
		env.withOrder(testOrder())
		svc := newTestFulfillmentService(t, env)

		_, err := svc.CreateShipment(context.Background(), CreateShipmentParams{
			OrderID: "id",
			Items:   []ShipmentItemParams{{OrderItemID: "item-a", Quantity: 0}},
		})
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
	})
}

func TestFulfillmentService_ShipAndDeliver(t *testing.T) {
	env := newTestEnv()
	env.withOrder(paidOrder())
	env.withShipments()
	svc := newTestFulfillmentService(t, env)
	ctx := context.Background()

	shipment, err := svc.CreateShipment(ctx, CreateShipmentParams{
		OrderID: "id",
		Items:   []ShipmentItemParams{{OrderItemID: "item-a", Quantity: 2}, {OrderItemID: "item-b", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.MarkDelivered(ctx, shipment.ID)
	assert.ErrorIs(t, err, domain.ErrShipmentNotShipped)

	shipped, err := svc.MarkShipped(ctx, shipment.ID)
	require.NoError(t, err)
	assert.True(t, shipped.Shipped())

	latest := env.orders.Updated[len(env.orders.Updated)-1]
	assert.Equal(t, domain.ShippingStatusShipped, latest.ShippingStatus)
	assert.Equal(t, domain.OrderStatusProcessing, latest.OrderStatus, "completion waits for delivery")

	_, err = svc.MarkShipped(ctx, shipment.ID)
	assert.ErrorIs(t, err, domain.ErrShipmentAlreadyShipped)

	delivered, err := svc.MarkDelivered(ctx, shipment.ID)
	require.NoError(t, err)
	assert.True(t, delivered.Delivered())

	latest = env.orders.Updated[len(env.orders.Updated)-1]
	assert.Equal(t, domain.ShippingStatusDelivered, latest.ShippingStatus)
	assert.Equal(t, domain.OrderStatusComplete, latest.OrderStatus)
	assert.True(t, latest.LoyaltyPointsWereAdded)
	assert.Equal(t, []string{"completed"}, env.notifier.Sent)

	_, err = svc.MarkDelivered(ctx, shipment.ID)
	assert.ErrorIs(t, err, domain.ErrShipmentAlreadyDelivered)
}

func TestFulfillmentService_PartialShipmentStartsProcessing(t *testing.T) {
	env := newTestEnv()
	env.withOrder(testOrder())
	env.withShipments()
	svc := newTestFulfillmentService(t, env)
	ctx := context.Background()

	shipment, err := svc.CreateShipment(ctx, CreateShipmentParams{
		OrderID: "id",
		Items:   []ShipmentItemParams{{OrderItemID: "item-a", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.MarkShipped(ctx, shipment.ID)
	require.NoError(t, err)

	latest := env.orders.Updated[len(env.orders.Updated)-1]
	assert.Equal(t, domain.ShippingStatusPartiallyShipped, latest.ShippingStatus)
	assert.Equal(t, domain.OrderStatusProcessing, latest.OrderStatus)
	assert.Contains(t, env.events.names(), "order.status_changed")
}

func TestFulfillmentService_GetShipment(t *testing.T) {
	env := newTestEnv()
	env.withShipments()
	svc := newTestFulfillmentService(t, env)

	_, err := svc.GetShipment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrShipmentNotFound)

	_, err = svc.GetShipment(context.Background(), "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.ListShipmentsForOrder(context.Background(), "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestFulfillmentService_ReturnOrderItem(t *testing.T) {
	env := newTestEnv()
	order := paidOrder()
	require.NoError(t, order.Items[0].Ship(2))
	env.withOrder(order)
	shippedAt := time.Now()
	env.withShipments(domain.Shipment{
		ID:        "sh-1",
		OrderID:   "id",
		ShippedAt: &shippedAt,
		Items:     []domain.ShipmentItem{{OrderItemID: "item-a", Quantity: 2}},
	})
	svc := newTestFulfillmentService(t, env)

	got, err := svc.ReturnOrderItem(context.Background(), "id", "item-a", 1)
	require.NoError(t, err)

	item, _ := got.Item("item-a")
	assert.Equal(t, 1, item.ShipQty)
	assert.Equal(t, 1, item.ReturnQty)
	assert.True(t, item.QuantityConsistent())

	_, err = svc.ReturnOrderItem(context.Background(), "id", "item-a", 2)
	assert.ErrorIs(t, err, domain.ErrItemNotDispatched, "one unit already came back")

	_, err = svc.ReturnOrderItem(context.Background(), "id", "item-a", 0)
	assert.ErrorIs(t, err, domain.ErrItemQuantityInvalid)

	_, err = svc.ReturnOrderItem(context.Background(), "id", "item-z", 1)
	assert.ErrorIs(t, err, domain.ErrOrderItemNotFound)
}

func TestFulfillmentService_ReturnOrderItem_UndispatchedUnitsStay(t *testing.T) {
	env := newTestEnv()
	order := paidOrder()
	require.NoError(t, order.Items[0].Ship(2))
	env.withOrder(order)
	shippedAt := time.Now()
	env.withShipments(
		domain.Shipment{ID: "sh-out", OrderID: "id", ShippedAt: &shippedAt,
			Items: []domain.ShipmentItem{{OrderItemID: "item-a", Quantity: 1}}},
		domain.Shipment{ID: "sh-packing", OrderID: "id",
			Items: []domain.ShipmentItem{{OrderItemID: "item-a", Quantity: 1}}},
	)
	svc := newTestFulfillmentService(t, env)

	_, err := svc.ReturnOrderItem(context.Background(), "id", "item-a", 2)
	assert.ErrorIs(t, err, domain.ErrItemNotDispatched)
	assert.Empty(t, env.orders.Updated)

	_, err = svc.ReturnOrderItem(context.Background(), "id", "item-a", 1)
	require.NoError(t, err)

	// The packing shipment can still be unlinked by a cancel.
	orders := newTestOrderService(t, env)
	cancelled, err := orders.CancelOrder(context.Background(), "id", false)
	require.NoError(t, err)
	item, _ := cancelled.Item("item-a")
	assert.Equal(t, 0, item.ShipQty)
	assert.Equal(t, 1, item.ReturnQty)
	assert.True(t, item.QuantityConsistent())
}
