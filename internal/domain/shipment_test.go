package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDeriveShippingStatus(t *testing.T) {
	now := time.Now()

	// Two items, three units in total.
	newOrder := func(shipped ...int) *Order {
		a := NewOrderItem("a", 2, decimal.NewFromInt(10), decimal.NewFromInt(10))
		a.ID = "a"
		b := NewOrderItem("b", 1, decimal.NewFromInt(10), decimal.NewFromInt(10))
		b.ID = "b"
		o := &Order{ShippingStatus: ShippingStatusNotYetShipped, Items: []OrderItem{a, b}}
		if len(shipped) > 0 && shipped[0] > 0 {
			_ = o.Items[0].Ship(shipped[0])
		}
		if len(shipped) > 1 && shipped[1] > 0 {
			_ = o.Items[1].Ship(shipped[1])
		}
		return o
	}
	line := func(item string, qty int) []ShipmentItem {
		return []ShipmentItem{{OrderItemID: item, Quantity: qty}}
	}

	tests := []struct {
		name      string
		order     *Order
		shipments []Shipment
		want      ShippingStatus
	}{
		{
			name:  "nothing shipped",
			order: newOrder(),
			want:  ShippingStatusNotYetShipped,
		},
		{
			name:      "shipment created but not dispatched",
			order:     newOrder(2, 1),
			shipments: []Shipment{{Items: append(line("a", 2), line("b", 1)...)}},
			want:      ShippingStatusNotYetShipped,
		},
		{
			name:      "part dispatched",
			order:     newOrder(1),
			shipments: []Shipment{{ShippedAt: &now, Items: line("a", 1)}},
			want:      ShippingStatusPartiallyShipped,
		},
		{
			name:  "everything packed, one shipment still waiting",
			order: newOrder(2, 1),
			shipments: []Shipment{
				{ShippedAt: &now, Items: line("a", 2)},
				{Items: line("b", 1)},
			},
			want: ShippingStatusPartiallyShipped,
		},
		{
			name:  "everything dispatched",
			order: newOrder(2, 1),
			shipments: []Shipment{
				{ShippedAt: &now, Items: line("a", 2)},
				{ShippedAt: &now, DeliveredAt: &now, Items: line("b", 1)},
			},
			want: ShippingStatusShipped,
		},
		{
			name:      "everything delivered",
			order:     newOrder(2, 1),
			shipments: []Shipment{{ShippedAt: &now, DeliveredAt: &now, Items: append(line("a", 2), line("b", 1)...)}},
			want:      ShippingStatusDelivered,
		},
		{
			name: "not required stays not required",
			order: func() *Order {
				o := newOrder()
				o.ShippingStatus = ShippingStatusNotRequired
				return o
			}(),
			want: ShippingStatusNotRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveShippingStatus(tt.order, tt.shipments); got != tt.want {
				t.Errorf("DeriveShippingStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShippingStatus_Started(t *testing.T) {
	started := map[ShippingStatus]bool{
		ShippingStatusNotRequired:      false,
		ShippingStatusNotYetShipped:    false,
		ShippingStatusPartiallyShipped: true,
		ShippingStatusShipped:          true,
		ShippingStatusDelivered:        true,
	}
	for s, want := range started {
		if got := s.Started(); got != want {
			t.Errorf("%s.Started() = %v, want %v", s, got, want)
		}
	}
}

func TestReturnableQuantity(t *testing.T) {
	now := time.Now()
	item := NewOrderItem("a", 3, decimal.NewFromInt(10), decimal.NewFromInt(10))
	item.ID = "a"
	_ = item.Ship(3)

	shipments := []Shipment{
		{ID: "out", ShippedAt: &now, Items: []ShipmentItem{{OrderItemID: "a", Quantity: 2}, {OrderItemID: "b", Quantity: 4}}},
		{ID: "packing", Items: []ShipmentItem{{OrderItemID: "a", Quantity: 1}}},
	}
	if got := ReturnableQuantity(&item, shipments); got != 2 {
		t.Fatalf("ReturnableQuantity() = %d, want 2", got)
	}

	_ = item.Return(1)
	if got := ReturnableQuantity(&item, shipments); got != 1 {
		t.Errorf("after one return ReturnableQuantity() = %d, want 1", got)
	}
	if got := ReturnableQuantity(&item, nil); got != 0 {
		t.Errorf("without dispatched shipments ReturnableQuantity() = %d, want 0", got)
	}
}
