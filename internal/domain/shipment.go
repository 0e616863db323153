package domain

import (
	"time"
)

var (
	ErrShipmentAlreadyShipped   = &Error{Code: ECONFLICT, Message: "Shipment has already been shipped"}
	ErrShipmentNotShipped       = &Error{Code: ECONFLICT, Message: "Shipment has not been shipped yet"}
	ErrShipmentAlreadyDelivered = &Error{Code: ECONFLICT, Message: "Shipment has already been delivered"}
)

// Shipment groups order item quantities that leave together.
type Shipment struct {
	ID             string
	OrderID        string
	ShipmentNumber int
	TrackingNumber string
	Carrier        string
	Items          []ShipmentItem
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
}

// ShipmentItem is a quantity of one order item inside a shipment.
type ShipmentItem struct {
	OrderItemID string `json:"order_item_id"`
	Quantity    int    `json:"quantity"`
}

// Shipped reports whether the shipment has left the warehouse.
func (s *Shipment) Shipped() bool {
	return s.ShippedAt != nil
}

// Delivered reports whether the shipment reached the customer.
func (s *Shipment) Delivered() bool {
	return s.DeliveredAt != nil
}

// ReturnableQuantity is how many units of item have left in a dispatched
// shipment and not come back yet. Units in an undispatched shipment count as
// shipped on the item but cannot be returned.
func ReturnableQuantity(item *OrderItem, shipments []Shipment) int {
	dispatched := 0
	for _, s := range shipments {
		if !s.Shipped() {
			continue
		}
		for _, it := range s.Items {
			if it.OrderItemID == item.ID {
				dispatched += it.Quantity
			}
		}
	}
	return max(0, min(dispatched-item.ReturnQty, item.ShipQty))
}

// DeriveShippingStatus computes the order shipping status from its items and
// shipments. Only dispatched shipments count as shipped.
func DeriveShippingStatus(order *Order, shipments []Shipment) ShippingStatus {
	if order.ShippingStatus == ShippingStatusNotRequired {
		return ShippingStatusNotRequired
	}

	shippedQty := 0
	allDelivered := true
	anyShipped := false
	for _, s := range shipments {
		if !s.Shipped() {
			allDelivered = false
			continue
		}
		anyShipped = true
		if !s.Delivered() {
			allDelivered = false
		}
		for _, it := range s.Items {
			shippedQty += it.Quantity
		}
	}

	// Units that still need to go out: open ones plus those sitting in an
	// undispatched shipment.
	pending := order.OpenQuantity()
	for _, s := range shipments {
		if s.Shipped() {
			continue
		}
		for _, it := range s.Items {
			pending += it.Quantity
		}
	}

	switch {
	case !anyShipped || shippedQty == 0:
		return ShippingStatusNotYetShipped
	case pending > 0:
		return ShippingStatusPartiallyShipped
	case allDelivered:
		return ShippingStatusDelivered
	default:
		return ShippingStatusShipped
	}
}
