package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order guard errors. Callers distinguish "already there" from "cannot get
// there from here" with errors.Is.
var (
	ErrOrderCancelled             = &Error{Code: ECONFLICT, Message: "Order is already cancelled"}
	ErrOrderAlreadyInStatus       = &Error{Code: ECONFLICT, Message: "Order is already in the requested status"}
	ErrOrderStatusTransition      = &Error{Code: ECONFLICT, Message: "Order status cannot move backwards"}
	ErrOrderDeleted               = &Error{Code: EGONE, Message: "Order has been deleted"}
	ErrOrderItemNotFound          = &Error{Code: ENOTFOUND, Message: "Order item not found"}
	ErrOrderItemNotOpen           = &Error{Code: ECONFLICT, Message: "Order item has no open quantity"}
	ErrItemQuantityInvalid        = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrItemQuantityExceedsOpen    = &Error{Code: EINVALID, Message: "Quantity exceeds the item's open quantity"}
	ErrItemQuantityExceedsShipped = &Error{Code: EINVALID, Message: "Quantity exceeds the item's shipped quantity"}
	ErrItemNotDispatched          = &Error{Code: EINVALID, Message: "Quantity exceeds the item's dispatched and not yet returned quantity"}
	ErrItemQuantityBelowProcessed = &Error{Code: EINVALID, Message: "Quantity cannot be lower than the already shipped, cancelled and returned quantity"}
)

// Order is the aggregate root of the lifecycle engine. Items, taxes, tags and
// notes are owned by the order and persisted with it.
type Order struct {
	ID          string
	OrderGUID   string
	OrderNumber int
	Code        string

	CustomerID    string
	CustomerEmail string
	StoreID       string

	CurrencyCode string
	// CurrencyRate converts primary-currency amounts into the order currency.
	CurrencyRate decimal.Decimal

	OrderStatus    OrderStatus
	ShippingStatus ShippingStatus
	PaymentStatus  PaymentStatus

	OrderSubtotal  decimal.Decimal
	OrderShipping  decimal.Decimal
	OrderTax       decimal.Decimal
	OrderDiscount  decimal.Decimal
	OrderTotal     decimal.Decimal
	PaidAmount     decimal.Decimal
	RefundedAmount decimal.Decimal
	PaidAt         *time.Time

	RedeemedLoyaltyPoints         int
	RedeemedLoyaltyPointsAmount   decimal.Decimal
	RedeemedLoyaltyPointsReturned bool
	CalcLoyaltyPoints             int
	LoyaltyPointsWereAdded        bool

	Items []OrderItem
	Taxes []OrderTax
	Tags  []string
	Notes []OrderNote

	Deleted bool
	// Version is the optimistic concurrency token checked by OrderRepository.Update.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderTax is one tax rate line on an order.
type OrderTax struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// OrderNote is an admin-visible record of a lifecycle action.
type OrderNote struct {
	ID                string    `json:"id"`
	Note              string    `json:"note"`
	DisplayToCustomer bool      `json:"display_to_customer"`
	CreatedAt         time.Time `json:"created_at"`
}

// CanCancel reports whether the order may enter the cancellation cascade.
func (o *Order) CanCancel() bool {
	return o.OrderStatus != OrderStatusCancelled
}

// CheckStatusTransition validates moving the order to next.
func (o *Order) CheckStatusTransition(next OrderStatus) error {
	if !next.Valid() {
		return Errorf(EINVALID, "order.status", "unknown order status: %q", next)
	}
	if o.OrderStatus == OrderStatusCancelled {
		return ErrOrderCancelled
	}
	if next == o.OrderStatus {
		return ErrOrderAlreadyInStatus
	}
	if next != OrderStatusCancelled && next.rank() < o.OrderStatus.rank() {
		return ErrOrderStatusTransition
	}
	return nil
}

// Item returns a pointer into Items so callers mutate the owned copy.
func (o *Order) Item(itemID string) (*OrderItem, error) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], nil
		}
	}
	return nil, ErrOrderItemNotFound
}

// AddNote appends an order note stamped with the current time.
func (o *Order) AddNote(note string, displayToCustomer bool) {
	o.Notes = append(o.Notes, OrderNote{
		ID:                uuid.NewString(),
		Note:              note,
		DisplayToCustomer: displayToCustomer,
		CreatedAt:         time.Now().UTC(),
	})
}

// RecalculateTotals recomputes subtotal, tax and total from the items.
// Shipping, discount and redeemed loyalty amounts are taken as given.
func (o *Order) RecalculateTotals() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for i := range o.Items {
		item := &o.Items[i]
		item.recalculatePrices()
		subtotal = subtotal.Add(item.PriceExclTax)
		tax = tax.Add(item.PriceInclTax.Sub(item.PriceExclTax))
	}

	o.OrderSubtotal = subtotal
	o.OrderTax = tax
	total := subtotal.Add(tax).Add(o.OrderShipping).Sub(o.OrderDiscount).Sub(o.RedeemedLoyaltyPointsAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.OrderTotal = total
}

// OpenQuantity is the number of units still waiting to be shipped or cancelled.
func (o *Order) OpenQuantity() int {
	n := 0
	for _, item := range o.Items {
		n += item.OpenQty
	}
	return n
}

// CustomAttribute is a product attribute selection carried on an order item.
type CustomAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OrderItem is a line on an order. It is only addressable through its order.
type OrderItem struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	SKU         string            `json:"sku"`
	WarehouseID string            `json:"warehouse_id"`
	Attributes  []CustomAttribute `json:"attributes"`

	Quantity  int             `json:"quantity"`
	OpenQty   int             `json:"open_qty"`
	ShipQty   int             `json:"ship_qty"`
	CancelQty int             `json:"cancel_qty"`
	ReturnQty int             `json:"return_qty"`
	Status    OrderItemStatus `json:"status"`

	UnitPriceInclTax decimal.Decimal `json:"unit_price_incl_tax"`
	UnitPriceExclTax decimal.Decimal `json:"unit_price_excl_tax"`
	PriceInclTax     decimal.Decimal `json:"price_incl_tax"`
	PriceExclTax     decimal.Decimal `json:"price_excl_tax"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`

	IsGiftVoucher bool      `json:"is_gift_voucher"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuantityConsistent reports whether the item's quantity buckets add up.
func (i *OrderItem) QuantityConsistent() bool {
	return i.OpenQty >= 0 && i.ShipQty >= 0 && i.CancelQty >= 0 && i.ReturnQty >= 0 &&
		i.OpenQty+i.ShipQty+i.CancelQty+i.ReturnQty == i.Quantity
}

// CanCancel reports whether qty units can be cancelled.
func (i *OrderItem) CanCancel(qty int) error {
	if qty <= 0 {
		return ErrItemQuantityInvalid
	}
	if i.Status != OrderItemStatusOpen || i.OpenQty <= 0 {
		return ErrOrderItemNotOpen
	}
	if qty > i.OpenQty {
		return ErrItemQuantityExceedsOpen
	}
	return nil
}

// Cancel moves qty units from open to cancelled.
func (i *OrderItem) Cancel(qty int) error {
	if err := i.CanCancel(qty); err != nil {
		return err
	}
	i.OpenQty -= qty
	i.CancelQty += qty
	if i.OpenQty == 0 {
		i.Status = OrderItemStatusCancelled
	}
	return nil
}

// Ship moves qty units from open to shipped.
func (i *OrderItem) Ship(qty int) error {
	if qty <= 0 {
		return ErrItemQuantityInvalid
	}
	if i.Status != OrderItemStatusOpen || i.OpenQty <= 0 {
		return ErrOrderItemNotOpen
	}
	if qty > i.OpenQty {
		return ErrItemQuantityExceedsOpen
	}
	i.OpenQty -= qty
	i.ShipQty += qty
	if i.OpenQty == 0 {
		i.Status = OrderItemStatusClosed
	}
	return nil
}

// Unship moves qty units from shipped back to open. Used when an unsent
// shipment is unlinked from the order.
func (i *OrderItem) Unship(qty int) error {
	if qty <= 0 {
		return ErrItemQuantityInvalid
	}
	if qty > i.ShipQty {
		return ErrItemQuantityExceedsShipped
	}
	i.ShipQty -= qty
	i.OpenQty += qty
	i.Status = OrderItemStatusOpen
	return nil
}

// Return moves qty units from shipped to returned.
func (i *OrderItem) Return(qty int) error {
	if qty <= 0 {
		return ErrItemQuantityInvalid
	}
	if qty > i.ShipQty {
		return ErrItemQuantityExceedsShipped
	}
	i.ShipQty -= qty
	i.ReturnQty += qty
	return nil
}

// SetQuantity changes the ordered quantity. The new quantity must cover the
// units already shipped, cancelled or returned; the difference lands in OpenQty.
// It returns the change in open quantity.
func (i *OrderItem) SetQuantity(qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrItemQuantityInvalid
	}
	processed := i.ShipQty + i.CancelQty + i.ReturnQty
	if qty < processed {
		return 0, ErrItemQuantityBelowProcessed
	}
	delta := (qty - processed) - i.OpenQty
	i.Quantity = qty
	i.OpenQty = qty - processed
	switch {
	case i.OpenQty > 0:
		i.Status = OrderItemStatusOpen
	case i.CancelQty == qty:
		i.Status = OrderItemStatusCancelled
	default:
		i.Status = OrderItemStatusClosed
	}
	return delta, nil
}

func (i *OrderItem) recalculatePrices() {
	q := decimal.NewFromInt(int64(i.Quantity))
	i.PriceInclTax = i.UnitPriceInclTax.Mul(q).Sub(i.DiscountAmount)
	i.PriceExclTax = i.UnitPriceExclTax.Mul(q).Sub(i.DiscountAmount)
}

// NewOrderItem builds an open item whose full quantity is open.
func NewOrderItem(productID string, quantity int, unitInclTax, unitExclTax decimal.Decimal) OrderItem {
	item := OrderItem{
		ID:               uuid.NewString(),
		ProductID:        productID,
		Quantity:         quantity,
		OpenQty:          quantity,
		Status:           OrderItemStatusOpen,
		UnitPriceInclTax: unitInclTax,
		UnitPriceExclTax: unitExclTax,
		CreatedAt:        time.Now().UTC(),
	}
	item.recalculatePrices()
	return item
}
