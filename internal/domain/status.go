package domain

// OrderStatus is the top-level lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusComplete   OrderStatus = "complete"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusComplete, OrderStatusCancelled:
		return true
	}
	return false
}

// rank orders the forward progression. Cancelled is terminal and sits outside
// the progression, so it ranks above everything.
func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 10
	case OrderStatusProcessing:
		return 20
	case OrderStatusComplete:
		return 30
	case OrderStatusCancelled:
		return 40
	}
	return 0
}

// ParseOrderStatus converts a string into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.Valid() {
		return "", Errorf(EINVALID, "order.status", "unknown order status: %q", s)
	}
	return status, nil
}

// ShippingStatus tracks fulfillment independently of the order status.
type ShippingStatus string

const (
	ShippingStatusNotRequired      ShippingStatus = "shipping_not_required"
	ShippingStatusNotYetShipped    ShippingStatus = "not_yet_shipped"
	ShippingStatusPartiallyShipped ShippingStatus = "partially_shipped"
	ShippingStatusShipped          ShippingStatus = "shipped"
	ShippingStatusDelivered        ShippingStatus = "delivered"
)

func (s ShippingStatus) Valid() bool {
	switch s {
	case ShippingStatusNotRequired, ShippingStatusNotYetShipped, ShippingStatusPartiallyShipped,
		ShippingStatusShipped, ShippingStatusDelivered:
		return true
	}
	return false
}

// Started reports whether any goods have left the warehouse.
func (s ShippingStatus) Started() bool {
	switch s {
	case ShippingStatusPartiallyShipped, ShippingStatusShipped, ShippingStatusDelivered:
		return true
	case ShippingStatusNotRequired, ShippingStatusNotYetShipped:
		return false
	}
	return false
}

// PaymentStatus is the order-level view of its payment transactions.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusAuthorized        PaymentStatus = "authorized"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusPartiallyPaid     PaymentStatus = "partially_paid"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusVoided            PaymentStatus = "voided"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusPaid, PaymentStatusPartiallyPaid,
		PaymentStatusPartiallyRefunded, PaymentStatusRefunded, PaymentStatusVoided:
		return true
	}
	return false
}

// TransactionStatus is the state of a single payment transaction.
type TransactionStatus string

const (
	TransactionStatusPending           TransactionStatus = "pending"
	TransactionStatusAuthorized        TransactionStatus = "authorized"
	TransactionStatusPaid              TransactionStatus = "paid"
	TransactionStatusPartiallyPaid     TransactionStatus = "partially_paid"
	TransactionStatusPartiallyRefunded TransactionStatus = "partially_refunded"
	TransactionStatusRefunded          TransactionStatus = "refunded"
	TransactionStatusVoided            TransactionStatus = "voided"
	TransactionStatusCancelled         TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusAuthorized, TransactionStatusPaid,
		TransactionStatusPartiallyPaid, TransactionStatusPartiallyRefunded, TransactionStatusRefunded,
		TransactionStatusVoided, TransactionStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus maps a transaction status onto the order-level payment status.
// A cancelled transaction leaves the order pending so another one can be attached.
func (s TransactionStatus) PaymentStatus() PaymentStatus {
	switch s {
	case TransactionStatusPending, TransactionStatusCancelled:
		return PaymentStatusPending
	case TransactionStatusAuthorized:
		return PaymentStatusAuthorized
	case TransactionStatusPaid:
		return PaymentStatusPaid
	case TransactionStatusPartiallyPaid:
		return PaymentStatusPartiallyPaid
	case TransactionStatusPartiallyRefunded:
		return PaymentStatusPartiallyRefunded
	case TransactionStatusRefunded:
		return PaymentStatusRefunded
	case TransactionStatusVoided:
		return PaymentStatusVoided
	}
	return PaymentStatusPending
}

// OrderItemStatus tracks whether an item still has open quantity.
type OrderItemStatus string

const (
	OrderItemStatusOpen      OrderItemStatus = "open"
	OrderItemStatusClosed    OrderItemStatus = "closed"
	OrderItemStatusCancelled OrderItemStatus = "cancelled"
)

func (s OrderItemStatus) Valid() bool {
	switch s {
	case OrderItemStatusOpen, OrderItemStatusClosed, OrderItemStatusCancelled:
		return true
	}
	return false
}
