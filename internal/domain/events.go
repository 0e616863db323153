package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is anything the engine publishes. Subscribers (search indexing,
// audit log, messaging) are unknown to the engine.
type Event interface {
	EventName() string
}

// OrderCancelledEvent is published after a cancelled order is persisted.
type OrderCancelledEvent struct {
	OrderID     string    `json:"order_id"`
	OrderGUID   string    `json:"order_guid"`
	OrderNumber int       `json:"order_number"`
	CustomerID  string    `json:"customer_id"`
	FailedSteps []string  `json:"failed_steps,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

// OrderStatusChangedEvent is published for every persisted status change.
type OrderStatusChangedEvent struct {
	OrderID    string      `json:"order_id"`
	OrderGUID  string      `json:"order_guid"`
	PrevStatus OrderStatus `json:"prev_status"`
	NewStatus  OrderStatus `json:"new_status"`
	ChangedAt  time.Time   `json:"changed_at"`
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

// OrderPaidEvent is published once the order's payment status becomes paid.
type OrderPaidEvent struct {
	OrderID   string          `json:"order_id"`
	OrderGUID string          `json:"order_guid"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}

func (OrderPaidEvent) EventName() string { return "order.paid" }

// PaymentTransactionChangedEvent records a transaction state change.
type PaymentTransactionChangedEvent struct {
	TransactionID string            `json:"transaction_id"`
	OrderGUID     string            `json:"order_guid"`
	Operation     string            `json:"operation"`
	PrevStatus    TransactionStatus `json:"prev_status"`
	NewStatus     TransactionStatus `json:"new_status"`
	Amount        decimal.Decimal   `json:"amount"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

func (PaymentTransactionChangedEvent) EventName() string { return "payment_transaction.changed" }

// Entity actions for EntityEvent.
const (
	EntityInserted = "inserted"
	EntityUpdated  = "updated"
	EntityDeleted  = "deleted"
)

// Entity names for EntityEvent.
const (
	EntityOrder              = "order"
	EntityOrderItem          = "order_item"
	EntityPaymentTransaction = "payment_transaction"
	EntityShipment           = "shipment"
	EntityLoyaltyPoints      = "loyalty_points_history"
	EntityGiftVoucher        = "gift_voucher"
)

// EntityEvent is the generic inserted/updated/deleted notification.
type EntityEvent struct {
	Entity     string    `json:"entity"`
	Action     string    `json:"action"`
	EntityID   string    `json:"entity_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e EntityEvent) EventName() string { return e.Entity + "." + e.Action }

// NewEntityEvent stamps an EntityEvent with the current time.
func NewEntityEvent(entity, action, id, parentID string) EntityEvent {
	return EntityEvent{
		Entity:     entity,
		Action:     action,
		EntityID:   id,
		ParentID:   parentID,
		OccurredAt: time.Now().UTC(),
	}
}
