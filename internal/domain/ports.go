package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Repositories
// =============================================================================

// OrderFilter narrows SearchOrders. Zero values do not filter.
type OrderFilter struct {
	OrderStatus    OrderStatus
	PaymentStatus  PaymentStatus
	ShippingStatus ShippingStatus
	CustomerID     string
	StoreID        string
	Tag            string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	IncludeDeleted bool

	PageIndex int
	PageSize  int
}

// Page is one page of a paged query.
type Page[T any] struct {
	Items      []T `json:"items"`
	PageIndex  int `json:"page_index"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// TotalPages rounds up.
func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

// OrderRepository persists orders with their owned collections.
// Update succeeds only when order.Version matches the stored version, then
// increments it; a mismatch returns ErrVersionConflict.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByGUID(ctx context.Context, guid string) (*Order, error)
	GetByCode(ctx context.Context, code string) (*Order, error)
	Insert(ctx context.Context, order *Order) error
	Update(ctx context.Context, order *Order) error
	SearchOrders(ctx context.Context, filter OrderFilter) (Page[Order], error)

	// NextOrderNumber allocates max(highest allocated + 1, floor).
	NextOrderNumber(ctx context.Context, floor int) (int, error)
}

// PaymentTransactionRepository persists payment transactions with the same
// version semantics as OrderRepository.
type PaymentTransactionRepository interface {
	GetByID(ctx context.Context, id string) (*PaymentTransaction, error)
	GetByAuthorizationTransactionID(ctx context.Context, authorizationID string) (*PaymentTransaction, error)
	ListByOrderGUID(ctx context.Context, orderGUID string) ([]PaymentTransaction, error)
	Insert(ctx context.Context, tx *PaymentTransaction) error
	Update(ctx context.Context, tx *PaymentTransaction) error
}

type ShipmentRepository interface {
	GetByID(ctx context.Context, id string) (*Shipment, error)
	ListByOrderID(ctx context.Context, orderID string) ([]Shipment, error)
	Insert(ctx context.Context, shipment *Shipment) error
	Update(ctx context.Context, shipment *Shipment) error
	Delete(ctx context.Context, id string) error
}

// LoyaltyPointsRepository is the append-only points ledger. Append computes
// PointsBalance from the previous entry while holding a per-customer lock.
type LoyaltyPointsRepository interface {
	Append(ctx context.Context, entry NewLoyaltyEntry) (*LoyaltyPointsHistory, error)
	Balance(ctx context.Context, customerID, storeID string) (int, error)
	History(ctx context.Context, customerID, storeID string) ([]LoyaltyPointsHistory, error)
}

type GiftVoucherRepository interface {
	GetByPurchasedWithOrderItemID(ctx context.Context, orderItemID string) ([]GiftVoucher, error)
	Insert(ctx context.Context, voucher *GiftVoucher) error
	Update(ctx context.Context, voucher *GiftVoucher) error
}

type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
}

// Transactor runs fn in a single database transaction. Repositories called
// with the context passed to fn join that transaction. A nested call must
// roll back only its own writes when fn fails.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// =============================================================================
// Collaborators
// =============================================================================

// CurrencyService converts order-currency amounts into the primary currency.
type CurrencyService interface {
	ConvertToPrimary(ctx context.Context, amount decimal.Decimal, currencyCode string) (decimal.Decimal, error)
}

// GatewayResult is the outcome of an online payment operation. A non-empty
// Errors slice means the gateway refused the operation.
type GatewayResult struct {
	NewStatus     TransactionStatus
	TransactionID string
	Errors        []string
}

// Success reports whether the gateway accepted the operation.
func (r *GatewayResult) Success() bool {
	return r != nil && len(r.Errors) == 0
}

// RefundRequest asks the gateway to refund Amount of a paid transaction.
type RefundRequest struct {
	Transaction *PaymentTransaction
	Amount      decimal.Decimal
	IsPartial   bool
}

// PaymentGateway is the opaque online payment capability.
//
//go:generate mockgen -destination=mock_gateway.go -package=domain . PaymentGateway
type PaymentGateway interface {
	Capabilities(paymentMethod string) GatewayCapabilities
	Capture(ctx context.Context, tx *PaymentTransaction) (*GatewayResult, error)
	Void(ctx context.Context, tx *PaymentTransaction) (*GatewayResult, error)
	Refund(ctx context.Context, req RefundRequest) (*GatewayResult, error)
}

// InventoryService adjusts reserved stock. A positive quantityToChange
// releases units back to stock; a negative one reserves them.
type InventoryService interface {
	AdjustReserved(ctx context.Context, productID string, quantityToChange int, attributes []CustomAttribute, warehouseID string) error
}

type ReservationService interface {
	CancelReservationsByOrderID(ctx context.Context, orderID string) error
}

type AuctionService interface {
	CancelBidByOrder(ctx context.Context, orderID string) error
}

type DiscountService interface {
	CancelDiscount(ctx context.Context, orderID string) error
}

// Notifier sends customer-facing messages. Calls are fire-and-forget from the
// engine's point of view: errors are logged, never returned to the caller.
type Notifier interface {
	OrderCompleted(ctx context.Context, order *Order, invoiceURL string) error
	OrderCancelled(ctx context.Context, order *Order) error
	OrderPaid(ctx context.Context, order *Order) error
	OrderRefunded(ctx context.Context, order *Order, amount decimal.Decimal) error
	PaymentVoided(ctx context.Context, order *Order, tx *PaymentTransaction) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// InvoiceGenerator renders an invoice document and returns where it is stored.
type InvoiceGenerator interface {
	Generate(ctx context.Context, order *Order) (string, error)
}

// OrderLocker serializes commands on one order across processes.
type OrderLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
