package service

import (
	"context"
	"crypto/rand"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/shopspring/decimal"
)

// OrderService drives orders through their lifecycle.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrderByGUID(ctx context.Context, orderGUID string) (*domain.Order, error)
	SearchOrders(ctx context.Context, filter domain.OrderFilter) (domain.Page[domain.Order], error)

	// SetOrderStatus moves an order to status. Moving to cancelled runs the
	// cancellation cascade. Returns ErrOrderAlreadyInStatus when the order is
	// already there, ErrOrderCancelled when it is cancelled and
	// ErrOrderStatusTransition when the move goes backwards.
	SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, notify bool) (*domain.Order, error)

	// CheckOrderStatus re-applies the automatic status rules after a payment
	// or shipping change. Nothing is written when nothing changes.
	CheckOrderStatus(ctx context.Context, orderID string) (*domain.Order, error)

	// CancelOrder runs the cancellation cascade. Failed steps are recorded on
	// the order and the order is still cancelled.
	CancelOrder(ctx context.Context, orderID string, notify bool) (*domain.Order, error)

	// DeleteOrder soft-deletes an order, running the cascade first unless the
	// order was already cancelled.
	DeleteOrder(ctx context.Context, orderID string) error

	CancelOrderItem(ctx context.Context, orderID, itemID string, quantity int) (*domain.Order, error)
	InsertOrderItem(ctx context.Context, orderID string, params InsertOrderItemParams) (*domain.Order, error)
	UpdateOrderItem(ctx context.Context, orderID, itemID string, params UpdateOrderItemParams) (*domain.Order, error)

	// PrepareOrderCode returns an unused display code of OrderSettings.LengthCode characters.
	PrepareOrderCode(ctx context.Context) (string, error)

	// NextOrderNumber allocates the next order number, never lower than floor.
	// A floor of 0 uses OrderSettings.OrderNumberFloor.
	NextOrderNumber(ctx context.Context, floor int) (int, error)
}

// InsertOrderItemParams describes an item added to an existing order.
type InsertOrderItemParams struct {
	ProductID        string `validate:"required"`
	ProductName      string
	SKU              string
	WarehouseID      string
	Attributes       []domain.CustomAttribute
	Quantity         int `validate:"gt=0"`
	UnitPriceInclTax decimal.Decimal
	UnitPriceExclTax decimal.Decimal
	DiscountAmount   decimal.Decimal
	IsGiftVoucher    bool
}

// UpdateOrderItemParams changes an item's quantity and, optionally, its prices.
type UpdateOrderItemParams struct {
	Quantity         int `validate:"gt=0"`
	UnitPriceInclTax *decimal.Decimal
	UnitPriceExclTax *decimal.Decimal
	DiscountAmount   *decimal.Decimal
}

const (
	defaultPageSize = 20
	maxPageSize     = 100

	orderCodeAttempts = 10
)

// Codes avoid characters that are easily confused when read aloud (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type orderService struct {
	*engine
}

// NewOrderService creates an OrderService.
func NewOrderService(deps Dependencies) (OrderService, error) {
	e, err := newEngine(deps)
	if err != nil {
		return nil, err
	}
	return &orderService{engine: e}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, domain.Invalid("order.get", "order id is required")
	}
	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get", "failed to load order")
	}
	return order, nil
}

func (s *orderService) GetOrderByGUID(ctx context.Context, orderGUID string) (*domain.Order, error) {
	if orderGUID == "" {
		return nil, domain.Invalid("order.get_by_guid", "order guid is required")
	}
	order, err := s.Orders.GetByGUID(ctx, orderGUID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get_by_guid", "failed to load order")
	}
	return order, nil
}

func (s *orderService) SearchOrders(ctx context.Context, filter domain.OrderFilter) (domain.Page[domain.Order], error) {
	if filter.PageIndex < 0 {
		filter.PageIndex = 0
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	if filter.OrderStatus != "" && !filter.OrderStatus.Valid() {
		return domain.Page[domain.Order]{}, domain.NewValidationError("order.search", "order_status", "is invalid")
	}

	page, err := s.Orders.SearchOrders(ctx, filter)
	if err != nil {
		return domain.Page[domain.Order]{}, domain.Internal(err, "order.search", "failed to search orders")
	}
	return page, nil
}

func (s *orderService) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, notify bool) (*domain.Order, error) {
	const op = "order.set_status"

	unlock, err := s.lock(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.CheckStatusTransition(status); err != nil {
		return nil, err
	}

	if status == domain.OrderStatusCancelled {
		return s.cancel(ctx, order, notify)
	}

	change := statusChange{prev: order.OrderStatus, next: status}
	order.OrderStatus = status
	if _, err := s.persistStatus(ctx, op, order, change); err != nil {
		return nil, err
	}

	s.logger.Info("order status changed", "order_id", order.ID, "from", change.prev, "to", change.next)
	s.afterStatusChange(ctx, order, change, notify)
	return order, nil
}

func (s *orderService) CheckOrderStatus(ctx context.Context, orderID string) (*domain.Order, error) {
	const op = "order.check_status"

	unlock, err := s.lock(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, orderID)
	if err != nil {
		return nil, err
	}

	change := s.advanceStatus(order)
	wrote, err := s.persistStatus(ctx, op, order, change)
	if err != nil {
		return nil, err
	}
	if wrote {
		s.afterStatusChange(ctx, order, change, true)
	}
	return order, nil
}

func (s *orderService) PrepareOrderCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < orderCodeAttempts; attempt++ {
		code, err := randomCode(s.OrderSettings.LengthCode)
		if err != nil {
			return "", domain.Internal(err, "order.prepare_code", "failed to generate order code")
		}

		_, err = s.Orders.GetByCode(ctx, code)
		if domain.IsCode(err, domain.ENOTFOUND) {
			return code, nil
		}
		if err != nil {
			return "", domain.Internal(err, "order.prepare_code", "failed to check order code")
		}
	}
	return "", ErrOrderCodeUnavailable
}

func (s *orderService) NextOrderNumber(ctx context.Context, floor int) (int, error) {
	if floor <= 0 {
		floor = s.OrderSettings.OrderNumberFloor
	}
	if floor <= 0 {
		floor = 1
	}
	n, err := s.Orders.NextOrderNumber(ctx, floor)
	if err != nil {
		return 0, domain.Internal(err, "order.next_number", "failed to allocate order number")
	}
	return n, nil
}

// randomCode draws n characters from codeAlphabet. The alphabet has 32
// entries so every byte maps without bias.
func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}
