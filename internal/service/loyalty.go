package service

import (
	"context"
	"fmt"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
	"github.com/shopspring/decimal"
)

// LoyaltyService manages the append-only loyalty points ledger.
type LoyaltyService interface {
	// CalculateLoyaltyPoints converts a primary-currency amount into points.
	// Returns 0 when the program is disabled or customer is nil.
	CalculateLoyaltyPoints(customer *domain.Customer, amount decimal.Decimal) int

	// AwardLoyaltyPoints credits the points earned by an order. Awarding is
	// idempotent per order: a second call returns 0 and writes nothing.
	AwardLoyaltyPoints(ctx context.Context, orderID string) (int, error)

	// ReduceLoyaltyPoints takes back points previously awarded for an order.
	ReduceLoyaltyPoints(ctx context.Context, orderID string) (int, error)

	// ReturnBackRedeemedLoyaltyPoints restores points the customer spent on
	// an order. Guarded by RedeemedLoyaltyPoints > 0 and applied once.
	ReturnBackRedeemedLoyaltyPoints(ctx context.Context, orderID string) (int, error)

	// Balance returns the customer's current balance (the latest snapshot).
	Balance(ctx context.Context, customerID, storeID string) (int, error)

	// History returns ledger entries oldest first.
	History(ctx context.Context, customerID, storeID string) ([]domain.LoyaltyPointsHistory, error)
}

type loyaltyService struct {
	*engine
}

// NewLoyaltyService creates a LoyaltyService.
func NewLoyaltyService(deps Dependencies) (LoyaltyService, error) {
	e, err := newEngine(deps)
	if err != nil {
		return nil, err
	}
	return &loyaltyService{engine: e}, nil
}

func (s *loyaltyService) CalculateLoyaltyPoints(customer *domain.Customer, amount decimal.Decimal) int {
	return s.calculatePoints(customer, amount)
}

func (s *loyaltyService) AwardLoyaltyPoints(ctx context.Context, orderID string) (int, error) {
	return s.withOrder(ctx, "loyalty.award", orderID, s.awardPoints)
}

func (s *loyaltyService) ReduceLoyaltyPoints(ctx context.Context, orderID string) (int, error) {
	return s.withOrder(ctx, "loyalty.reduce", orderID, s.reducePoints)
}

func (s *loyaltyService) ReturnBackRedeemedLoyaltyPoints(ctx context.Context, orderID string) (int, error) {
	return s.withOrder(ctx, "loyalty.return_redeemed", orderID, s.returnRedeemedPoints)
}

// withOrder runs a ledger mutation and persists the order in one transaction.
// Nothing is written when the mutation reports 0 points.
func (s *loyaltyService) withOrder(ctx context.Context, op, orderID string, fn func(ctx context.Context, order *domain.Order) (int, error)) (int, error) {
	unlock, err := s.lock(ctx, orderLockKey(orderID))
	if err != nil {
		return 0, err
	}
	defer unlock()

	order, err := s.loadOrder(ctx, op, orderID)
	if err != nil {
		return 0, err
	}

	var points int
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		points, err = fn(ctx, order)
		if err != nil || points == 0 {
			return err
		}
		return s.updateOrder(ctx, op, order)
	})
	if err != nil {
		return 0, err
	}
	return points, nil
}

func (s *loyaltyService) Balance(ctx context.Context, customerID, storeID string) (int, error) {
	if customerID == "" {
		return 0, domain.Invalid("loyalty.balance", "customer id is required")
	}
	balance, err := s.Loyalty.Balance(ctx, customerID, s.ledgerStore(storeID))
	if err != nil {
		return 0, domain.Internal(err, "loyalty.balance", "failed to read loyalty balance")
	}
	return balance, nil
}

func (s *loyaltyService) History(ctx context.Context, customerID, storeID string) ([]domain.LoyaltyPointsHistory, error) {
	if customerID == "" {
		return nil, domain.Invalid("loyalty.history", "customer id is required")
	}
	entries, err := s.Loyalty.History(ctx, customerID, s.ledgerStore(storeID))
	if err != nil {
		return nil, domain.Internal(err, "loyalty.history", "failed to read loyalty history")
	}
	return entries, nil
}

// =============================================================================
// Ledger mutations shared with the status policy and the cascade
// =============================================================================

func (e *engine) calculatePoints(customer *domain.Customer, amount decimal.Decimal) int {
	if customer == nil {
		return 0
	}
	return e.LoyaltySettings.CalculatePoints(amount)
}

// ledgerStore scopes ledger entries to a store unless points are shared
// across all stores.
func (e *engine) ledgerStore(storeID string) string {
	if e.LoyaltySettings.PointsAccumulatedForAllStores {
		return ""
	}
	return storeID
}

func (e *engine) customer(ctx context.Context, customerID string) (*domain.Customer, error) {
	if e.Customers == nil || customerID == "" {
		return nil, nil
	}
	c, err := e.Customers.GetByID(ctx, customerID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, nil
		}
		return nil, domain.Internal(err, "loyalty.customer", "failed to load customer")
	}
	return c, nil
}

// awardPoints credits the points earned by order and marks it awarded. The
// caller persists the order.
func (e *engine) awardPoints(ctx context.Context, order *domain.Order) (int, error) {
	if order.LoyaltyPointsWereAdded || !e.LoyaltySettings.Enabled {
		return 0, nil
	}

	customer, err := e.customer(ctx, order.CustomerID)
	if err != nil {
		return 0, err
	}

	amount := order.OrderTotal.Sub(order.OrderShipping)
	if e.Currencies != nil && order.CurrencyCode != "" {
		amount, err = e.Currencies.ConvertToPrimary(ctx, amount, order.CurrencyCode)
		if err != nil {
			return 0, domain.Internal(err, "loyalty.award", "failed to convert order amount")
		}
	}

	points := e.calculatePoints(customer, amount)
	if points <= 0 {
		return 0, nil
	}

	_, err = e.Loyalty.Append(ctx, domain.NewLoyaltyEntry{
		CustomerID:      order.CustomerID,
		StoreID:         e.ledgerStore(order.StoreID),
		Points:          points,
		Message:         fmt.Sprintf("Earned promotion for order #%d", order.OrderNumber),
		UsedWithOrderID: order.ID,
	})
	if err != nil {
		return 0, domain.Internal(err, "loyalty.award", "failed to append loyalty entry")
	}

	order.CalcLoyaltyPoints = points
	order.LoyaltyPointsWereAdded = true
	order.AddNote(fmt.Sprintf("%d loyalty points have been earned", points), false)

	if telemetry.Business != nil {
		telemetry.Business.LoyaltyPointsAwarded.WithLabelValues(order.StoreID).Add(float64(points))
	}
	return points, nil
}

// reducePoints takes back the points awarded for order.
func (e *engine) reducePoints(ctx context.Context, order *domain.Order) (int, error) {
	if !order.LoyaltyPointsWereAdded || order.CalcLoyaltyPoints <= 0 {
		return 0, nil
	}

	points := order.CalcLoyaltyPoints
	_, err := e.Loyalty.Append(ctx, domain.NewLoyaltyEntry{
		CustomerID:      order.CustomerID,
		StoreID:         e.ledgerStore(order.StoreID),
		Points:          -points,
		Message:         fmt.Sprintf("Reduced promotion for order #%d", order.OrderNumber),
		UsedWithOrderID: order.ID,
	})
	if err != nil {
		return 0, domain.Internal(err, "loyalty.reduce", "failed to append loyalty entry")
	}

	order.LoyaltyPointsWereAdded = false
	order.AddNote(fmt.Sprintf("%d loyalty points have been reduced", points), false)

	if telemetry.Business != nil {
		telemetry.Business.LoyaltyPointsReduced.WithLabelValues(order.StoreID).Add(float64(points))
	}
	return points, nil
}

// returnRedeemedPoints gives back the points the customer spent on order.
func (e *engine) returnRedeemedPoints(ctx context.Context, order *domain.Order) (int, error) {
	if order.RedeemedLoyaltyPoints <= 0 || order.RedeemedLoyaltyPointsReturned {
		return 0, nil
	}

	points := order.RedeemedLoyaltyPoints
	_, err := e.Loyalty.Append(ctx, domain.NewLoyaltyEntry{
		CustomerID:      order.CustomerID,
		StoreID:         e.ledgerStore(order.StoreID),
		Points:          points,
		UsedAmount:      order.RedeemedLoyaltyPointsAmount.Neg(),
		Message:         fmt.Sprintf("Returned redeemed points for order #%d", order.OrderNumber),
		UsedWithOrderID: order.ID,
	})
	if err != nil {
		return 0, domain.Internal(err, "loyalty.return_redeemed", "failed to append loyalty entry")
	}

	order.RedeemedLoyaltyPointsReturned = true
	order.AddNote(fmt.Sprintf("%d redeemed loyalty points have been returned", points), false)

	if telemetry.Business != nil {
		telemetry.Business.LoyaltyPointsReturned.WithLabelValues(order.StoreID).Add(float64(points))
	}
	return points, nil
}
