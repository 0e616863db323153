package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoyaltyPointsHistory is one immutable entry in a customer's points ledger.
// PointsBalance is the running total after this entry was appended.
type LoyaltyPointsHistory struct {
	ID              string
	CustomerID      string
	StoreID         string
	Points          int
	PointsBalance   int
	UsedAmount      decimal.Decimal
	Message         string
	UsedWithOrderID string
	CreatedAt       time.Time
}

// NewLoyaltyEntry is what callers hand to the ledger; ID, balance and
// timestamp are assigned on append.
type NewLoyaltyEntry struct {
	CustomerID      string
	StoreID         string
	Points          int
	UsedAmount      decimal.Decimal
	Message         string
	UsedWithOrderID string
}

// Customer is the subset of customer data the engine needs.
type Customer struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	StoreID   string
	Active    bool
}

// FullName joins first and last name.
func (c *Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// LoyaltyPointsSettings configures the points program.
type LoyaltyPointsSettings struct {
	Enabled bool `mapstructure:"enabled"`

	// PointsForPurchasesAmount is the spend that earns PointsForPurchasesPoints.
	PointsForPurchasesAmount decimal.Decimal `mapstructure:"points_for_purchases_amount"`
	PointsForPurchasesPoints int             `mapstructure:"points_for_purchases_points"`

	// ExchangeRate is the primary-currency value of one point.
	ExchangeRate decimal.Decimal `mapstructure:"exchange_rate"`

	ReduceLoyaltyPointsAfterCancelOrder bool `mapstructure:"reduce_after_cancel_order"`
	PointsAccumulatedForAllStores       bool `mapstructure:"accumulated_for_all_stores"`
}

// CalculatePoints converts a primary-currency amount into points, truncating
// toward zero. Non-positive amounts and a disabled program yield zero.
func (s LoyaltyPointsSettings) CalculatePoints(amount decimal.Decimal) int {
	if !s.Enabled || !amount.IsPositive() || !s.PointsForPurchasesAmount.IsPositive() || s.PointsForPurchasesPoints <= 0 {
		return 0
	}
	points := amount.Mul(decimal.NewFromInt(int64(s.PointsForPurchasesPoints))).
		Div(s.PointsForPurchasesAmount).
		Truncate(0)
	return int(points.IntPart())
}

// PointsToAmount converts points into their primary-currency value.
func (s LoyaltyPointsSettings) PointsToAmount(points int) decimal.Decimal {
	if points <= 0 {
		return decimal.Zero
	}
	return s.ExchangeRate.Mul(decimal.NewFromInt(int64(points)))
}

// FoldBalance sums ledger deltas in order.
func FoldBalance(entries []LoyaltyPointsHistory) int {
	balance := 0
	for _, e := range entries {
		balance += e.Points
	}
	return balance
}
