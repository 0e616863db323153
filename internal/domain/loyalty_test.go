package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoyaltyPointsSettings_CalculatePoints(t *testing.T) {
	s := LoyaltyPointsSettings{
		Enabled:                  true,
		PointsForPurchasesAmount: decimal.NewFromInt(10),
		PointsForPurchasesPoints: 2,
	}

	tests := []struct {
		amount string
		want   int
	}{
		{"100", 20},
		{"200", 40},
		{"375", 75},
		{"9.99", 1},
		{"4.99", 0},
		{"0", 0},
		{"-10", 0},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			if got := s.CalculatePoints(decimal.RequireFromString(tt.amount)); got != tt.want {
				t.Errorf("CalculatePoints(%s) = %d, want %d", tt.amount, got, tt.want)
			}
		})
	}

	t.Run("disabled", func(t *testing.T) {
		off := s
		off.Enabled = false
		if got := off.CalculatePoints(decimal.NewFromInt(100)); got != 0 {
			t.Errorf("CalculatePoints = %d, want 0", got)
		}
	})

	t.Run("no spend threshold", func(t *testing.T) {
		bad := s
		bad.PointsForPurchasesAmount = decimal.Zero
		if got := bad.CalculatePoints(decimal.NewFromInt(100)); got != 0 {
			t.Errorf("CalculatePoints = %d, want 0", got)
		}
	})
}

func TestLoyaltyPointsSettings_PointsToAmount(t *testing.T) {
	s := LoyaltyPointsSettings{ExchangeRate: decimal.RequireFromString("0.1")}
	if got := s.PointsToAmount(50); !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("PointsToAmount(50) = %s, want 5", got)
	}
	if got := s.PointsToAmount(-5); !got.IsZero() {
		t.Errorf("PointsToAmount(-5) = %s, want 0", got)
	}
}

func TestFoldBalance(t *testing.T) {
	entries := []LoyaltyPointsHistory{{Points: 20}, {Points: -20}, {Points: 50}}
	if got := FoldBalance(entries); got != 50 {
		t.Errorf("FoldBalance = %d, want 50", got)
	}
	if got := FoldBalance(nil); got != 0 {
		t.Errorf("FoldBalance(nil) = %d, want 0", got)
	}
}

func TestCustomer_FullName(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Ada", "Lovelace", "Ada Lovelace"},
		{"Ada", "", "Ada"},
		{"", "Lovelace", "Lovelace"},
		{"", "", ""},
	}
	for _, tt := range tests {
		c := Customer{FirstName: tt.first, LastName: tt.last}
		if got := c.FullName(); got != tt.want {
			t.Errorf("FullName() = %q, want %q", got, tt.want)
		}
	}
}

func TestGiftVoucher_SetAmount(t *testing.T) {
	gv := GiftVoucher{
		Amount: decimal.NewFromInt(50),
		UsageHistory: []GiftVoucherUsageHistory{
			{UsedValue: decimal.NewFromInt(15)},
			{UsedValue: decimal.NewFromInt(5)},
		},
	}

	if !gv.RemainingAmount().Equal(decimal.NewFromInt(30)) {
		t.Errorf("RemainingAmount = %s, want 30", gv.RemainingAmount())
	}
	if err := gv.SetAmount(decimal.NewFromInt(10)); !errors.Is(err, ErrGiftVoucherAmountBelowUsage) {
		t.Errorf("SetAmount(10) error = %v, want ErrGiftVoucherAmountBelowUsage", err)
	}
	if err := gv.SetAmount(decimal.NewFromInt(20)); err != nil {
		t.Errorf("SetAmount(20) error = %v", err)
	}
	if !gv.RemainingAmount().IsZero() {
		t.Errorf("RemainingAmount = %s, want 0", gv.RemainingAmount())
	}
}
