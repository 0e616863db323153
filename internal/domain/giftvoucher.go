package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var ErrGiftVoucherAmountBelowUsage = &Error{Code: EINVALID, Message: "Gift voucher amount cannot be lower than the amount already redeemed"}

// GiftVoucher is created when an order item purchases a voucher.
type GiftVoucher struct {
	ID                       string
	Code                     string
	PurchasedWithOrderItemID string
	Amount                   decimal.Decimal
	CurrencyCode             string
	IsGiftVoucherActivated   bool
	RecipientName            string
	RecipientEmail           string
	UsageHistory             []GiftVoucherUsageHistory
	CreatedAt                time.Time
}

// GiftVoucherUsageHistory is one redemption of a voucher. Entries are append-only.
type GiftVoucherUsageHistory struct {
	ID              string          `json:"id"`
	UsedWithOrderID string          `json:"used_with_order_id"`
	UsedValue       decimal.Decimal `json:"used_value"`
	CreatedAt       time.Time       `json:"created_at"`
}

// UsedAmount is the total redeemed so far.
func (g *GiftVoucher) UsedAmount() decimal.Decimal {
	used := decimal.Zero
	for _, h := range g.UsageHistory {
		used = used.Add(h.UsedValue)
	}
	return used
}

// RemainingAmount is what can still be redeemed.
func (g *GiftVoucher) RemainingAmount() decimal.Decimal {
	r := g.Amount.Sub(g.UsedAmount())
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// SetAmount changes the voucher face value, refusing to drop below what was
// already redeemed.
func (g *GiftVoucher) SetAmount(amount decimal.Decimal) error {
	if amount.LessThan(g.UsedAmount()) {
		return ErrGiftVoucherAmountBelowUsage
	}
	g.Amount = amount
	return nil
}
