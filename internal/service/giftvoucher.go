package service

import (
	"context"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/google/uuid"
)

const giftVoucherCodeLength = 12

// setGiftVouchersActive toggles every voucher purchased with the order.
func (e *engine) setGiftVouchersActive(ctx context.Context, order *domain.Order, active bool) error {
	if e.GiftVouchers == nil {
		return nil
	}
	for _, item := range order.Items {
		if !item.IsGiftVoucher {
			continue
		}
		vouchers, err := e.GiftVouchers.GetByPurchasedWithOrderItemID(ctx, item.ID)
		if err != nil {
			return domain.Internal(err, "gift_voucher.toggle", "failed to load gift vouchers")
		}
		for i := range vouchers {
			v := &vouchers[i]
			if v.IsGiftVoucherActivated == active {
				continue
			}
			v.IsGiftVoucherActivated = active
			if err := e.GiftVouchers.Update(ctx, v); err != nil {
				return domain.Internal(err, "gift_voucher.toggle", "failed to update gift voucher")
			}
		}
	}
	return nil
}

// syncGiftVouchers makes the vouchers bought with item match its quantity and
// unit price. Existing vouchers are repriced; missing ones are created
// inactive. Vouchers are never removed when the quantity drops. It returns
// the ids of the created vouchers for the caller to announce after commit.
func (e *engine) syncGiftVouchers(ctx context.Context, order *domain.Order, item *domain.OrderItem) ([]string, error) {
	if e.GiftVouchers == nil || !item.IsGiftVoucher {
		return nil, nil
	}

	existing, err := e.GiftVouchers.GetByPurchasedWithOrderItemID(ctx, item.ID)
	if err != nil {
		return nil, domain.Internal(err, "gift_voucher.sync", "failed to load gift vouchers")
	}

	for i := range existing {
		v := &existing[i]
		if v.Amount.Equal(item.UnitPriceInclTax) {
			continue
		}
		if err := v.SetAmount(item.UnitPriceInclTax); err != nil {
			return nil, err
		}
		if err := e.GiftVouchers.Update(ctx, v); err != nil {
			return nil, domain.Internal(err, "gift_voucher.sync", "failed to update gift voucher")
		}
	}

	var created []string
	for n := len(existing); n < item.Quantity; n++ {
		code, err := randomCode(giftVoucherCodeLength)
		if err != nil {
			return nil, domain.Internal(err, "gift_voucher.sync", "failed to generate gift voucher code")
		}
		v := &domain.GiftVoucher{
			ID:                       uuid.NewString(),
			Code:                     code,
			PurchasedWithOrderItemID: item.ID,
			Amount:                   item.UnitPriceInclTax,
			CurrencyCode:             order.CurrencyCode,
			CreatedAt:                time.Now().UTC(),
		}
		if err := e.GiftVouchers.Insert(ctx, v); err != nil {
			return nil, domain.Internal(err, "gift_voucher.sync", "failed to create gift voucher")
		}
		created = append(created, v.ID)
	}
	return created, nil
}

func (e *engine) publishVouchersCreated(ctx context.Context, orderID string, ids []string) {
	for _, id := range ids {
		e.publish(ctx, domain.NewEntityEvent(domain.EntityGiftVoucher, domain.EntityInserted, id, orderID))
	}
}
