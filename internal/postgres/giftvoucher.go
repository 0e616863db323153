package postgres

import (
	"context"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
)

type GiftVoucherRepository struct {
	db *DB
}

func NewGiftVoucherRepository(db *DB) *GiftVoucherRepository {
	return &GiftVoucherRepository{db: db}
}

var _ domain.GiftVoucherRepository = (*GiftVoucherRepository)(nil)

func (r *GiftVoucherRepository) GetByPurchasedWithOrderItemID(ctx context.Context, orderItemID string) ([]domain.GiftVoucher, error) {
	const op = "gift_voucher.list_by_order_item"
	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT id, code, purchased_with_order_item_id, amount, currency_code, is_activated,
			recipient_name, recipient_email, usage_history, created_at
		FROM gift_vouchers WHERE purchased_with_order_item_id = $1
		ORDER BY created_at`, orderItemID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list gift vouchers")
	}
	defer rows.Close()

	var out []domain.GiftVoucher
	for rows.Next() {
		var g domain.GiftVoucher
		if err := rows.Scan(&g.ID, &g.Code, &g.PurchasedWithOrderItemID, &g.Amount, &g.CurrencyCode,
			&g.IsGiftVoucherActivated, &g.RecipientName, &g.RecipientEmail, &g.UsageHistory, &g.CreatedAt); err != nil {
			return nil, domain.Internal(err, op, "failed to scan gift voucher")
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read gift vouchers")
	}
	return out, nil
}

func (r *GiftVoucherRepository) Insert(ctx context.Context, g *domain.GiftVoucher) error {
	newID(&g.ID)
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO gift_vouchers (id, code, purchased_with_order_item_id, amount, currency_code, is_activated,
			recipient_name, recipient_email, usage_history, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		g.ID, g.Code, g.PurchasedWithOrderItemID, g.Amount, g.CurrencyCode, g.IsGiftVoucherActivated,
		g.RecipientName, g.RecipientEmail, jsonSlice(g.UsageHistory), g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("gift_voucher.insert", "gift voucher code already exists")
		}
		return domain.Internal(err, "gift_voucher.insert", "failed to insert gift voucher")
	}
	return nil
}

func (r *GiftVoucherRepository) Update(ctx context.Context, g *domain.GiftVoucher) error {
	const op = "gift_voucher.update"
	tag, err := r.db.conn(ctx).Exec(ctx, `
		UPDATE gift_vouchers SET amount = $2, is_activated = $3, recipient_name = $4,
			recipient_email = $5, usage_history = $6
		WHERE id = $1`,
		g.ID, g.Amount, g.IsGiftVoucherActivated, g.RecipientName, g.RecipientEmail, jsonSlice(g.UsageHistory))
	if err != nil {
		return domain.Internal(err, op, "failed to update gift voucher")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "gift voucher", g.ID)
	}
	return nil
}
