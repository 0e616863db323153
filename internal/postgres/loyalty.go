package postgres

import (
	"context"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LoyaltyPointsRepository is the append-only points ledger. Appends for one
// customer and store are serialized with a transaction-scoped advisory lock,
// so each row's points_balance is the previous row's balance plus its delta.
type LoyaltyPointsRepository struct {
	db *DB
}

func NewLoyaltyPointsRepository(db *DB) *LoyaltyPointsRepository {
	return &LoyaltyPointsRepository{db: db}
}

var _ domain.LoyaltyPointsRepository = (*LoyaltyPointsRepository)(nil)

const loyaltyColumns = `id, customer_id, store_id, points, points_balance, used_amount,
	message, used_with_order_id, created_at`

func scanLoyaltyEntry(row pgx.Row) (*domain.LoyaltyPointsHistory, error) {
	var h domain.LoyaltyPointsHistory
	if err := row.Scan(&h.ID, &h.CustomerID, &h.StoreID, &h.Points, &h.PointsBalance, &h.UsedAmount,
		&h.Message, &h.UsedWithOrderID, &h.CreatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *LoyaltyPointsRepository) Append(ctx context.Context, entry domain.NewLoyaltyEntry) (*domain.LoyaltyPointsHistory, error) {
	const op = "loyalty.append"
	if entry.CustomerID == "" {
		return nil, domain.Invalid(op, "customer id is required")
	}

	var out *domain.LoyaltyPointsHistory
	err := r.db.WithinTx(ctx, func(ctx context.Context) error {
		q := r.db.conn(ctx)

		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
			"loyalty:"+entry.CustomerID+"|"+entry.StoreID); err != nil {
			return domain.Internal(err, op, "failed to lock points ledger")
		}

		prev, err := r.balance(ctx, q, entry.CustomerID, entry.StoreID)
		if err != nil {
			return domain.Internal(err, op, "failed to read points balance")
		}

		h := domain.LoyaltyPointsHistory{
			ID:              uuid.NewString(),
			CustomerID:      entry.CustomerID,
			StoreID:         entry.StoreID,
			Points:          entry.Points,
			PointsBalance:   prev + entry.Points,
			UsedAmount:      entry.UsedAmount,
			Message:         entry.Message,
			UsedWithOrderID: entry.UsedWithOrderID,
			CreatedAt:       time.Now().UTC(),
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO loyalty_points_history (`+loyaltyColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			h.ID, h.CustomerID, h.StoreID, h.Points, h.PointsBalance, h.UsedAmount,
			h.Message, h.UsedWithOrderID, h.CreatedAt); err != nil {
			return domain.Internal(err, op, "failed to append points entry")
		}
		out = &h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoyaltyPointsRepository) balance(ctx context.Context, q querier, customerID, storeID string) (int, error) {
	var balance int
	err := q.QueryRow(ctx, `
		SELECT points_balance FROM loyalty_points_history
		WHERE customer_id = $1 AND store_id = $2
		ORDER BY seq DESC LIMIT 1`, customerID, storeID).Scan(&balance)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// Balance returns the snapshot on the newest entry.
func (r *LoyaltyPointsRepository) Balance(ctx context.Context, customerID, storeID string) (int, error) {
	balance, err := r.balance(ctx, r.db.conn(ctx), customerID, storeID)
	if err != nil {
		return 0, domain.Internal(err, "loyalty.balance", "failed to read points balance")
	}
	return balance, nil
}

func (r *LoyaltyPointsRepository) History(ctx context.Context, customerID, storeID string) ([]domain.LoyaltyPointsHistory, error) {
	const op = "loyalty.history"
	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT `+loyaltyColumns+` FROM loyalty_points_history
		WHERE customer_id = $1 AND store_id = $2
		ORDER BY seq`, customerID, storeID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list points history")
	}
	defer rows.Close()

	var out []domain.LoyaltyPointsHistory
	for rows.Next() {
		h, err := scanLoyaltyEntry(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan points entry")
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read points history")
	}
	return out, nil
}
