package postgres

import (
	"context"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/jackc/pgx/v5"
)

type PaymentTransactionRepository struct {
	db *DB
}

func NewPaymentTransactionRepository(db *DB) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: db}
}

var _ domain.PaymentTransactionRepository = (*PaymentTransactionRepository)(nil)

const transactionColumns = `id, order_guid, order_code, customer_id, store_id, payment_method, currency_code,
	transaction_amount, paid_amount, refunded_amount, status,
	authorization_transaction_id, capture_transaction_id, refund_transaction_id,
	errors, paid_at, version, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.PaymentTransaction, error) {
	var t domain.PaymentTransaction
	err := row.Scan(
		&t.ID, &t.OrderGUID, &t.OrderCode, &t.CustomerID, &t.StoreID, &t.PaymentMethod, &t.CurrencyCode,
		&t.TransactionAmount, &t.PaidAmount, &t.RefundedAmount, &t.Status,
		&t.AuthorizationTransactionID, &t.CaptureTransactionID, &t.RefundTransactionID,
		&t.Errors, &t.PaidAt, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PaymentTransactionRepository) getBy(ctx context.Context, op, column, value string) (*domain.PaymentTransaction, error) {
	row := r.db.conn(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE `+column+` = $1
		 ORDER BY created_at DESC LIMIT 1`, value)
	t, err := scanTransaction(row)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "payment transaction", value)
		}
		return nil, domain.Internal(err, op, "failed to load payment transaction")
	}
	return t, nil
}

func (r *PaymentTransactionRepository) GetByID(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	return r.getBy(ctx, "payment_transaction.get", "id", id)
}

func (r *PaymentTransactionRepository) GetByAuthorizationTransactionID(ctx context.Context, authorizationID string) (*domain.PaymentTransaction, error) {
	if authorizationID == "" {
		return nil, domain.Invalid("payment_transaction.get_by_authorization", "authorization id is required")
	}
	return r.getBy(ctx, "payment_transaction.get_by_authorization", "authorization_transaction_id", authorizationID)
}

func (r *PaymentTransactionRepository) ListByOrderGUID(ctx context.Context, orderGUID string) ([]domain.PaymentTransaction, error) {
	const op = "payment_transaction.list_by_order"
	rows, err := r.db.conn(ctx).Query(ctx,
		`SELECT `+transactionColumns+` FROM payment_transactions WHERE order_guid = $1 ORDER BY created_at`, orderGUID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list payment transactions")
	}
	defer rows.Close()

	var out []domain.PaymentTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan payment transaction")
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read payment transactions")
	}
	return out, nil
}

func (r *PaymentTransactionRepository) Insert(ctx context.Context, t *domain.PaymentTransaction) error {
	newID(&t.ID)
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.Version = 1

	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO payment_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		t.ID, t.OrderGUID, t.OrderCode, t.CustomerID, t.StoreID, t.PaymentMethod, t.CurrencyCode,
		t.TransactionAmount, t.PaidAmount, t.RefundedAmount, t.Status,
		t.AuthorizationTransactionID, t.CaptureTransactionID, t.RefundTransactionID,
		textArray(t.Errors), t.PaidAt, t.Version, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, "payment_transaction.insert", "failed to insert payment transaction")
	}
	return nil
}

func (r *PaymentTransactionRepository) Update(ctx context.Context, t *domain.PaymentTransaction) error {
	const op = "payment_transaction.update"
	t.UpdatedAt = time.Now().UTC()

	q := r.db.conn(ctx)
	tag, err := q.Exec(ctx, `
		UPDATE payment_transactions SET
			transaction_amount = $3, paid_amount = $4, refunded_amount = $5, status = $6,
			authorization_transaction_id = $7, capture_transaction_id = $8, refund_transaction_id = $9,
			errors = $10, paid_at = $11, version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $2`,
		t.ID, t.Version,
		t.TransactionAmount, t.PaidAmount, t.RefundedAmount, t.Status,
		t.AuthorizationTransactionID, t.CaptureTransactionID, t.RefundTransactionID,
		textArray(t.Errors), t.PaidAt, t.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update payment transaction")
	}
	if tag.RowsAffected() == 0 {
		return versionMiss(ctx, q, op, "payment_transactions", t.ID)
	}
	t.Version++
	return nil
}
