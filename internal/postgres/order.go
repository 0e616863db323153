package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/jackc/pgx/v5"
)

// OrderRepository implements domain.OrderRepository. Items, taxes and notes
// are stored as JSONB on the order row, so every read returns the whole
// aggregate and every update replaces it.
type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

const orderColumns = `id, order_guid, order_number, code, customer_id, customer_email, store_id,
	currency_code, currency_rate, order_status, shipping_status, payment_status,
	order_subtotal, order_shipping, order_tax, order_discount, order_total,
	paid_amount, refunded_amount, paid_at,
	redeemed_loyalty_points, redeemed_loyalty_points_amount, redeemed_loyalty_points_returned,
	calc_loyalty_points, loyalty_points_were_added,
	items, taxes, tags, notes, deleted, version, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderGUID, &o.OrderNumber, &o.Code, &o.CustomerID, &o.CustomerEmail, &o.StoreID,
		&o.CurrencyCode, &o.CurrencyRate, &o.OrderStatus, &o.ShippingStatus, &o.PaymentStatus,
		&o.OrderSubtotal, &o.OrderShipping, &o.OrderTax, &o.OrderDiscount, &o.OrderTotal,
		&o.PaidAmount, &o.RefundedAmount, &o.PaidAt,
		&o.RedeemedLoyaltyPoints, &o.RedeemedLoyaltyPointsAmount, &o.RedeemedLoyaltyPointsReturned,
		&o.CalcLoyaltyPoints, &o.LoyaltyPointsWereAdded,
		&o.Items, &o.Taxes, &o.Tags, &o.Notes, &o.Deleted, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) getBy(ctx context.Context, op, column, value string) (*domain.Order, error) {
	row := r.db.conn(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, value)
	order, err := scanOrder(row)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "order", value)
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	return order, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getBy(ctx, "order.get", "id", id)
}

func (r *OrderRepository) GetByGUID(ctx context.Context, guid string) (*domain.Order, error) {
	return r.getBy(ctx, "order.get_by_guid", "order_guid", guid)
}

func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	return r.getBy(ctx, "order.get_by_code", "code", code)
}

// Insert stores a new order at version 1.
func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	o.Version = 1

	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)`,
		o.ID, o.OrderGUID, o.OrderNumber, o.Code, o.CustomerID, o.CustomerEmail, o.StoreID,
		o.CurrencyCode, o.CurrencyRate, o.OrderStatus, o.ShippingStatus, o.PaymentStatus,
		o.OrderSubtotal, o.OrderShipping, o.OrderTax, o.OrderDiscount, o.OrderTotal,
		o.PaidAmount, o.RefundedAmount, o.PaidAt,
		o.RedeemedLoyaltyPoints, o.RedeemedLoyaltyPointsAmount, o.RedeemedLoyaltyPointsReturned,
		o.CalcLoyaltyPoints, o.LoyaltyPointsWereAdded,
		jsonSlice(o.Items), jsonSlice(o.Taxes), textArray(o.Tags), jsonSlice(o.Notes),
		o.Deleted, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("order.insert", "an order with this id, number or code already exists")
		}
		return domain.Internal(err, "order.insert", "failed to insert order")
	}
	return nil
}

// Update writes the whole aggregate when the stored version matches, then
// bumps o.Version.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = time.Now().UTC()

	tag, err := r.db.conn(ctx).Exec(ctx, `
		UPDATE orders SET
			customer_email = $3, currency_code = $4, currency_rate = $5,
			order_status = $6, shipping_status = $7, payment_status = $8,
			order_subtotal = $9, order_shipping = $10, order_tax = $11, order_discount = $12, order_total = $13,
			paid_amount = $14, refunded_amount = $15, paid_at = $16,
			redeemed_loyalty_points = $17, redeemed_loyalty_points_amount = $18,
			redeemed_loyalty_points_returned = $19, calc_loyalty_points = $20, loyalty_points_were_added = $21,
			items = $22, taxes = $23, tags = $24, notes = $25, deleted = $26,
			version = version + 1, updated_at = $27
		WHERE id = $1 AND version = $2`,
		o.ID, o.Version,
		o.CustomerEmail, o.CurrencyCode, o.CurrencyRate,
		o.OrderStatus, o.ShippingStatus, o.PaymentStatus,
		o.OrderSubtotal, o.OrderShipping, o.OrderTax, o.OrderDiscount, o.OrderTotal,
		o.PaidAmount, o.RefundedAmount, o.PaidAt,
		o.RedeemedLoyaltyPoints, o.RedeemedLoyaltyPointsAmount,
		o.RedeemedLoyaltyPointsReturned, o.CalcLoyaltyPoints, o.LoyaltyPointsWereAdded,
		jsonSlice(o.Items), jsonSlice(o.Taxes), textArray(o.Tags), jsonSlice(o.Notes), o.Deleted,
		o.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, "order.update", "failed to update order")
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, "order.update", "orders", o.ID)
	}
	o.Version++
	return nil
}

// missOrConflict tells a missing row from a stale version after an update
// matched nothing.
func (r *OrderRepository) missOrConflict(ctx context.Context, op, table, id string) error {
	return versionMiss(ctx, r.db.conn(ctx), op, table, id)
}

func versionMiss(ctx context.Context, q querier, op, table, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return domain.Internal(err, op, "failed to check record version")
	}
	if !exists {
		return domain.NotFound(op, strings.TrimSuffix(table, "s"), id)
	}
	return domain.WrapError(domain.ErrVersionConflict, domain.ECONFLICT, op, domain.ErrVersionConflict.Message)
}

// SearchOrders returns one page of orders, newest first.
func (r *OrderRepository) SearchOrders(ctx context.Context, f domain.OrderFilter) (domain.Page[domain.Order], error) {
	const op = "order.search"

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if !f.IncludeDeleted {
		where = append(where, "deleted = FALSE")
	}
	if f.OrderStatus != "" {
		add("order_status = $%d", f.OrderStatus)
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", f.PaymentStatus)
	}
	if f.ShippingStatus != "" {
		add("shipping_status = $%d", f.ShippingStatus)
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.StoreID != "" {
		add("store_id = $%d", f.StoreID)
	}
	if f.Tag != "" {
		add("$%d = ANY(tags)", f.Tag)
	}
	if f.CreatedFrom != nil {
		add("created_at >= $%d", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add("created_at <= $%d", *f.CreatedTo)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page := domain.Page[domain.Order]{PageIndex: f.PageIndex, PageSize: f.PageSize}
	q := r.db.conn(ctx)

	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&page.TotalCount); err != nil {
		return page, domain.Internal(err, op, "failed to count orders")
	}

	args = append(args, f.PageSize, f.PageIndex*f.PageSize)
	rows, err := q.Query(ctx,
		fmt.Sprintf(`SELECT `+orderColumns+` FROM orders%s ORDER BY created_at DESC, order_number DESC LIMIT $%d OFFSET $%d`,
			clause, len(args)-1, len(args)),
		args...)
	if err != nil {
		return page, domain.Internal(err, op, "failed to search orders")
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return page, domain.Internal(err, op, "failed to scan order")
		}
		page.Items = append(page.Items, *o)
	}
	if err := rows.Err(); err != nil {
		return page, domain.Internal(err, op, "failed to read orders")
	}
	return page, nil
}

// NextOrderNumber allocates the next order number atomically.
func (r *OrderRepository) NextOrderNumber(ctx context.Context, floor int) (int, error) {
	var n int
	err := r.db.conn(ctx).QueryRow(ctx, `
		INSERT INTO order_number_counter (name, value)
		VALUES ('orders', GREATEST($1::int, COALESCE((SELECT MAX(order_number) FROM orders), 0) + 1))
		ON CONFLICT (name) DO UPDATE
			SET value = GREATEST(order_number_counter.value + 1, $1::int)
		RETURNING value`, floor).Scan(&n)
	if err != nil {
		return 0, domain.Internal(err, "order.next_number", "failed to allocate order number")
	}
	return n, nil
}
