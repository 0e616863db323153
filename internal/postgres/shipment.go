package postgres

import (
	"context"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/jackc/pgx/v5"
)

type ShipmentRepository struct {
	db *DB
}

func NewShipmentRepository(db *DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

var _ domain.ShipmentRepository = (*ShipmentRepository)(nil)

const shipmentColumns = `id, order_id, shipment_number, tracking_number, carrier, items,
	shipped_at, delivered_at, created_at`

func scanShipment(row pgx.Row) (*domain.Shipment, error) {
	var s domain.Shipment
	if err := row.Scan(&s.ID, &s.OrderID, &s.ShipmentNumber, &s.TrackingNumber, &s.Carrier, &s.Items,
		&s.ShippedAt, &s.DeliveredAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ShipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	const op = "shipment.get"
	s, err := scanShipment(r.db.conn(ctx).QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "shipment", id)
		}
		return nil, domain.Internal(err, op, "failed to load shipment")
	}
	return s, nil
}

func (r *ShipmentRepository) ListByOrderID(ctx context.Context, orderID string) ([]domain.Shipment, error) {
	const op = "shipment.list_by_order"
	rows, err := r.db.conn(ctx).Query(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE order_id = $1 ORDER BY shipment_number`, orderID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list shipments")
	}
	defer rows.Close()

	var out []domain.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan shipment")
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read shipments")
	}
	return out, nil
}

func (r *ShipmentRepository) Insert(ctx context.Context, s *domain.Shipment) error {
	newID(&s.ID)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.conn(ctx).Exec(ctx, `
		INSERT INTO shipments (`+shipmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.OrderID, s.ShipmentNumber, s.TrackingNumber, s.Carrier, jsonSlice(s.Items),
		s.ShippedAt, s.DeliveredAt, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("shipment.insert", "shipment number already used for this order")
		}
		return domain.Internal(err, "shipment.insert", "failed to insert shipment")
	}
	return nil
}

func (r *ShipmentRepository) Update(ctx context.Context, s *domain.Shipment) error {
	const op = "shipment.update"
	tag, err := r.db.conn(ctx).Exec(ctx, `
		UPDATE shipments SET tracking_number = $2, carrier = $3, items = $4, shipped_at = $5, delivered_at = $6
		WHERE id = $1`,
		s.ID, s.TrackingNumber, s.Carrier, jsonSlice(s.Items), s.ShippedAt, s.DeliveredAt)
	if err != nil {
		return domain.Internal(err, op, "failed to update shipment")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "shipment", s.ID)
	}
	return nil
}

func (r *ShipmentRepository) Delete(ctx context.Context, id string) error {
	const op = "shipment.delete"
	tag, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM shipments WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, op, "failed to delete shipment")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "shipment", id)
	}
	return nil
}
