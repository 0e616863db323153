package postgres

import (
	"context"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
)

// InventoryService keeps reserved quantities per product, warehouse and
// attribute combination.
type InventoryService struct {
	db *DB
}

func NewInventoryService(db *DB) *InventoryService {
	return &InventoryService{db: db}
}

var _ domain.InventoryService = (*InventoryService)(nil)

// AdjustReserved releases quantityToChange units when positive and reserves
// them when negative. Reserved stock never drops below zero.
func (s *InventoryService) AdjustReserved(ctx context.Context, productID string, quantityToChange int, attributes []domain.CustomAttribute, warehouseID string) error {
	const op = "inventory.adjust_reserved"
	if productID == "" {
		return domain.Invalid(op, "product id is required")
	}
	if quantityToChange == 0 {
		return nil
	}

	_, err := s.db.conn(ctx).Exec(ctx, `
		INSERT INTO inventory (product_id, warehouse_id, attributes_key, reserved_qty, updated_at)
		VALUES ($1, $2, $3, GREATEST(-$4::int, 0), $5)
		ON CONFLICT (product_id, warehouse_id, attributes_key) DO UPDATE
			SET reserved_qty = GREATEST(inventory.reserved_qty - $4::int, 0),
			    updated_at = $5`,
		productID, warehouseID, attributesKey(attributes), quantityToChange, time.Now().UTC())
	if err != nil {
		return domain.Internal(err, op, "failed to adjust reserved stock")
	}
	return nil
}

// Reserved reports the reserved quantity of one stock row.
func (s *InventoryService) Reserved(ctx context.Context, productID string, attributes []domain.CustomAttribute, warehouseID string) (int, error) {
	var qty int
	err := s.db.conn(ctx).QueryRow(ctx, `
		SELECT reserved_qty FROM inventory
		WHERE product_id = $1 AND warehouse_id = $2 AND attributes_key = $3`,
		productID, warehouseID, attributesKey(attributes)).Scan(&qty)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, domain.Internal(err, "inventory.reserved", "failed to read reserved stock")
	}
	return qty, nil
}
