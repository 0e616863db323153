package postgres

import (
	"context"

	"github.com/dukerupert/verdandi/internal/domain"
)

// ReservationService releases product reservations booked for an order.
type ReservationService struct {
	db *DB
}

func NewReservationService(db *DB) *ReservationService {
	return &ReservationService{db: db}
}

var _ domain.ReservationService = (*ReservationService)(nil)

// CancelReservationsByOrderID frees every reservation slot held by orderID.
func (s *ReservationService) CancelReservationsByOrderID(ctx context.Context, orderID string) error {
	if _, err := s.db.conn(ctx).Exec(ctx,
		`UPDATE product_reservations SET order_id = NULL WHERE order_id = $1`, orderID); err != nil {
		return domain.Internal(err, "reservation.cancel_by_order", "failed to cancel reservations")
	}
	return nil
}

// AuctionService detaches winning bids from a cancelled order.
type AuctionService struct {
	db *DB
}

func NewAuctionService(db *DB) *AuctionService {
	return &AuctionService{db: db}
}

var _ domain.AuctionService = (*AuctionService)(nil)

func (s *AuctionService) CancelBidByOrder(ctx context.Context, orderID string) error {
	if _, err := s.db.conn(ctx).Exec(ctx,
		`UPDATE auction_bids SET order_id = NULL, win = FALSE WHERE order_id = $1`, orderID); err != nil {
		return domain.Internal(err, "auction.cancel_bid_by_order", "failed to cancel bids")
	}
	return nil
}

// DiscountService marks discount usage of an order as cancelled so the
// discount's usage limits count it no longer.
type DiscountService struct {
	db *DB
}

func NewDiscountService(db *DB) *DiscountService {
	return &DiscountService{db: db}
}

var _ domain.DiscountService = (*DiscountService)(nil)

func (s *DiscountService) CancelDiscount(ctx context.Context, orderID string) error {
	if _, err := s.db.conn(ctx).Exec(ctx,
		`UPDATE discount_usage_history SET canceled = TRUE WHERE order_id = $1`, orderID); err != nil {
		return domain.Internal(err, "discount.cancel", "failed to cancel discount usage")
	}
	return nil
}
