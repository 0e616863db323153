package admin

import (
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/shopspring/decimal"
)

// Response shapes for the admin API. Domain types stay free of JSON tags
// so the wire format can change without touching the aggregate.

type orderResponse struct {
	ID             string `json:"id"`
	OrderGUID      string `json:"order_guid"`
	OrderNumber    int    `json:"order_number"`
	Code           string `json:"code"`
	CustomerID     string `json:"customer_id"`
	CustomerEmail  string `json:"customer_email"`
	StoreID        string `json:"store_id,omitempty"`
	CurrencyCode   string `json:"currency_code"`
	OrderStatus    string `json:"order_status"`
	ShippingStatus string `json:"shipping_status"`
	PaymentStatus  string `json:"payment_status"`

	OrderSubtotal  decimal.Decimal `json:"order_subtotal"`
	OrderShipping  decimal.Decimal `json:"order_shipping"`
	OrderTax       decimal.Decimal `json:"order_tax"`
	OrderDiscount  decimal.Decimal `json:"order_discount"`
	OrderTotal     decimal.Decimal `json:"order_total"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`

	RedeemedLoyaltyPoints         int  `json:"redeemed_loyalty_points"`
	RedeemedLoyaltyPointsReturned bool `json:"redeemed_loyalty_points_returned"`
	CalcLoyaltyPoints             int  `json:"calc_loyalty_points"`
	LoyaltyPointsWereAdded        bool `json:"loyalty_points_were_added"`

	Items   []domain.OrderItem `json:"items"`
	Taxes   []domain.OrderTax  `json:"taxes"`
	Tags    []string           `json:"tags"`
	Notes   []domain.OrderNote `json:"notes"`
	Deleted bool               `json:"deleted"`
	Version int                `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:                            o.ID,
		OrderGUID:                     o.OrderGUID,
		OrderNumber:                   o.OrderNumber,
		Code:                          o.Code,
		CustomerID:                    o.CustomerID,
		CustomerEmail:                 o.CustomerEmail,
		StoreID:                       o.StoreID,
		CurrencyCode:                  o.CurrencyCode,
		OrderStatus:                   string(o.OrderStatus),
		ShippingStatus:                string(o.ShippingStatus),
		PaymentStatus:                 string(o.PaymentStatus),
		OrderSubtotal:                 o.OrderSubtotal,
		OrderShipping:                 o.OrderShipping,
		OrderTax:                      o.OrderTax,
		OrderDiscount:                 o.OrderDiscount,
		OrderTotal:                    o.OrderTotal,
		PaidAmount:                    o.PaidAmount,
		RefundedAmount:                o.RefundedAmount,
		PaidAt:                        o.PaidAt,
		RedeemedLoyaltyPoints:         o.RedeemedLoyaltyPoints,
		RedeemedLoyaltyPointsReturned: o.RedeemedLoyaltyPointsReturned,
		CalcLoyaltyPoints:             o.CalcLoyaltyPoints,
		LoyaltyPointsWereAdded:        o.LoyaltyPointsWereAdded,
		Items:                         nonNil(o.Items),
		Taxes:                         nonNil(o.Taxes),
		Tags:                          nonNil(o.Tags),
		Notes:                         nonNil(o.Notes),
		Deleted:                       o.Deleted,
		Version:                       o.Version,
		CreatedAt:                     o.CreatedAt,
		UpdatedAt:                     o.UpdatedAt,
	}
}

type transactionResponse struct {
	ID                         string                    `json:"id"`
	OrderGUID                  string                    `json:"order_guid"`
	OrderCode                  string                    `json:"order_code"`
	CustomerID                 string                    `json:"customer_id"`
	PaymentMethod              string                    `json:"payment_method"`
	CurrencyCode               string                    `json:"currency_code"`
	TransactionAmount          decimal.Decimal           `json:"transaction_amount"`
	PaidAmount                 decimal.Decimal           `json:"paid_amount"`
	RefundedAmount             decimal.Decimal           `json:"refunded_amount"`
	Status                     string                    `json:"status"`
	AuthorizationTransactionID string                    `json:"authorization_transaction_id,omitempty"`
	CaptureTransactionID       string                    `json:"capture_transaction_id,omitempty"`
	RefundTransactionID        string                    `json:"refund_transaction_id,omitempty"`
	Errors                     []string                  `json:"errors"`
	PaidAt                     *time.Time                `json:"paid_at,omitempty"`
	Version                    int                       `json:"version"`
	Guards                     *domain.TransactionGuards `json:"guards,omitempty"`
	CreatedAt                  time.Time                 `json:"created_at"`
	UpdatedAt                  time.Time                 `json:"updated_at"`
}

func newTransactionResponse(t *domain.PaymentTransaction) transactionResponse {
	return transactionResponse{
		ID:                         t.ID,
		OrderGUID:                  t.OrderGUID,
		OrderCode:                  t.OrderCode,
		CustomerID:                 t.CustomerID,
		PaymentMethod:              t.PaymentMethod,
		CurrencyCode:               t.CurrencyCode,
		TransactionAmount:          t.TransactionAmount,
		PaidAmount:                 t.PaidAmount,
		RefundedAmount:             t.RefundedAmount,
		Status:                     string(t.Status),
		AuthorizationTransactionID: t.AuthorizationTransactionID,
		CaptureTransactionID:       t.CaptureTransactionID,
		RefundTransactionID:        t.RefundTransactionID,
		Errors:                     nonNil(t.Errors),
		PaidAt:                     t.PaidAt,
		Version:                    t.Version,
		CreatedAt:                  t.CreatedAt,
		UpdatedAt:                  t.UpdatedAt,
	}
}

type shipmentResponse struct {
	ID             string                `json:"id"`
	OrderID        string                `json:"order_id"`
	ShipmentNumber int                   `json:"shipment_number"`
	TrackingNumber string                `json:"tracking_number,omitempty"`
	Carrier        string                `json:"carrier,omitempty"`
	Items          []domain.ShipmentItem `json:"items"`
	ShippedAt      *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time            `json:"delivered_at,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

func newShipmentResponse(s *domain.Shipment) shipmentResponse {
	return shipmentResponse{
		ID:             s.ID,
		OrderID:        s.OrderID,
		ShipmentNumber: s.ShipmentNumber,
		TrackingNumber: s.TrackingNumber,
		Carrier:        s.Carrier,
		Items:          nonNil(s.Items),
		ShippedAt:      s.ShippedAt,
		DeliveredAt:    s.DeliveredAt,
		CreatedAt:      s.CreatedAt,
	}
}

type ledgerEntryResponse struct {
	ID              string          `json:"id"`
	Points          int             `json:"points"`
	PointsBalance   int             `json:"points_balance"`
	UsedAmount      decimal.Decimal `json:"used_amount"`
	Message         string          `json:"message"`
	UsedWithOrderID string          `json:"used_with_order_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newLedgerEntryResponse(e domain.LoyaltyPointsHistory) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:              e.ID,
		Points:          e.Points,
		PointsBalance:   e.PointsBalance,
		UsedAmount:      e.UsedAmount,
		Message:         e.Message,
		UsedWithOrderID: e.UsedWithOrderID,
		CreatedAt:       e.CreatedAt,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
