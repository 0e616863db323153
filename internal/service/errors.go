package service

import (
	"github.com/dukerupert/verdandi/internal/domain"
)

// Lookup errors - use domain.ENOTFOUND
var (
	ErrOrderNotFound              = domain.Errorf(domain.ENOTFOUND, "", "Order not found")
	ErrPaymentTransactionNotFound = domain.Errorf(domain.ENOTFOUND, "", "Payment transaction not found")
	ErrShipmentNotFound           = domain.Errorf(domain.ENOTFOUND, "", "Shipment not found")
)

// Dependency errors - returned by constructors
var (
	ErrMissingOrderRepository       = domain.Errorf(domain.EINTERNAL, "", "order repository is required")
	ErrMissingTransactionRepository = domain.Errorf(domain.EINTERNAL, "", "payment transaction repository is required")
	ErrMissingShipmentRepository    = domain.Errorf(domain.EINTERNAL, "", "shipment repository is required")
	ErrMissingLoyaltyRepository     = domain.Errorf(domain.EINTERNAL, "", "loyalty points repository is required")
	ErrMissingInventoryService      = domain.Errorf(domain.EINTERNAL, "", "inventory service is required")
)

// Order command errors
var (
	ErrOrderLocked          = domain.Errorf(domain.ECONFLICT, "", "Order is being modified by another request")
	ErrOrderCodeUnavailable = domain.Errorf(domain.EINTERNAL, "", "Could not generate a unique order code")
	ErrGiftVoucherNotFound  = domain.Errorf(domain.ENOTFOUND, "", "Gift voucher not found")
)

// Payment transaction errors. Guard failures wrap one of the first two so
// callers can tell "already there" from "cannot get there from here".
var (
	ErrTransactionAlreadyInStatus  = domain.Errorf(domain.ECONFLICT, "", "Payment transaction is already in the requested status")
	ErrTransactionStatusNotAllowed = domain.Errorf(domain.ECONFLICT, "", "Payment transaction status does not allow this operation")
	ErrRefundExceedsRefundable     = domain.Errorf(domain.EINVALID, "", "Refund amount exceeds the refundable amount")
	ErrPaymentExceedsOutstanding   = domain.Errorf(domain.EINVALID, "", "Payment amount exceeds the outstanding amount")
	ErrInvalidAmount               = domain.Errorf(domain.EINVALID, "", "Amount must be greater than 0")
	ErrGatewayNotSupported         = domain.Errorf(domain.ENOTIMPL, "", "The payment method does not support this operation")
	ErrGatewayRejected             = domain.Errorf(domain.EPAYMENT, "", "The payment gateway rejected the operation")
)

// Fulfillment errors
var (
	ErrShippingNotRequired    = domain.Errorf(domain.EINVALID, "", "Order does not require shipping")
	ErrExceedsOrderedQuantity = domain.Errorf(domain.EINVALID, "", "Shipment quantity exceeds the open quantity")
	ErrItemAlreadyFulfilled   = domain.Errorf(domain.ECONFLICT, "", "Order item has no open quantity to ship")
	ErrNoItemsToShip          = domain.Errorf(domain.EINVALID, "", "No items to ship")
)
