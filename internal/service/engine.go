package service

import (
	"context"
	"log/slog"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// Dependencies are the collaborators shared by the lifecycle services.
// Repositories and Inventory are required; the rest fall back to no-ops.
type Dependencies struct {
	Orders       domain.OrderRepository
	Transactions domain.PaymentTransactionRepository
	Shipments    domain.ShipmentRepository
	Loyalty      domain.LoyaltyPointsRepository
	GiftVouchers domain.GiftVoucherRepository
	Customers    domain.CustomerRepository
	Currencies   domain.CurrencyService

	Gateway      domain.PaymentGateway
	Inventory    domain.InventoryService
	Reservations domain.ReservationService
	Auctions     domain.AuctionService
	Discounts    domain.DiscountService

	Notifier domain.Notifier
	Events   domain.EventPublisher
	Invoices domain.InvoiceGenerator
	Locker   domain.OrderLocker
	Tx       domain.Transactor

	OrderSettings   domain.OrderSettings
	LoyaltySettings domain.LoyaltyPointsSettings

	Logger *slog.Logger
}

// engine holds the behavior shared by every command handler: loading,
// locking, the order status policy and the side channels.
type engine struct {
	Dependencies
	logger *slog.Logger
}

func newEngine(deps Dependencies) (*engine, error) {
	if deps.Orders == nil {
		return nil, ErrMissingOrderRepository
	}
	if deps.Transactions == nil {
		return nil, ErrMissingTransactionRepository
	}
	if deps.Shipments == nil {
		return nil, ErrMissingShipmentRepository
	}
	if deps.Loyalty == nil {
		return nil, ErrMissingLoyaltyRepository
	}
	if deps.Inventory == nil {
		return nil, ErrMissingInventoryService
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Tx == nil {
		deps.Tx = passthroughTx{}
	}
	if deps.OrderSettings.LengthCode <= 0 {
		deps.OrderSettings.LengthCode = domain.DefaultOrderSettings().LengthCode
	}

	return &engine{Dependencies: deps, logger: logger}, nil
}

// passthroughTx runs fn directly when no database transaction is available.
type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// lock serializes commands on key when a locker is configured.
func (e *engine) lock(ctx context.Context, key string) (func(), error) {
	if e.Locker == nil {
		return func() {}, nil
	}
	unlock, err := e.Locker.Lock(ctx, key)
	if err != nil {
		return nil, domain.WrapError(err, domain.ECONFLICT, "order.lock", ErrOrderLocked.Error())
	}
	return unlock, nil
}

func orderLockKey(orderID string) string {
	return "order:" + orderID
}

// loadOrder fetches an order for a mutating command.
func (e *engine) loadOrder(ctx context.Context, op, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, domain.Invalid(op, "order id is required")
	}
	order, err := e.Orders.GetByID(ctx, orderID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrOrderNotFound
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	if order.Deleted {
		return nil, domain.ErrOrderDeleted
	}
	return order, nil
}

// updateOrder persists the order, mapping repository errors onto domain codes.
func (e *engine) updateOrder(ctx context.Context, op string, order *domain.Order) error {
	if err := e.Orders.Update(ctx, order); err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			return err
		}
		return domain.Internal(err, op, "failed to save order")
	}
	return nil
}

// publish sends an event; failures are logged and counted, never returned.
func (e *engine) publish(ctx context.Context, event domain.Event) {
	if e.Events == nil {
		return
	}
	if err := e.Events.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish event", "event", event.EventName(), "error", err)
		if telemetry.Business != nil {
			telemetry.Business.EventPublishFailures.WithLabelValues(event.EventName()).Inc()
		}
	}
}

// notify runs a fire-and-forget notification.
func (e *engine) notify(ctx context.Context, kind, orderID string, send func(n domain.Notifier) error) {
	if e.Notifier == nil {
		return
	}
	if err := send(e.Notifier); err != nil {
		e.logger.Error("failed to queue notification", "kind", kind, "order_id", orderID, "error", err)
		if telemetry.Business != nil {
			telemetry.Business.NotificationFailures.WithLabelValues(kind).Inc()
		}
		telemetry.CaptureError(ctx, err, map[string]string{"notification": kind}, map[string]interface{}{"order_id": orderID})
	}
}
