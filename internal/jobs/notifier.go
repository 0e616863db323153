package jobs

import (
	"context"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/email"
	"github.com/shopspring/decimal"
)

// Notifier implements domain.Notifier by queueing email jobs. Delivery
// happens later in the worker, so a slow mail server never blocks an order
// command.
type Notifier struct {
	queue     Enqueuer
	customers domain.CustomerRepository
	storeName string
}

func NewNotifier(queue Enqueuer, customers domain.CustomerRepository, storeName string) *Notifier {
	return &Notifier{queue: queue, customers: customers, storeName: storeName}
}

var _ domain.Notifier = (*Notifier)(nil)

// summary resolves the customer's name; a missing customer still gets mail
// at the order's address.
func (n *Notifier) summary(ctx context.Context, order *domain.Order) email.OrderSummary {
	name := ""
	if n.customers != nil && order.CustomerID != "" {
		if c, err := n.customers.GetByID(ctx, order.CustomerID); err == nil {
			name = c.FullName()
		}
	}
	return email.SummarizeOrder(order, name, n.storeName)
}

func (n *Notifier) OrderCompleted(ctx context.Context, order *domain.Order, invoiceURL string) error {
	return EnqueueOrderCompletedEmail(ctx, n.queue, email.OrderCompletedEmail{
		Order:      n.summary(ctx, order),
		InvoiceURL: invoiceURL,
	})
}

func (n *Notifier) OrderCancelled(ctx context.Context, order *domain.Order) error {
	return EnqueueOrderCancelledEmail(ctx, n.queue, email.OrderCancelledEmail{Order: n.summary(ctx, order)})
}

func (n *Notifier) OrderPaid(ctx context.Context, order *domain.Order) error {
	return EnqueueOrderPaidEmail(ctx, n.queue, email.OrderPaidEmail{Order: n.summary(ctx, order)})
}

func (n *Notifier) OrderRefunded(ctx context.Context, order *domain.Order, amount decimal.Decimal) error {
	return EnqueueOrderRefundedEmail(ctx, n.queue, email.OrderRefundedEmail{
		Order:   n.summary(ctx, order),
		Amount:  email.FormatMoney(amount, order.CurrencyCode),
		Partial: order.RefundedAmount.LessThan(order.PaidAmount),
	})
}

func (n *Notifier) PaymentVoided(ctx context.Context, order *domain.Order, tx *domain.PaymentTransaction) error {
	return EnqueuePaymentVoidedEmail(ctx, n.queue, email.PaymentVoidedEmail{
		Order:         n.summary(ctx, order),
		PaymentMethod: tx.PaymentMethod,
	})
}
