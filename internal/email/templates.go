package email

import (
	"fmt"
	"strings"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/shopspring/decimal"
)

// EmailTemplate defines the interface for email templates
type EmailTemplate interface {
	Subject() string
	TemplateName() string
	Recipient() string
}

// OrderLine is one rendered order item.
type OrderLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Total    string `json:"total"`
}

// OrderSummary is the order data every order email renders. Amounts are
// preformatted in the order currency.
type OrderSummary struct {
	OrderNumber  int         `json:"order_number"`
	Code         string      `json:"code"`
	CustomerName string      `json:"customer_name"`
	Email        string      `json:"email"`
	StoreName    string      `json:"store_name"`
	Lines        []OrderLine `json:"lines"`
	Total        string      `json:"total"`
	Paid         string      `json:"paid"`
}

// FormatMoney renders amount with two decimals and the currency code.
func FormatMoney(amount decimal.Decimal, currencyCode string) string {
	s := amount.StringFixed(2)
	if currencyCode == "" {
		return s
	}
	return s + " " + strings.ToUpper(currencyCode)
}

// SummarizeOrder builds the summary from an order. Cancelled units are left out.
func SummarizeOrder(order *domain.Order, customerName, storeName string) OrderSummary {
	s := OrderSummary{
		OrderNumber:  order.OrderNumber,
		Code:         order.Code,
		CustomerName: customerName,
		Email:        order.CustomerEmail,
		StoreName:    storeName,
		Total:        FormatMoney(order.OrderTotal, order.CurrencyCode),
		Paid:         FormatMoney(order.PaidAmount, order.CurrencyCode),
	}
	if s.CustomerName == "" {
		s.CustomerName = "there"
	}
	for _, item := range order.Items {
		qty := item.Quantity - item.CancelQty
		if qty <= 0 {
			continue
		}
		name := item.ProductName
		if name == "" {
			name = item.SKU
		}
		s.Lines = append(s.Lines, OrderLine{
			Name:     name,
			Quantity: qty,
			Total:    FormatMoney(item.PriceInclTax, order.CurrencyCode),
		})
	}
	return s
}

// OrderCompletedEmail is sent when an order reaches complete.
type OrderCompletedEmail struct {
	Order      OrderSummary `json:"order"`
	InvoiceURL string       `json:"invoice_url,omitempty"`
}

func (e OrderCompletedEmail) Subject() string {
	return fmt.Sprintf("Order #%d is complete", e.Order.OrderNumber)
}

func (e OrderCompletedEmail) TemplateName() string { return "order_completed.html" }
func (e OrderCompletedEmail) Recipient() string    { return e.Order.Email }

// OrderCancelledEmail is sent after the cancellation cascade.
type OrderCancelledEmail struct {
	Order OrderSummary `json:"order"`
}

func (e OrderCancelledEmail) Subject() string {
	return fmt.Sprintf("Order #%d has been cancelled", e.Order.OrderNumber)
}

func (e OrderCancelledEmail) TemplateName() string { return "order_cancelled.html" }
func (e OrderCancelledEmail) Recipient() string    { return e.Order.Email }

// OrderPaidEmail confirms a received payment.
type OrderPaidEmail struct {
	Order OrderSummary `json:"order"`
}

func (e OrderPaidEmail) Subject() string {
	return fmt.Sprintf("Payment received for order #%d", e.Order.OrderNumber)
}

func (e OrderPaidEmail) TemplateName() string { return "order_paid.html" }
func (e OrderPaidEmail) Recipient() string    { return e.Order.Email }

// OrderRefundedEmail reports a full or partial refund.
type OrderRefundedEmail struct {
	Order   OrderSummary `json:"order"`
	Amount  string       `json:"amount"`
	Partial bool         `json:"partial"`
}

func (e OrderRefundedEmail) Subject() string {
	return fmt.Sprintf("Refund issued for order #%d", e.Order.OrderNumber)
}

func (e OrderRefundedEmail) TemplateName() string { return "order_refunded.html" }
func (e OrderRefundedEmail) Recipient() string    { return e.Order.Email }

// PaymentVoidedEmail reports a released authorization.
type PaymentVoidedEmail struct {
	Order         OrderSummary `json:"order"`
	PaymentMethod string       `json:"payment_method"`
}

func (e PaymentVoidedEmail) Subject() string {
	return fmt.Sprintf("Payment voided for order #%d", e.Order.OrderNumber)
}

func (e PaymentVoidedEmail) TemplateName() string { return "payment_voided.html" }
func (e PaymentVoidedEmail) Recipient() string    { return e.Order.Email }
