// Package invoice renders order invoices as PDF and stores them.
package invoice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/storage"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// Generator implements domain.InvoiceGenerator.
type Generator struct {
	store     storage.Storage
	storeName string
	logger    *slog.Logger
	now       func() time.Time
}

func NewGenerator(store storage.Storage, storeName string, logger *slog.Logger) *Generator {
	return &Generator{store: store, storeName: storeName, logger: logger, now: time.Now}
}

var _ domain.InvoiceGenerator = (*Generator)(nil)

// Key is where the invoice of order is stored.
func Key(order *domain.Order) string {
	return fmt.Sprintf("invoices/%s/%d.pdf", order.OrderGUID, order.OrderNumber)
}

// Generate renders the invoice, uploads it and returns its URL.
func (g *Generator) Generate(ctx context.Context, order *domain.Order) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, order, g.storeName, g.now()); err != nil {
		return "", err
	}

	url, err := g.store.Put(ctx, Key(order), bytes.NewReader(buf.Bytes()), "application/pdf")
	if err != nil {
		return "", domain.WrapError(err, domain.EINTERNAL, "invoice.generate", "failed to store invoice")
	}
	g.logger.Info("invoice generated", "order_id", order.ID, "order_number", order.OrderNumber, "bytes", buf.Len())
	return url, nil
}

// Render writes the invoice PDF for order to w.
func Render(w *bytes.Buffer, order *domain.Order, storeName string, issuedAt time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(issuedAt)
	pdf.SetModificationDate(issuedAt)
	pdf.SetTitle(fmt.Sprintf("Invoice %d", order.OrderNumber), true)
	pdf.SetAuthor(storeName, true)
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(storeName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Invoice for order #%d", order.OrderNumber), "", 1, "L", false, 0, "")
	if order.Code != "" {
		pdf.CellFormat(0, 6, "Order code: "+order.Code, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Issued: "+issuedAt.UTC().Format("2006-01-02"), "", 1, "L", false, 0, "")
	if order.CustomerEmail != "" {
		pdf.CellFormat(0, 6, tr("Bill to: "+order.CustomerEmail), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	widths := []float64{90, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range []string{"Item", "Qty", "Unit price", "Total"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "B", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range order.Items {
		qty := item.Quantity - item.CancelQty
		if qty <= 0 {
			continue
		}
		name := item.ProductName
		if name == "" {
			name = item.SKU
		}
		pdf.CellFormat(widths[0], 7, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprint(qty), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, money(item.UnitPriceInclTax, order.CurrencyCode), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money(item.UnitPriceInclTax.Mul(decimal.NewFromInt(int64(qty))), order.CurrencyCode), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	totals := []struct {
		label  string
		amount decimal.Decimal
		skip   bool
	}{
		{"Subtotal", order.OrderSubtotal, false},
		{"Shipping", order.OrderShipping, order.OrderShipping.IsZero()},
		{"Discount", order.OrderDiscount.Neg(), order.OrderDiscount.IsZero()},
		{"Tax", order.OrderTax, false},
		{"Loyalty points", order.RedeemedLoyaltyPointsAmount.Neg(), order.RedeemedLoyaltyPointsAmount.IsZero()},
		{"Total", order.OrderTotal, false},
		{"Paid", order.PaidAmount, false},
		{"Refunded", order.RefundedAmount.Neg(), order.RefundedAmount.IsZero()},
	}
	labelWidth := widths[0] + widths[1] + widths[2]
	for _, t := range totals {
		if t.skip {
			continue
		}
		style := ""
		if t.label == "Total" {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(labelWidth, 7, t.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money(t.amount, order.CurrencyCode), "", 1, "R", false, 0, "")
	}

	for _, tax := range order.Taxes {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s %s%%: %s", tax.Name, tax.Rate.StringFixed(2), money(tax.Amount, order.CurrencyCode))), "", 1, "R", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return domain.Internal(err, "invoice.render", "failed to render invoice")
	}
	return nil
}

func money(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + currency
}
