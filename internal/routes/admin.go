package routes

import (
	"github.com/dukerupert/verdandi/internal/middleware"
	"github.com/dukerupert/verdandi/internal/router"
)

// RegisterAdminRoutes registers the admin JSON API.
// All routes are protected by the admin bearer token.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	admin := r.Group(middleware.RequireToken(deps.Token))

	// Orders
	orders := deps.OrderHandler
	admin.Get("/admin/orders", orders.List)
	admin.Get("/admin/orders/{id}", orders.Get)
	admin.Delete("/admin/orders/{id}", orders.Delete)
	admin.Post("/admin/orders/{id}/status", orders.SetStatus)
	admin.Post("/admin/orders/{id}/cancel", orders.Cancel)
	admin.Post("/admin/orders/{id}/check-status", orders.CheckStatus)

	// Order items
	admin.Post("/admin/orders/{id}/items", orders.InsertItem)
	admin.Put("/admin/orders/{id}/items/{itemID}", orders.UpdateItem)
	admin.Post("/admin/orders/{id}/items/{itemID}/cancel", orders.CancelItem)
	admin.Post("/admin/orders/{id}/items/{itemID}/return", orders.ReturnItem)

	// Shipments
	shipments := deps.ShipmentHandler
	admin.Post("/admin/orders/{id}/shipments", shipments.Create)
	admin.Post("/admin/shipments/{id}/ship", shipments.Ship)
	admin.Post("/admin/shipments/{id}/deliver", shipments.Deliver)

	// Payment transactions
	payments := deps.PaymentTransactionHandler
	admin.Get("/admin/payment-transactions/{id}", payments.Get)
	admin.Post("/admin/payment-transactions/{id}/capture", payments.Capture)
	admin.Post("/admin/payment-transactions/{id}/void", payments.Void)
	admin.Post("/admin/payment-transactions/{id}/refund", payments.Refund)
	admin.Post("/admin/payment-transactions/{id}/partial-refund", payments.PartiallyRefund)
	admin.Post("/admin/payment-transactions/{id}/mark-paid", payments.MarkAsPaid)
	admin.Post("/admin/payment-transactions/{id}/partially-paid", payments.PartiallyPaidOffline)
	admin.Post("/admin/payment-transactions/{id}/void-offline", payments.VoidOffline)
	admin.Post("/admin/payment-transactions/{id}/refund-offline", payments.RefundOffline)
	admin.Post("/admin/payment-transactions/{id}/partial-refund-offline", payments.PartiallyRefundOffline)

	// Loyalty
	loyalty := deps.LoyaltyHandler
	admin.Post("/admin/orders/{id}/loyalty/award", loyalty.Award)
	admin.Post("/admin/orders/{id}/loyalty/reduce", loyalty.Reduce)
	admin.Post("/admin/orders/{id}/loyalty/return-redeemed", loyalty.ReturnRedeemed)
	admin.Get("/admin/customers/{id}/loyalty", loyalty.Customer)
}
