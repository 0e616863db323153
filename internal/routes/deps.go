package routes

import (
	"net/http"

	"github.com/dukerupert/verdandi/internal/handler/admin"
	"github.com/dukerupert/verdandi/internal/handler/webhook"
)

// AdminDeps contains dependencies for admin routes
type AdminDeps struct {
	// Bearer token required on every admin route. Empty disables the check.
	Token string

	OrderHandler              *admin.OrderHandler
	PaymentTransactionHandler *admin.PaymentTransactionHandler
	ShipmentHandler           *admin.ShipmentHandler
	LoyaltyHandler            *admin.LoyaltyHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	// Nil when Stripe is not configured; the route is then not registered.
	StripeHandler *webhook.StripeHandler
}

// OpsDeps contains the unauthenticated operational endpoints.
type OpsDeps struct {
	HealthHandler  http.Handler
	MetricsHandler http.Handler
}
