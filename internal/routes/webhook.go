package routes

import (
	"github.com/dukerupert/verdandi/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Webhook routes do NOT have authentication middleware. Each webhook
// handler verifies the request signature itself.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	if deps.StripeHandler != nil {
		r.Post("/webhooks/stripe", deps.StripeHandler.HandleWebhook)
	}
}

// RegisterOpsRoutes registers health and metrics. Metrics should be
// firewalled in production.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	if deps.HealthHandler != nil {
		r.Handle("GET", "/health", deps.HealthHandler)
	}
	if deps.MetricsHandler != nil {
		r.Handle("GET", "/metrics", deps.MetricsHandler)
	}
}
