package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for the order lifecycle.
// Order metrics carry a store_id label for per-store dashboards.
type BusinessMetrics struct {
	// Order lifecycle
	OrderStatusTransitions *prometheus.CounterVec
	OrdersCancelled        *prometheus.CounterVec
	OrdersDeleted          *prometheus.CounterVec
	OrderItemsCancelled    *prometheus.CounterVec
	OrderItemsInserted     *prometheus.CounterVec
	ShipmentsCreated       *prometheus.CounterVec

	// Cascade
	CascadeStepFailures *prometheus.CounterVec
	CascadeDuration     *prometheus.HistogramVec

	// Payment transactions
	PaymentOperations *prometheus.CounterVec
	RevenueCollected  *prometheus.CounterVec
	RefundAmount      *prometheus.HistogramVec
	GatewayLatency    *prometheus.HistogramVec

	// Loyalty
	LoyaltyPointsAwarded  *prometheus.CounterVec
	LoyaltyPointsReduced  *prometheus.CounterVec
	LoyaltyPointsReturned *prometheus.CounterVec

	// Side channels
	NotificationFailures *prometheus.CounterVec
	EventPublishFailures *prometheus.CounterVec

	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookFailed   *prometheus.CounterVec
	WebhookLatency  *prometheus.HistogramVec

	// Background jobs
	JobsProcessed *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
}

// NewBusinessMetrics registers the metrics with the default registry.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "verdandi"
	}

	subsystem := "business"

	m := &BusinessMetrics{
		// =======================================================================
		// Order Lifecycle
		// =======================================================================
		OrderStatusTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_status_transitions_total",
				Help:      "Persisted order status changes",
			},
			[]string{"store_id", "from", "to"},
		),
		OrdersCancelled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_cancelled_total",
				Help:      "Orders moved to cancelled",
			},
			[]string{"store_id"},
		),
		OrdersDeleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_deleted_total",
				Help:      "Orders soft-deleted",
			},
			[]string{"store_id"},
		),
		OrderItemsCancelled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_item_units_cancelled_total",
				Help:      "Order item units cancelled individually",
			},
			[]string{"store_id"},
		),
		OrderItemsInserted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_items_inserted_total",
				Help:      "Order items added after checkout",
			},
			[]string{"store_id"},
		),
		ShipmentsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "shipments_created_total",
				Help:      "Shipments created",
			},
			[]string{"store_id"},
		),

		// =======================================================================
		// Cascade
		// =======================================================================
		CascadeStepFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cascade_step_failures_total",
				Help:      "Cancellation or deletion cascade steps that failed and were skipped",
			},
			[]string{"operation", "step"},
		),
		CascadeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cascade_duration_seconds",
				Help:      "Time spent running a cascade",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),

		// =======================================================================
		// Payment Transactions
		// =======================================================================
		PaymentOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_operations_total",
				Help:      "Payment transaction operations by outcome",
			},
			[]string{"operation", "result"}, // result: success, rejected, gateway_error, error
		),
		RevenueCollected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "revenue_collected_total",
				Help:      "Amount recorded as paid, in transaction currency units",
			},
			[]string{"store_id", "currency"},
		),
		RefundAmount: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refund_amount",
				Help:      "Refunded amount per operation",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"store_id", "currency"},
		),
		GatewayLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gateway_duration_seconds",
				Help:      "Payment gateway call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),

		// =======================================================================
		// Loyalty
		// =======================================================================
		LoyaltyPointsAwarded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "loyalty_points_awarded_total",
				Help:      "Points credited for purchases",
			},
			[]string{"store_id"},
		),
		LoyaltyPointsReduced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "loyalty_points_reduced_total",
				Help:      "Points taken back after cancellation",
			},
			[]string{"store_id"},
		),
		LoyaltyPointsReturned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "loyalty_points_returned_total",
				Help:      "Redeemed points given back after cancellation",
			},
			[]string{"store_id"},
		),

		// =======================================================================
		// Side Channels
		// =======================================================================
		NotificationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "notification_failures_total",
				Help:      "Customer notifications that could not be queued",
			},
			[]string{"kind"},
		),
		EventPublishFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "event_publish_failures_total",
				Help:      "Domain events that could not be published",
			},
			[]string{"event"},
		),

		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_received_total",
				Help:      "Gateway webhooks received",
			},
			[]string{"event_type"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhooks_failed_total",
				Help:      "Gateway webhooks that could not be applied",
			},
			[]string{"event_type", "reason"},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Webhook processing time",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"event_type"},
		),

		// =======================================================================
		// Background jobs
		// =======================================================================
		JobsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "processed_total",
				Help:      "Background jobs processed by type and result",
			},
			[]string{"job_type", "result"},
		),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "duration_seconds",
				Help:      "Background job processing time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job_type"},
		),
	}

	return m
}

// Global instance for easy access from services and handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
