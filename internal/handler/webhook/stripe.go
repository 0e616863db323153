package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/verdandi/internal/billing"
	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/handler"
	"github.com/dukerupert/verdandi/internal/service"
	"github.com/dukerupert/verdandi/internal/telemetry"
	"github.com/stripe/stripe-go/v83"
)

const (
	eventAmountCapturable = "payment_intent.amount_capturable_updated"
	eventSucceeded        = "payment_intent.succeeded"
	eventCanceled         = "payment_intent.canceled"

	// metadataTransactionID is set on every PaymentIntent created for a
	// payment transaction.
	metadataTransactionID = "transaction_id"

	maxPayloadBytes = 64 * 1024
)

// StripeHandler applies Stripe PaymentIntent events to payment transactions.
type StripeHandler struct {
	payments      service.PaymentTransactionService
	webhookSecret string
	logger        *slog.Logger
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(payments service.PaymentTransactionService, webhookSecret string, logger *slog.Logger) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		payments:      payments,
		webhookSecret: webhookSecret,
		logger:        logger.With("component", "stripe_webhook"),
	}
}

// HandleWebhook verifies and applies one event.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
//
// Events that cannot apply to the transaction in its current state are
// acknowledged with 200 so Stripe stops retrying; only internal failures
// answer 500.
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.stripe", "error reading request body"))
		return
	}
	if len(payload) > maxPayloadBytes {
		handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, "webhook.stripe", "payload too large"))
		return
	}

	event, err := billing.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature rejected", "error", err)
		handler.ErrorResponse(w, r, err)
		return
	}

	eventType := string(event.Type)
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(eventType).Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		}()
	}

	logger := h.logger.With("event_id", event.ID, "event_type", eventType)
	if err := h.apply(r.Context(), logger, event); err != nil {
		if telemetry.Business != nil {
			telemetry.Business.WebhookFailed.WithLabelValues(eventType, domain.ErrorCode(err)).Inc()
		}
		if domain.ErrorCode(err) == domain.EINTERNAL {
			telemetry.CaptureError(r.Context(), err, map[string]string{"event_type": eventType}, map[string]interface{}{"event_id": event.ID})
			handler.ErrorResponse(w, r, err)
			return
		}
		logger.InfoContext(r.Context(), "webhook event not applied", "error", err)
	}

	handler.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *StripeHandler) apply(ctx context.Context, logger *slog.Logger, event stripe.Event) error {
	switch event.Type {
	case eventAmountCapturable, eventSucceeded, eventCanceled:
	default:
		logger.DebugContext(ctx, "ignoring event type")
		return nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return domain.Errorf(domain.EINVALID, "webhook.stripe", "malformed payment intent: %v", err)
	}

	tx, err := h.findTransaction(ctx, &pi)
	if err != nil {
		return err
	}
	logger = logger.With("transaction_id", tx.ID, "payment_intent", pi.ID, "status", tx.Status)

	switch event.Type {
	case eventAmountCapturable:
		if !tx.CanMarkAsAuthorized() {
			logger.InfoContext(ctx, "authorization already recorded")
			return nil
		}
		_, err = h.payments.MarkAsAuthorized(ctx, tx.ID, pi.ID)

	case eventSucceeded:
		switch {
		case tx.CanMarkAsCaptured():
			// Captured from the dashboard or by automatic capture.
			_, err = h.payments.MarkAsCaptured(ctx, tx.ID, chargeReference(&pi))
		case tx.CanMarkPaymentTransactionAsPaid():
			_, err = h.payments.MarkAsPaid(ctx, tx.ID)
		default:
			logger.InfoContext(ctx, "payment already settled")
			return nil
		}

	case eventCanceled:
		if !tx.CanVoidOffline() {
			logger.InfoContext(ctx, "transaction cannot be voided")
			return nil
		}
		_, err = h.payments.VoidOffline(ctx, tx.ID)
	}
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "webhook event applied")
	return nil
}

func chargeReference(pi *stripe.PaymentIntent) string {
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		return pi.LatestCharge.ID
	}
	return pi.ID
}

// findTransaction resolves the transaction from the intent's metadata, then
// from the stored authorization id.
func (h *StripeHandler) findTransaction(ctx context.Context, pi *stripe.PaymentIntent) (*domain.PaymentTransaction, error) {
	if id := pi.Metadata[metadataTransactionID]; id != "" {
		return h.payments.GetTransaction(ctx, id)
	}
	if pi.ID == "" {
		return nil, billing.ErrMissingPaymentIntent
	}
	return h.payments.GetByAuthorizationTransactionID(ctx, pi.ID)
}
