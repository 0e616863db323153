package billing

import (
	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// VerifyWebhook checks the Stripe-Signature header against secret and parses
// the event. Events from other API versions are accepted; the handler only
// reads fields that are stable across versions.
func VerifyWebhook(payload []byte, signatureHeader, secret string) (stripe.Event, error) {
	if secret == "" || signatureHeader == "" {
		return stripe.Event{}, ErrInvalidWebhookSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, domain.WrapError(err, domain.EUNAUTHORIZED, "billing.webhook", "invalid webhook signature")
	}
	return event, nil
}
