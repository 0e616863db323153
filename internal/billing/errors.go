package billing

import (
	"errors"
	"fmt"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/stripe/stripe-go/v83"
)

var (
	// ErrInvalidAPIKey is returned when Stripe API key is invalid or missing.
	ErrInvalidAPIKey = domain.Errorf(domain.EINVALID, "billing.config", "invalid or missing Stripe API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = domain.Errorf(domain.EUNAUTHORIZED, "billing.webhook", "invalid webhook signature")

	// ErrMissingPaymentIntent is returned when a transaction has no authorization id to act on.
	ErrMissingPaymentIntent = domain.Errorf(domain.EINVALID, "billing.stripe", "transaction has no payment intent")

	// ErrUnknownPaymentMethod is returned when no gateway is registered for a method.
	ErrUnknownPaymentMethod = domain.Errorf(domain.ENOTIMPL, "billing.gateway", "no gateway registered for payment method")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Type          string // Stripe error type (e.g., "card_error")
	Code          string // Stripe error code (e.g., "card_declined")
	DeclineCode   string // Card decline reason (if applicable)
	HTTPStatus    int    // HTTP status code from Stripe
	RequestID     string // Stripe request ID for debugging
	OriginalError error  // Original error from Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsDeclined returns true if error is due to card decline.
func (e *StripeError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != "" || e.Type == string(stripe.ErrorTypeCard)
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error" || e.HTTPStatus == 429 || e.HTTPStatus >= 500
}

// IsRefusal reports whether Stripe understood the request and said no. A
// refusal is recorded on the transaction; anything else is an outage.
func (e *StripeError) IsRefusal() bool {
	if e.IsTemporary() {
		return false
	}
	return e.IsDeclined() || e.Type == string(stripe.ErrorTypeInvalidRequest) || e.HTTPStatus == 402
}

// wrapStripeError converts SDK errors into StripeError. Other errors pass through.
func wrapStripeError(err error) error {
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}
	return &StripeError{
		Message:       se.Msg,
		Type:          string(se.Type),
		Code:          string(se.Code),
		DeclineCode:   string(se.DeclineCode),
		HTTPStatus:    se.HTTPStatusCode,
		RequestID:     se.RequestID,
		OriginalError: err,
	}
}
