package billing

import (
	"errors"
	"strings"
)

// DefaultStripeMethod is the payment method name Stripe transactions carry.
const DefaultStripeMethod = "payments.stripe"

// StripeConfig contains configuration for the Stripe gateway.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	// Used to verify webhook signatures from Stripe
	WebhookSecret string

	// PaymentMethod is the method name the gateway is registered under.
	// Default: payments.stripe
	PaymentMethod string

	// DisablePartialRefunds turns off partial refunds for stores that only
	// refund whole orders.
	DisablePartialRefunds bool

	// MaxRetries is the maximum number of retries for transient failures
	// Default: 2. Negative disables retries.
	MaxRetries int

	// TimeoutSeconds is the HTTP timeout for Stripe API calls in seconds
	// Default: 30
	TimeoutSeconds int

	// APIBaseURL overrides the Stripe API endpoint, e.g. for stripe-mock.
	APIBaseURL string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return ErrInvalidAPIKey
	}
	if !strings.HasPrefix(c.APIKey, "sk_") && !strings.HasPrefix(c.APIKey, "rk_") {
		return ErrInvalidAPIKey
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_") || strings.HasPrefix(c.APIKey, "rk_test_")
}

func (c *StripeConfig) withDefaults() StripeConfig {
	out := *c
	if out.PaymentMethod == "" {
		out.PaymentMethod = DefaultStripeMethod
	}
	switch {
	case out.MaxRetries == 0:
		out.MaxRetries = 2
	case out.MaxRetries < 0:
		out.MaxRetries = 0
	}
	if out.TimeoutSeconds <= 0 {
		out.TimeoutSeconds = 30
	}
	return out
}
