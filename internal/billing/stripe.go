package billing

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"
)

// StripeGateway implements domain.PaymentGateway on Stripe PaymentIntents.
// A transaction's AuthorizationTransactionID holds the PaymentIntent id; it
// is set when the intent reaches requires_capture (see the webhook handler).
type StripeGateway struct {
	config  StripeConfig
	intents paymentintent.Client
	refunds refund.Client
	logger  *slog.Logger
}

var _ domain.PaymentGateway = (*StripeGateway)(nil)

// NewStripeGateway creates a gateway with its own API backend, so the
// process-wide stripe.Key is never touched.
func NewStripeGateway(cfg StripeConfig, logger *slog.Logger) (*StripeGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		MaxNetworkRetries: stripe.Int64(int64(cfg.MaxRetries)),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIBaseURL != "" {
		backendConfig.URL = stripe.String(cfg.APIBaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	return &StripeGateway{
		config:  cfg,
		intents: paymentintent.Client{B: backend, Key: cfg.APIKey},
		refunds: refund.Client{B: backend, Key: cfg.APIKey},
		logger:  logger,
	}, nil
}

// Method is the payment method name to register the gateway under.
func (g *StripeGateway) Method() string {
	return g.config.PaymentMethod
}

func (g *StripeGateway) Capabilities(string) domain.GatewayCapabilities {
	return domain.GatewayCapabilities{
		Capture:       true,
		Void:          true,
		Refund:        true,
		PartialRefund: !g.config.DisablePartialRefunds,
	}
}

// Capture captures the outstanding amount of an authorized PaymentIntent.
func (g *StripeGateway) Capture(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
	if tx.AuthorizationTransactionID == "" {
		return nil, ErrMissingPaymentIntent
	}
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(MinorUnits(tx.OutstandingAmount(), tx.CurrencyCode)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("capture:" + tx.ID)
	params.AddMetadata("transaction_id", tx.ID)
	params.AddMetadata("order_guid", tx.OrderGUID)

	pi, err := g.intents.Capture(tx.AuthorizationTransactionID, params)
	if err != nil {
		return g.failure("capture", tx, err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &domain.GatewayResult{Errors: []string{"payment intent is " + string(pi.Status) + " after capture"}}, nil
	}

	result := &domain.GatewayResult{NewStatus: domain.TransactionStatusPaid, TransactionID: pi.ID}
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		result.TransactionID = pi.LatestCharge.ID
	}
	g.logger.Info("stripe capture succeeded", "transaction_id", tx.ID, "payment_intent", pi.ID)
	return result, nil
}

// Void cancels an uncaptured PaymentIntent. A captured one cannot be
// cancelled in Stripe, so voiding a paid transaction refunds it in full.
func (g *StripeGateway) Void(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
	if tx.AuthorizationTransactionID == "" {
		return nil, ErrMissingPaymentIntent
	}

	if tx.Status == domain.TransactionStatusPaid {
		r, err := g.createRefund(ctx, tx, tx.RefundableAmount(), "void")
		if err != nil {
			return g.failure("void", tx, err)
		}
		if msg := refundFailure(r); msg != "" {
			return &domain.GatewayResult{Errors: []string{msg}}, nil
		}
		return &domain.GatewayResult{NewStatus: domain.TransactionStatusVoided, TransactionID: r.ID}, nil
	}

	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("void:" + tx.ID)

	pi, err := g.intents.Cancel(tx.AuthorizationTransactionID, params)
	if err != nil {
		return g.failure("void", tx, err)
	}
	if pi.Status != stripe.PaymentIntentStatusCanceled {
		return &domain.GatewayResult{Errors: []string{"payment intent is " + string(pi.Status) + " after cancel"}}, nil
	}
	g.logger.Info("stripe void succeeded", "transaction_id", tx.ID, "payment_intent", pi.ID)
	return &domain.GatewayResult{NewStatus: domain.TransactionStatusVoided, TransactionID: pi.ID}, nil
}

// Refund refunds req.Amount of the captured charge.
func (g *StripeGateway) Refund(ctx context.Context, req domain.RefundRequest) (*domain.GatewayResult, error) {
	tx := req.Transaction
	if tx == nil || tx.AuthorizationTransactionID == "" {
		return nil, ErrMissingPaymentIntent
	}
	if req.IsPartial && g.config.DisablePartialRefunds {
		return &domain.GatewayResult{Errors: []string{"partial refunds are disabled"}}, nil
	}

	r, err := g.createRefund(ctx, tx, req.Amount, "refund")
	if err != nil {
		return g.failure("refund", tx, err)
	}
	if msg := refundFailure(r); msg != "" {
		return &domain.GatewayResult{Errors: []string{msg}}, nil
	}

	status := domain.TransactionStatusRefunded
	if req.Amount.LessThan(tx.RefundableAmount()) {
		status = domain.TransactionStatusPartiallyRefunded
	}
	g.logger.Info("stripe refund created",
		"transaction_id", tx.ID,
		"refund_id", r.ID,
		"amount", req.Amount.String(),
		"refund_status", r.Status,
	)
	return &domain.GatewayResult{NewStatus: status, TransactionID: r.ID}, nil
}

func (g *StripeGateway) createRefund(ctx context.Context, tx *domain.PaymentTransaction, amount decimal.Decimal, op string) (*stripe.Refund, error) {
	cents := MinorUnits(amount, tx.CurrencyCode)
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(tx.AuthorizationTransactionID),
		Amount:        stripe.Int64(cents),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	// Refunding the same amount twice after a crash must not double-refund.
	params.SetIdempotencyKey(op + ":" + tx.ID + ":" + tx.RefundedAmount.String() + ":" + amount.String())
	params.AddMetadata("transaction_id", tx.ID)
	params.AddMetadata("order_guid", tx.OrderGUID)
	return g.refunds.New(params)
}

func refundFailure(r *stripe.Refund) string {
	switch r.Status {
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		msg := "refund " + r.ID + " is " + string(r.Status)
		if r.FailureReason != "" {
			msg += ": " + string(r.FailureReason)
		}
		return msg
	}
	return ""
}

// failure turns refusals into a GatewayResult so the engine records them on
// the transaction. Outages are returned as errors.
func (g *StripeGateway) failure(op string, tx *domain.PaymentTransaction, err error) (*domain.GatewayResult, error) {
	err = wrapStripeError(err)
	if se, ok := err.(*StripeError); ok && se.IsRefusal() {
		g.logger.Warn("stripe refused operation",
			"operation", op,
			"transaction_id", tx.ID,
			"code", se.Code,
			"request_id", se.RequestID,
		)
		return &domain.GatewayResult{Errors: []string{se.Message}}, nil
	}
	g.logger.Error("stripe call failed", "operation", op, "transaction_id", tx.ID, "error", err)
	return nil, err
}

// zeroDecimal lists currencies Stripe charges in whole units.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// MinorUnits converts amount into the integer unit Stripe expects for currency.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimal[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}
