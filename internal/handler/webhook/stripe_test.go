package webhook

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v83/webhook"
)

const testSecret = "whsec_test_secret"

func eventPayload(eventType, intentID string, metadata map[string]string) []byte {
	meta := make([]string, 0, len(metadata))
	for k, v := range metadata {
		meta = append(meta, fmt.Sprintf("%q:%q", k, v))
	}
	return []byte(fmt.Sprintf(`{
		"id": "evt_test",
		"object": "event",
		"api_version": "2024-06-20",
		"type": %q,
		"data": {"object": {"id": %q, "object": "payment_intent", "amount": 4250, "currency": "usd", "metadata": {%s}}}
	}`, eventType, intentID, strings.Join(meta, ",")))
}

func signedRequest(t *testing.T, payload []byte, secret string) *http.Request {
	t.Helper()
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func txInStatus(status domain.TransactionStatus) func(context.Context, string) (*domain.PaymentTransaction, error) {
	return func(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
		return &domain.PaymentTransaction{ID: id, Status: status, TransactionAmount: decimal.New(4250, -2)}, nil
	}
}

func serve(h *StripeHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	payments := &service.MockPaymentTransactionService{}
	h := NewStripeHandler(payments, testSecret, nil)

	payload := eventPayload(eventSucceeded, "pi_1", nil)
	rec := serve(h, signedRequest(t, payload, "whsec_wrong"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	rec = serve(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing header")
	assert.Empty(t, payments.Calls)
}

func TestHandleWebhook_RejectsOversizedPayload(t *testing.T) {
	h := NewStripeHandler(&service.MockPaymentTransactionService{}, testSecret, nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(make([]byte, maxPayloadBytes+1)))
	rec := serve(h, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleWebhook_AppliesEvents(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		status    domain.TransactionStatus
		wantCalls []string
	}{
		{"authorization on pending", eventAmountCapturable, domain.TransactionStatusPending, []string{"MarkAsAuthorized:tx-1:pi_1"}},
		{"authorization already recorded", eventAmountCapturable, domain.TransactionStatusAuthorized, nil},
		{"succeeded on pending", eventSucceeded, domain.TransactionStatusPending, []string{"MarkAsPaid:tx-1"}},
		{"succeeded on partially paid", eventSucceeded, domain.TransactionStatusPartiallyPaid, []string{"MarkAsPaid:tx-1"}},
		{"succeeded on authorized records the outside capture", eventSucceeded, domain.TransactionStatusAuthorized, []string{"MarkAsCaptured:tx-1:pi_1"}},
		{"succeeded on paid is a replay", eventSucceeded, domain.TransactionStatusPaid, nil},
		{"canceled on authorized", eventCanceled, domain.TransactionStatusAuthorized, []string{"VoidOffline:tx-1"}},
		{"canceled on refunded", eventCanceled, domain.TransactionStatusRefunded, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payments := &service.MockPaymentTransactionService{
				GetTransactionFunc: txInStatus(tt.status),
				ActionFunc: func(ctx context.Context, action, id string) (*domain.PaymentTransaction, error) {
					return &domain.PaymentTransaction{ID: id}, nil
				},
				MarkAsAuthorizedFunc: func(ctx context.Context, id, authID string) (*domain.PaymentTransaction, error) {
					return &domain.PaymentTransaction{ID: id, AuthorizationTransactionID: authID}, nil
				},
				MarkAsCapturedFunc: func(ctx context.Context, id, captureID string) (*domain.PaymentTransaction, error) {
					return &domain.PaymentTransaction{ID: id, CaptureTransactionID: captureID}, nil
				},
			}
			h := NewStripeHandler(payments, testSecret, nil)

			payload := eventPayload(tt.eventType, "pi_1", map[string]string{"transaction_id": "tx-1"})
			rec := serve(h, signedRequest(t, payload, testSecret))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.JSONEq(t, `{"received":true}`, rec.Body.String())
			assert.Equal(t, tt.wantCalls, payments.Calls)
		})
	}
}

func TestHandleWebhook_FallsBackToAuthorizationID(t *testing.T) {
	var lookedUp string
	payments := &service.MockPaymentTransactionService{
		GetByAuthorizationTransactionIDFunc: func(ctx context.Context, authID string) (*domain.PaymentTransaction, error) {
			lookedUp = authID
			return &domain.PaymentTransaction{ID: "tx-7", Status: domain.TransactionStatusPending}, nil
		},
		ActionFunc: func(ctx context.Context, action, id string) (*domain.PaymentTransaction, error) {
			return &domain.PaymentTransaction{ID: id}, nil
		},
	}
	h := NewStripeHandler(payments, testSecret, nil)

	rec := serve(h, signedRequest(t, eventPayload(eventSucceeded, "pi_9", nil), testSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pi_9", lookedUp)
	assert.Equal(t, []string{"MarkAsPaid:tx-7"}, payments.Calls)
}

func TestHandleWebhook_OutsideCaptureUsesLatestCharge(t *testing.T) {
	payments := &service.MockPaymentTransactionService{
		GetTransactionFunc: txInStatus(domain.TransactionStatusAuthorized),
		MarkAsCapturedFunc: func(ctx context.Context, id, captureID string) (*domain.PaymentTransaction, error) {
			return &domain.PaymentTransaction{ID: id, CaptureTransactionID: captureID}, nil
		},
	}
	h := NewStripeHandler(payments, testSecret, nil)

	payload := []byte(`{
		"id": "evt_capture",
		"object": "event",
		"api_version": "2024-06-20",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_2", "object": "payment_intent", "latest_charge": "ch_42", "metadata": {"transaction_id": "tx-1"}}}
	}`)
	rec := serve(h, signedRequest(t, payload, testSecret))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"MarkAsCaptured:tx-1:ch_42"}, payments.Calls)
}

func TestHandleWebhook_IgnoresOtherEvents(t *testing.T) {
	payments := &service.MockPaymentTransactionService{}
	h := NewStripeHandler(payments, testSecret, nil)

	rec := serve(h, signedRequest(t, eventPayload("charge.refunded", "pi_1", nil), testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, payments.Calls)
}

func TestHandleWebhook_UnknownTransactionIsAcknowledged(t *testing.T) {
	payments := &service.MockPaymentTransactionService{
		GetTransactionFunc: func(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
			return nil, service.ErrPaymentTransactionNotFound
		},
	}
	h := NewStripeHandler(payments, testSecret, nil)

	payload := eventPayload(eventSucceeded, "pi_1", map[string]string{"transaction_id": "tx-gone"})
	rec := serve(h, signedRequest(t, payload, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleWebhook_InternalFailureAsksForRetry(t *testing.T) {
	payments := &service.MockPaymentTransactionService{
		GetTransactionFunc: txInStatus(domain.TransactionStatusPending),
		ActionFunc: func(ctx context.Context, action, id string) (*domain.PaymentTransaction, error) {
			return nil, domain.Internal(fmt.Errorf("connection reset"), "payment.mark_as_paid", "failed to save")
		},
	}
	h := NewStripeHandler(payments, testSecret, nil)

	payload := eventPayload(eventSucceeded, "pi_1", map[string]string{"transaction_id": "tx-1"})
	rec := serve(h, signedRequest(t, payload, testSecret))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}
