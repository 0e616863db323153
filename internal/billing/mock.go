package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/google/uuid"
)

// MockGateway is an in-memory gateway for tests and local development.
// Every operation succeeds unless its Func field says otherwise.
type MockGateway struct {
	// Caps is returned by Capabilities. NewMockGateway enables everything.
	Caps domain.GatewayCapabilities

	CaptureFunc func(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error)
	VoidFunc    func(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error)
	RefundFunc  func(ctx context.Context, req domain.RefundRequest) (*domain.GatewayResult, error)

	mu sync.Mutex
	// CallLog tracks method calls for test assertions
	CallLog []string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		Caps: domain.GatewayCapabilities{Capture: true, Void: true, Refund: true, PartialRefund: true},
	}
}

var _ domain.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) log(entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, entry)
}

// Calls returns a copy of the call log.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

func (m *MockGateway) Capabilities(string) domain.GatewayCapabilities {
	return m.Caps
}

func (m *MockGateway) Capture(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
	m.log(fmt.Sprintf("Capture(%s)", tx.ID))
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, tx)
	}
	return &domain.GatewayResult{NewStatus: domain.TransactionStatusPaid, TransactionID: "ch_" + uuid.NewString()}, nil
}

func (m *MockGateway) Void(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
	m.log(fmt.Sprintf("Void(%s)", tx.ID))
	if m.VoidFunc != nil {
		return m.VoidFunc(ctx, tx)
	}
	return &domain.GatewayResult{NewStatus: domain.TransactionStatusVoided, TransactionID: tx.AuthorizationTransactionID}, nil
}

func (m *MockGateway) Refund(ctx context.Context, req domain.RefundRequest) (*domain.GatewayResult, error) {
	m.log(fmt.Sprintf("Refund(%s, %s, partial=%t)", req.Transaction.ID, req.Amount.String(), req.IsPartial))
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, req)
	}
	status := domain.TransactionStatusRefunded
	if req.IsPartial {
		status = domain.TransactionStatusPartiallyRefunded
	}
	return &domain.GatewayResult{NewStatus: status, TransactionID: "re_" + uuid.NewString()}, nil
}
