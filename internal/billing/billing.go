package billing

import (
	"context"
	"sort"
	"sync"

	"github.com/dukerupert/verdandi/internal/domain"
)

// Gateways routes each payment method to the gateway that processes it.
// Methods without a registered gateway are offline methods: they report no
// capabilities, so only the offline transaction operations apply to them.
type Gateways struct {
	mu       sync.RWMutex
	byMethod map[string]domain.PaymentGateway
}

func NewGateways() *Gateways {
	return &Gateways{byMethod: make(map[string]domain.PaymentGateway)}
}

var _ domain.PaymentGateway = (*Gateways)(nil)

// Register binds method to gw, replacing any earlier binding.
func (g *Gateways) Register(method string, gw domain.PaymentGateway) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byMethod[method] = gw
}

// Methods lists the registered payment methods in name order.
func (g *Gateways) Methods() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.byMethod))
	for m := range g.byMethod {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (g *Gateways) lookup(method string) (domain.PaymentGateway, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	gw, ok := g.byMethod[method]
	if !ok {
		return nil, domain.WrapError(ErrUnknownPaymentMethod, domain.ENOTIMPL, "billing.gateway", "no gateway registered for payment method "+method)
	}
	return gw, nil
}

func (g *Gateways) Capabilities(paymentMethod string) domain.GatewayCapabilities {
	gw, err := g.lookup(paymentMethod)
	if err != nil {
		return domain.GatewayCapabilities{}
	}
	return gw.Capabilities(paymentMethod)
}

func (g *Gateways) Capture(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
	gw, err := g.lookup(tx.PaymentMethod)
	if err != nil {
		return nil, err
	}
	return gw.Capture(ctx, tx)
}

func (g *Gateways) Void(ctx context.Context, tx *domain.PaymentTransaction) (*domain.GatewayResult, error) {
	gw, err := g.lookup(tx.PaymentMethod)
	if err != nil {
		return nil, err
	}
	return gw.Void(ctx, tx)
}

func (g *Gateways) Refund(ctx context.Context, req domain.RefundRequest) (*domain.GatewayResult, error) {
	if req.Transaction == nil {
		return nil, domain.Errorf(domain.EINVALID, "billing.refund", "refund request has no transaction")
	}
	gw, err := g.lookup(req.Transaction.PaymentMethod)
	if err != nil {
		return nil, err
	}
	return gw.Refund(ctx, req)
}
