package payment

import (
	"context"
	"fmt"
	"sync"

	"subscription-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a simple in-memory gateway for dev runs and tests. Every
// initiated payment reports COMPLETED on the first status check; refunds
// settle instantly.
type NoopGateway struct {
	mu      sync.Mutex
	seq     int64
	intents map[string]int64 // merchantTxID -> amount (paise)
	refunds map[string]int64 // merchantRefundID -> amount (paise)
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{
		intents: make(map[string]int64),
		refunds: make(map[string]int64),
	}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-%d", g.seq)
}

func (g *NoopGateway) InitiatePayment(ctx context.Context, merchantTxID string, amountPaise int64, redirectURL string) (adapter.InitiationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[merchantTxID] = amountPaise
	return adapter.InitiationResult{
		RedirectURL: "https://example.test/pay/" + merchantTxID,
		ProviderRef: g.next(),
	}, nil
}

func (g *NoopGateway) CheckStatus(ctx context.Context, merchantTxID string) (adapter.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.intents[merchantTxID]
	if !ok {
		return adapter.StatusResult{}, fmt.Errorf("noop: merchant transaction not found")
	}
	return adapter.StatusResult{
		State:           "COMPLETED",
		SettledAmount:   amount,
		ProviderEventID: "ptx-" + merchantTxID,
		Attempts: []adapter.PaymentAttempt{
			{ProviderTxID: "ptx-" + merchantTxID, State: "COMPLETED", AmountPaise: amount},
		},
	}, nil
}

func (g *NoopGateway) Refund(ctx context.Context, merchantRefundID, merchantTxID string, amountPaise int64) (adapter.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.intents[merchantTxID]; !ok {
		return adapter.RefundResult{}, fmt.Errorf("noop: merchant transaction not found")
	}
	g.refunds[merchantRefundID] = amountPaise
	return adapter.RefundResult{
		ProviderRefundID: "ref-" + merchantRefundID,
		State:            "COMPLETED",
		AmountPaise:      amountPaise,
	}, nil
}

func (g *NoopGateway) GetRefundStatus(ctx context.Context, merchantRefundID string) (adapter.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.refunds[merchantRefundID]
	if !ok {
		return adapter.RefundResult{}, fmt.Errorf("noop: refund not found")
	}
	return adapter.RefundResult{
		ProviderRefundID: "ref-" + merchantRefundID,
		State:            "COMPLETED",
		AmountPaise:      amount,
	}, nil
}

func (g *NoopGateway) ValidateWebhookSignature(authHeader string, rawBody []byte) (map[string]interface{}, error) {
	return nil, nil // no credentials, checking skipped
}
