//go:build !integration

package web

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/adapter"
	"subscription-payments/internal/domain/ports/repository"
	"subscription-payments/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ===== Use case stubs =====

type mockCheckoutUC struct {
	CheckoutFunc func(ctx context.Context, userID, planID, couponCode, idempotencyKey string) (*usecase.CheckoutResult, error)
}

func (m *mockCheckoutUC) Checkout(ctx context.Context, userID, planID, couponCode, idempotencyKey string) (*usecase.CheckoutResult, error) {
	return m.CheckoutFunc(ctx, userID, planID, couponCode, idempotencyKey)
}

type mockReconcileUC struct {
	mu          sync.Mutex
	calls       int
	RefreshFunc func(ctx context.Context, orderID string) (*model.PaymentOrder, error)
}

func (m *mockReconcileUC) RefreshOrderStatus(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, orderID)
	}
	return &model.PaymentOrder{ID: orderID, Status: model.OrderStatusPending}, nil
}

func (m *mockReconcileUC) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRefundUC struct {
	RefundOrderFunc     func(ctx context.Context, orderID string, amountPaise *int64, reason, merchantRefundID string) (*usecase.RefundResult, error)
	GetRefundStatusFunc func(ctx context.Context, merchantRefundID string) (*usecase.RefundResult, error)
}

func (m *mockRefundUC) RefundOrder(ctx context.Context, orderID string, amountPaise *int64, reason, merchantRefundID string) (*usecase.RefundResult, error) {
	return m.RefundOrderFunc(ctx, orderID, amountPaise, reason, merchantRefundID)
}

func (m *mockRefundUC) GetRefundStatus(ctx context.Context, merchantRefundID string) (*usecase.RefundResult, error) {
	return m.GetRefundStatusFunc(ctx, merchantRefundID)
}

// ===== Repository stubs =====

type mockOrderRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymentOrder
}

func newMockOrderRepo(orders ...*model.PaymentOrder) *mockOrderRepo {
	r := &mockOrderRepo{store: make(map[string]*model.PaymentOrder)}
	for _, o := range orders {
		cp := *o
		r.store[o.ID] = &cp
	}
	return r
}

func (r *mockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.store[o.ID] = &cp
	return nil
}

func (r *mockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.store[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *mockOrderRepo) FindByMerchantTxID(ctx context.Context, tx repository.Tx, merchantTxID string) (*model.PaymentOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.store {
		if o.MerchantTxID == merchantTxID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *mockOrderRepo) FindReusableByIdempotencyKey(ctx context.Context, tx repository.Tx, userID, key string, now time.Time) (*model.PaymentOrder, error) {
	return nil, domain.ErrOrderNotFound
}

func (r *mockOrderRepo) FindLatestReusable(ctx context.Context, tx repository.Tx, userID, planID string, now time.Time) (*model.PaymentOrder, error) {
	return nil, domain.ErrOrderNotFound
}

func (r *mockOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, finalAmount *int64, completedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.store[id]; ok {
		o.Status = status
	}
	return nil
}

func (r *mockOrderRepo) ListReconcilable(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.PaymentOrder, error) {
	return nil, nil
}

type mockEventRepo struct {
	mu     sync.Mutex
	seen   map[string]bool
	events []*model.PaymentEvent
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{seen: make(map[string]bool)}
}

func (r *mockEventRepo) Record(ctx context.Context, tx repository.Tx, e *model.PaymentEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := e.OrderID + "|" + string(e.Type) + "|" + e.ProviderEventID
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	cp := *e
	r.events = append(r.events, &cp)
	return true, nil
}

func (r *mockEventRepo) ListByOrder(ctx context.Context, tx repository.Tx, orderID string) ([]*model.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentEvent
	for _, e := range r.events {
		if e.OrderID == orderID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockEventRepo) ListByOrderAndType(ctx context.Context, tx repository.Tx, orderID string, t model.EventType) ([]*model.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentEvent
	for _, e := range r.events {
		if e.OrderID == orderID && e.Type == t {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *mockEventRepo) FindRefundInitiated(ctx context.Context, tx repository.Tx, merchantRefundID string) (*model.PaymentEvent, error) {
	return nil, domain.ErrRefundNotFound
}

// ===== Gateway stub =====

type mockGateway struct {
	ValidateFunc func(authHeader string, rawBody []byte) (map[string]interface{}, error)
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) InitiatePayment(ctx context.Context, merchantTxID string, amountPaise int64, redirectURL string) (adapter.InitiationResult, error) {
	return adapter.InitiationResult{RedirectURL: "https://pay.example/" + merchantTxID}, nil
}

func (g *mockGateway) CheckStatus(ctx context.Context, merchantTxID string) (adapter.StatusResult, error) {
	return adapter.StatusResult{State: "PENDING"}, nil
}

func (g *mockGateway) Refund(ctx context.Context, merchantRefundID, merchantTxID string, amountPaise int64) (adapter.RefundResult, error) {
	return adapter.RefundResult{State: "PENDING", AmountPaise: amountPaise}, nil
}

func (g *mockGateway) GetRefundStatus(ctx context.Context, merchantRefundID string) (adapter.RefundResult, error) {
	return adapter.RefundResult{State: "PENDING"}, nil
}

func (g *mockGateway) ValidateWebhookSignature(authHeader string, rawBody []byte) (map[string]interface{}, error) {
	if g.ValidateFunc != nil {
		return g.ValidateFunc(authHeader, rawBody)
	}
	return nil, nil
}
