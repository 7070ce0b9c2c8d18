//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/adapter"
	"subscription-payments/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func int64p(v int64) *int64 { return &v }

func timep(t time.Time) *time.Time { return &t }

// -----------------------------
// In-memory repositories
// -----------------------------

type MockOrderRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PaymentOrder

	SaveFunc         func(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error
	UpdateStatusFunc func(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, finalAmount *int64, completedAt *time.Time) error
}

var _ repository.PaymentOrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{store: make(map[string]*model.PaymentOrder)}
}

func (m *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, o); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) FindByMerchantTxID(ctx context.Context, tx repository.Tx, merchantTxID string) (*model.PaymentOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.store {
		if o.MerchantTxID == merchantTxID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func reusable(o *model.PaymentOrder, now time.Time) bool {
	if o.Status != model.OrderStatusCreated && o.Status != model.OrderStatusPending {
		return false
	}
	return o.ExpiresAt.After(now)
}

func (m *MockOrderRepo) FindReusableByIdempotencyKey(ctx context.Context, tx repository.Tx, userID, key string, now time.Time) (*model.PaymentOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.PaymentOrder
	for _, o := range m.store {
		if o.UserID == userID && o.IdempotencyKey == key && reusable(o, now) {
			if best == nil || o.CreatedAt.After(best.CreatedAt) {
				best = o
			}
		}
	}
	if best == nil {
		return nil, domain.ErrOrderNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockOrderRepo) FindLatestReusable(ctx context.Context, tx repository.Tx, userID, planID string, now time.Time) (*model.PaymentOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.PaymentOrder
	for _, o := range m.store {
		if o.UserID == userID && o.PlanID == planID && reusable(o, now) {
			if best == nil || o.CreatedAt.After(best.CreatedAt) {
				best = o
			}
		}
	}
	if best == nil {
		return nil, domain.ErrOrderNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, finalAmount *int64, completedAt *time.Time) error {
	if m.UpdateStatusFunc != nil {
		if err := m.UpdateStatusFunc(ctx, tx, id, status, finalAmount, completedAt); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	if finalAmount != nil {
		o.FinalAmountPaise = *finalAmount
	}
	if completedAt != nil {
		o.CompletedAt = completedAt
	}
	o.UpdatedAt = time.Now()
	return nil
}

func (m *MockOrderRepo) ListReconcilable(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.PaymentOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentOrder
	for _, o := range m.store {
		if reusable(o, now) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type MockTransactionRepo struct {
	mu    sync.RWMutex
	rows  []*model.PaymentTransaction
	byPTx map[string]int // provider_tx_id -> index into rows
}

var _ repository.PaymentTransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{byPTx: make(map[string]int)}
}

func (m *MockTransactionRepo) Upsert(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	if t.ProviderTxID != "" {
		if idx, ok := m.byPTx[t.ProviderTxID]; ok {
			m.rows[idx].Status = t.Status
			m.rows[idx].AmountPaise = t.AmountPaise
			m.rows[idx].RawPayload = t.RawPayload
			m.rows[idx].UpdatedAt = t.UpdatedAt
			return nil
		}
		m.byPTx[t.ProviderTxID] = len(m.rows)
	}
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockTransactionRepo) ListByOrder(ctx context.Context, tx repository.Tx, orderID string) ([]*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentTransaction
	for _, r := range m.rows {
		if r.OrderID == orderID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type MockEventRepo struct {
	mu   sync.RWMutex
	rows []*model.PaymentEvent
	seen map[string]bool // orderID|type|providerEventID

	RecordFunc func(ctx context.Context, tx repository.Tx, e *model.PaymentEvent) (bool, error)
}

var _ repository.PaymentEventRepository = (*MockEventRepo)(nil)

func NewMockEventRepo() *MockEventRepo {
	return &MockEventRepo{seen: make(map[string]bool)}
}

func (m *MockEventRepo) Record(ctx context.Context, tx repository.Tx, e *model.PaymentEvent) (bool, error) {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := e.OrderID + "|" + string(e.Type) + "|" + e.ProviderEventID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	cp := *e
	m.rows = append(m.rows, &cp)
	return true, nil
}

func (m *MockEventRepo) ListByOrder(ctx context.Context, tx repository.Tx, orderID string) ([]*model.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentEvent
	for _, r := range m.rows {
		if r.OrderID == orderID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockEventRepo) ListByOrderAndType(ctx context.Context, tx repository.Tx, orderID string, t model.EventType) ([]*model.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentEvent
	for _, r := range m.rows {
		if r.OrderID == orderID && r.Type == t {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockEventRepo) FindRefundInitiated(ctx context.Context, tx repository.Tx, merchantRefundID string) (*model.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rows {
		if r.Type == model.EventRefundInitiated && r.RefundID == merchantRefundID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrRefundNotFound
}

type MockCouponRepo struct {
	mu          sync.RWMutex
	byCode      map[string]*model.Coupon
	redemptions []*model.CouponRedemption
}

var _ repository.CouponRepository = (*MockCouponRepo)(nil)

func NewMockCouponRepo() *MockCouponRepo {
	return &MockCouponRepo{byCode: make(map[string]*model.Coupon)}
}

func (m *MockCouponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.byCode[strings.ToLower(c.Code)] = &cp
	return nil
}

func (m *MockCouponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byCode[strings.ToLower(code)]
	if !ok {
		return nil, domain.ErrCouponInvalid
	}
	cp := *c
	return &cp, nil
}

func (m *MockCouponRepo) CountRedemptions(ctx context.Context, tx repository.Tx, couponID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.redemptions {
		if r.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

func (m *MockCouponRepo) CountRedemptionsByUser(ctx context.Context, tx repository.Tx, couponID, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.redemptions {
		if r.CouponID == couponID && r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MockCouponRepo) FindRedemptionByOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.CouponRedemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.redemptions {
		if r.OrderID == orderID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCouponRepo) SaveRedemption(ctx context.Context, tx repository.Tx, red *model.CouponRedemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.redemptions {
		if r.OrderID == red.OrderID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *red
	m.redemptions = append(m.redemptions, &cp)
	return nil
}

type MockPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: make(map[string]*model.Plan)}
}

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Plan
	for _, p := range m.store {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type MockSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription // by subscription ID

	CreateFunc func(ctx context.Context, tx repository.Tx, s *model.Subscription) (bool, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) (bool, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.PaymentOrderID == s.PaymentOrderID {
			return false, nil
		}
	}
	cp := *s
	m.store[s.ID] = &cp
	return true, nil
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.PaymentOrderID == orderID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) ListActiveByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.UserID == userID && s.Status == model.SubscriptionActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ListActiveByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.UserID == userID && s.PlanID == planID && s.Status == model.SubscriptionActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type MockEntitlementRepo struct {
	mu   sync.RWMutex
	rows []*model.Entitlement
}

var _ repository.EntitlementRepository = (*MockEntitlementRepo)(nil)

func NewMockEntitlementRepo() *MockEntitlementRepo {
	return &MockEntitlementRepo{}
}

func (m *MockEntitlementRepo) Save(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.SubscriptionID == e.SubscriptionID && r.Kind == e.Kind && r.Scope == e.Scope {
			r.StartsAt = e.StartsAt
			r.EndsAt = e.EndsAt
			return nil
		}
	}
	cp := *e
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockEntitlementRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Entitlement
	for _, r := range m.rows {
		if r.SubscriptionID == subscriptionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockEntitlementRepo) ExpireBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.SubscriptionID == subscriptionID && (r.EndsAt == nil || r.EndsAt.After(at)) {
			capped := at
			r.EndsAt = &capped
		}
	}
	return nil
}

// -----------------------------
// Gateway / notifier / locker mocks
// -----------------------------

type MockPaymentGateway struct {
	NameVal string

	InitiatePaymentFunc func(ctx context.Context, merchantTxID string, amountPaise int64, redirectURL string) (adapter.InitiationResult, error)
	CheckStatusFunc     func(ctx context.Context, merchantTxID string) (adapter.StatusResult, error)
	RefundFunc          func(ctx context.Context, merchantRefundID, merchantTxID string, amountPaise int64) (adapter.RefundResult, error)
	GetRefundStatusFunc func(ctx context.Context, merchantRefundID string) (adapter.RefundResult, error)
	ValidateFunc        func(authHeader string, rawBody []byte) (map[string]interface{}, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string {
	if m.NameVal == "" {
		return "mockpay"
	}
	return m.NameVal
}

func (m *MockPaymentGateway) InitiatePayment(ctx context.Context, merchantTxID string, amountPaise int64, redirectURL string) (adapter.InitiationResult, error) {
	if m.InitiatePaymentFunc != nil {
		return m.InitiatePaymentFunc(ctx, merchantTxID, amountPaise, redirectURL)
	}
	return adapter.InitiationResult{
		RedirectURL: "https://pay.example/" + merchantTxID,
		ProviderRef: "REF-" + merchantTxID,
	}, nil
}

func (m *MockPaymentGateway) CheckStatus(ctx context.Context, merchantTxID string) (adapter.StatusResult, error) {
	if m.CheckStatusFunc != nil {
		return m.CheckStatusFunc(ctx, merchantTxID)
	}
	return adapter.StatusResult{State: "PENDING"}, nil
}

func (m *MockPaymentGateway) Refund(ctx context.Context, merchantRefundID, merchantTxID string, amountPaise int64) (adapter.RefundResult, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, merchantRefundID, merchantTxID, amountPaise)
	}
	return adapter.RefundResult{
		ProviderRefundID: "PREF-" + merchantRefundID,
		State:            "PENDING",
		AmountPaise:      amountPaise,
	}, nil
}

func (m *MockPaymentGateway) GetRefundStatus(ctx context.Context, merchantRefundID string) (adapter.RefundResult, error) {
	if m.GetRefundStatusFunc != nil {
		return m.GetRefundStatusFunc(ctx, merchantRefundID)
	}
	return adapter.RefundResult{ProviderRefundID: "PREF-" + merchantRefundID, State: "PENDING"}, nil
}

func (m *MockPaymentGateway) ValidateWebhookSignature(authHeader string, rawBody []byte) (map[string]interface{}, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(authHeader, rawBody)
	}
	return nil, nil
}

type MockNotifier struct {
	mu        sync.Mutex
	Succeeded []string // order IDs
	Activated []string // subscription IDs
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) PaymentSucceeded(ctx context.Context, order *model.PaymentOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Succeeded = append(m.Succeeded, order.ID)
}

func (m *MockNotifier) SubscriptionActivated(ctx context.Context, sub *model.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Activated = append(m.Activated, sub.ID)
}

// MockLocker hands out tokens without contention; tests that need lock
// failures set Fail.
type MockLocker struct {
	Fail bool
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.Fail {
		return "", domain.ErrAlreadyExists
	}
	return uuid.NewString(), nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error { return nil }
