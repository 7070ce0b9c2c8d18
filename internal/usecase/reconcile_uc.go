// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/adapter"
	"subscription-payments/internal/domain/ports/repository"
	"subscription-payments/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase converges a local order with the provider's authoritative
// state. It is invoked from webhook intake, the poll tick, and the manual
// admin finalize action; every call site may race or repeat.
type ReconcileUseCase interface {
	RefreshOrderStatus(ctx context.Context, orderID string) (*model.PaymentOrder, error)
}

type reconcileUC struct {
	orders     repository.PaymentOrderRepository
	txs        repository.PaymentTransactionRepository
	subs       repository.SubscriptionRepository
	coupons    repository.CouponRepository
	couponUC   CouponUseCase
	activation ActivationUseCase
	gateway    adapter.PaymentGateway
	notifier   adapter.Notifier
	log        *zerolog.Logger
}

func NewReconcileUseCase(
	orders repository.PaymentOrderRepository,
	txs repository.PaymentTransactionRepository,
	subs repository.SubscriptionRepository,
	coupons repository.CouponRepository,
	couponUC CouponUseCase,
	activation ActivationUseCase,
	gateway adapter.PaymentGateway,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *reconcileUC {
	return &reconcileUC{
		orders:     orders,
		txs:        txs,
		subs:       subs,
		coupons:    coupons,
		couponUC:   couponUC,
		activation: activation,
		gateway:    gateway,
		notifier:   notifier,
		log:        logger,
	}
}

func (u *reconcileUC) RefreshOrderStatus(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	order, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, domain.ErrOrderNotFound
	}

	// Terminal orders are returned untouched without a provider call. This
	// is the primary defense against webhook replay storms.
	if order.Status.IsTerminal() {
		return order, nil
	}

	res, err := u.gateway.CheckStatus(ctx, order.MerchantTxID)
	if err != nil {
		metrics.IncReconcileError()
		return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}

	proposed := NormalizeProviderStatus(res)
	next := model.NextStatus(order.Status, proposed)
	firstSuccess := next == model.OrderStatusSuccess && order.Status != model.OrderStatusSuccess

	var finalAmount *int64
	if res.SettledAmount > 0 {
		finalAmount = &res.SettledAmount
	}
	var completedAt *time.Time
	if next.IsTerminal() && order.CompletedAt == nil {
		now := time.Now()
		completedAt = &now
	}
	if next != order.Status || finalAmount != nil {
		if err := u.orders.UpdateStatus(ctx, repository.NoTX, order.ID, next, finalAmount, completedAt); err != nil {
			return nil, err
		}
	}
	order.Status = next
	if finalAmount != nil {
		order.FinalAmountPaise = *finalAmount
	}
	if completedAt != nil {
		order.CompletedAt = completedAt
	}

	u.recordAttempt(ctx, order, res)
	metrics.IncReconcile(string(next))

	if firstSuccess {
		u.onFirstSuccess(ctx, order)
	}
	return order, nil
}

// recordAttempt upserts the PaymentTransaction for this observation. An
// observation without a provider transaction id is appended as a fresh row.
func (u *reconcileUC) recordAttempt(ctx context.Context, order *model.PaymentOrder, res adapter.StatusResult) {
	now := time.Now()
	t := &model.PaymentTransaction{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		Status:      transactionStatusFor(order.Status),
		AmountPaise: order.FinalAmountPaise,
		RawPayload:  res.RawPayload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if n := len(res.Attempts); n > 0 {
		latest := res.Attempts[n-1]
		t.ProviderTxID = latest.ProviderTxID
		if latest.AmountPaise > 0 {
			t.AmountPaise = latest.AmountPaise
		}
	}
	if err := u.txs.Upsert(ctx, repository.NoTX, t); err != nil {
		u.log.Warn().Err(err).Str("order_id", order.ID).Msg("payment transaction upsert failed")
	}
}

// onFirstSuccess fires the money-relevant side effects exactly once per
// order. Activation failures are logged and swallowed so a downstream
// problem never masks the payment's own terminal status; the next
// reconciliation call retries because activation re-checks existence.
func (u *reconcileUC) onFirstSuccess(ctx context.Context, order *model.PaymentOrder) {
	u.notifier.PaymentSucceeded(ctx, order)
	metrics.AddRevenue(order.FinalAmountPaise)

	if existing, err := u.subs.FindByOrderID(ctx, repository.NoTX, order.ID); err != nil || existing == nil {
		sub, err := u.activation.Activate(ctx, order.UserID, order.PlanID, order.ID)
		if err != nil {
			u.log.Error().Err(err).Str("order_id", order.ID).Msg("subscription activation failed; will retry on next reconcile")
		} else {
			u.notifier.SubscriptionActivated(ctx, sub)
			metrics.IncActivation()
		}
	}

	if order.CouponCode != "" {
		coupon, err := u.coupons.FindByCode(ctx, repository.NoTX, order.CouponCode)
		if err != nil {
			u.log.Error().Err(err).Str("order_id", order.ID).Str("coupon", order.CouponCode).Msg("coupon lookup failed at redemption")
			return
		}
		discount := order.AmountPaise - order.FinalAmountPaise
		if discount < 0 {
			discount = 0
		}
		if err := u.couponUC.Redeem(ctx, repository.NoTX, coupon, order.UserID, order.ID, discount); err != nil {
			u.log.Error().Err(err).Str("order_id", order.ID).Str("coupon", order.CouponCode).Msg("coupon redemption failed")
		}
	}
}

func transactionStatusFor(s model.OrderStatus) model.TransactionStatus {
	switch s {
	case model.OrderStatusSuccess, model.OrderStatusRefunded:
		return model.TransactionSuccess
	case model.OrderStatusFailed, model.OrderStatusExpired, model.OrderStatusCancelled:
		return model.TransactionFailed
	default:
		return model.TransactionPending
	}
}

// NormalizeProviderStatus maps a raw provider status response to a canonical
// order status. The most recent payment attempt outranks the top-level state,
// which outranks the error code. Unrecognized tokens normalize to PENDING:
// the engine never guesses success.
func NormalizeProviderStatus(res adapter.StatusResult) model.OrderStatus {
	if n := len(res.Attempts); n > 0 {
		if s, ok := normalizeToken(res.Attempts[n-1].State); ok {
			return s
		}
	}
	if s, ok := normalizeToken(res.State); ok {
		return s
	}
	if s, ok := normalizeToken(res.ErrorCode); ok {
		return s
	}
	return model.OrderStatusPending
}

func normalizeToken(token string) (model.OrderStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "COMPLETED", "SUCCESS", "PAYMENT_SUCCESS":
		return model.OrderStatusSuccess, true
	case "FAILED", "PAYMENT_ERROR":
		return model.OrderStatusFailed, true
	case "EXPIRED", "TIMED_OUT":
		return model.OrderStatusExpired, true
	case "CANCELLED", "USER_CANCELLED":
		return model.OrderStatusCancelled, true
	case "REFUNDED":
		return model.OrderStatusRefunded, true
	}
	return "", false
}
