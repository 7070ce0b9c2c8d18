// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/adapter"
	"subscription-payments/internal/domain/ports/repository"
	"subscription-payments/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutResult is the initiation handle returned to the client.
type CheckoutResult struct {
	Order       *model.PaymentOrder
	RedirectURL string
}

type CheckoutUseCase interface {
	// Checkout creates or reuses a payment order for (user, plan) and returns
	// the provider redirect handle. couponCode and idempotencyKey may be empty.
	Checkout(ctx context.Context, userID, planID, couponCode, idempotencyKey string) (*CheckoutResult, error)
}

// CheckoutPolicy carries the re-purchase and expiry knobs from config.
type CheckoutPolicy struct {
	RenewalWindowDays   int
	OrderTTL            time.Duration
	LifetimeDaysCeiling int
}

type checkoutUC struct {
	orders  repository.PaymentOrderRepository
	plans   repository.PlanRepository
	subs    repository.SubscriptionRepository
	coupons CouponUseCase
	gateway adapter.PaymentGateway
	policy  CheckoutPolicy
	log     *zerolog.Logger
}

func NewCheckoutUseCase(
	orders repository.PaymentOrderRepository,
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	coupons CouponUseCase,
	gateway adapter.PaymentGateway,
	policy CheckoutPolicy,
	logger *zerolog.Logger,
) *checkoutUC {
	return &checkoutUC{
		orders:  orders,
		plans:   plans,
		subs:    subs,
		coupons: coupons,
		gateway: gateway,
		policy:  policy,
		log:     logger,
	}
}

func (u *checkoutUC) Checkout(ctx context.Context, userID, planID, couponCode, idempotencyKey string) (*CheckoutResult, error) {
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil || plan == nil || !plan.Active {
		return nil, domain.ErrPlanNotFound
	}

	if err := u.checkRepurchase(ctx, userID, plan); err != nil {
		return nil, err
	}

	now := time.Now()

	// Idempotency key first: a retried client request must get the original
	// initiation handle back, with no new provider call and no new row.
	if idempotencyKey != "" {
		if existing, err := u.orders.FindReusableByIdempotencyKey(ctx, repository.NoTX, userID, idempotencyKey, now); err == nil && existing != nil {
			return u.reuse(ctx, existing)
		}
	}

	// Then the latest in-flight order for the same purchase intent.
	if existing, err := u.orders.FindLatestReusable(ctx, repository.NoTX, userID, planID, now); err == nil && existing != nil {
		return u.reuse(ctx, existing)
	}

	amount := plan.PricePaise
	final := amount
	if couponCode != "" {
		_, _, f, err := u.coupons.Resolve(ctx, userID, couponCode, amount)
		if err != nil {
			return nil, err
		}
		final = f
	}

	order := &model.PaymentOrder{
		ID:               uuid.NewString(),
		UserID:           userID,
		PlanID:           planID,
		CouponCode:       couponCode,
		MerchantTxID:     ulid.Make().String(),
		AmountPaise:      amount,
		FinalAmountPaise: final,
		Status:           model.OrderStatusCreated,
		IdempotencyKey:   idempotencyKey,
		ExpiresAt:        now.Add(u.policy.OrderTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := u.orders.Save(ctx, repository.NoTX, order); err != nil {
		return nil, err
	}

	init, err := u.gateway.InitiatePayment(ctx, order.MerchantTxID, order.FinalAmountPaise, "")
	if err != nil {
		if errors.Is(err, domain.ErrConfigMissing) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}

	order.RedirectURL = init.RedirectURL
	order.Status = model.NextStatus(order.Status, model.OrderStatusPending)
	order.UpdatedAt = time.Now()
	if err := u.orders.Save(ctx, repository.NoTX, order); err != nil {
		return nil, err
	}

	metrics.IncCheckout(string(order.Status))
	u.log.Info().
		Str("user_id", userID).
		Str("plan_id", planID).
		Str("merchant_tx_id", order.MerchantTxID).
		Int64("final_amount_paise", order.FinalAmountPaise).
		Msg("checkout initiated")
	return &CheckoutResult{Order: order, RedirectURL: order.RedirectURL}, nil
}

// reuse hands an in-flight order back to the caller. An order stuck in
// CREATED without a redirect handle means the original initiation call
// failed after the row was saved; re-initiate so the retry is payable
// instead of returning a dead handle until the TTL lapses.
func (u *checkoutUC) reuse(ctx context.Context, order *model.PaymentOrder) (*CheckoutResult, error) {
	if order.Status == model.OrderStatusCreated && order.RedirectURL == "" {
		init, err := u.gateway.InitiatePayment(ctx, order.MerchantTxID, order.FinalAmountPaise, "")
		if err != nil {
			if errors.Is(err, domain.ErrConfigMissing) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
		}
		order.RedirectURL = init.RedirectURL
		order.Status = model.NextStatus(order.Status, model.OrderStatusPending)
		order.UpdatedAt = time.Now()
		if err := u.orders.Save(ctx, repository.NoTX, order); err != nil {
			return nil, err
		}
		u.log.Info().
			Str("merchant_tx_id", order.MerchantTxID).
			Msg("re-initiated payment for reused order")
	}
	return &CheckoutResult{Order: order, RedirectURL: order.RedirectURL}, nil
}

// checkRepurchase enforces the re-purchase policy: an active subscription to
// the same plan blocks a new purchase unless it is non-lifetime and within
// the renewal window before expiry. Lifetime grants always block.
func (u *checkoutUC) checkRepurchase(ctx context.Context, userID string, plan *model.Plan) error {
	actives, err := u.subs.ListActiveByUserAndPlan(ctx, repository.NoTX, userID, plan.ID)
	if err != nil {
		return err
	}
	now := time.Now()
	window := time.Duration(u.policy.RenewalWindowDays) * 24 * time.Hour
	for _, s := range actives {
		if !s.ActiveAt(now) {
			continue
		}
		if s.IsLifetime() {
			return domain.ErrRepurchaseBlocked
		}
		if s.EndsAt.Sub(now) > window {
			return domain.ErrRepurchaseBlocked
		}
	}
	return nil
}
