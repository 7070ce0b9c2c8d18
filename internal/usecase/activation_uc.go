// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/repository"
)

// Locker serializes the activation check-then-create across concurrent
// reconciliation triggers. The redis implementation lives in infra; tests
// use an in-memory one.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Compile-time check
var _ ActivationUseCase = (*activationUC)(nil)

type ActivationUseCase interface {
	// Activate grants the subscription and entitlements for a successful
	// order. Idempotent per order: a subscription already recorded for the
	// order is returned as-is.
	Activate(ctx context.Context, userID, planID, orderID string) (*model.Subscription, error)
}

// ActivationPolicy carries the checkout-time knobs the activator needs.
type ActivationPolicy struct {
	Stacking            bool
	LifetimeDaysCeiling int
}

type activationUC struct {
	plans  repository.PlanRepository
	subs   repository.SubscriptionRepository
	ents   repository.EntitlementRepository
	txm    repository.TransactionManager // nil = non-transactional path
	locker Locker
	policy ActivationPolicy
	log    *zerolog.Logger
}

func NewActivationUseCase(
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	ents repository.EntitlementRepository,
	txm repository.TransactionManager,
	locker Locker,
	policy ActivationPolicy,
	logger *zerolog.Logger,
) *activationUC {
	return &activationUC{plans: plans, subs: subs, ents: ents, txm: txm, locker: locker, policy: policy, log: logger}
}

func (u *activationUC) Activate(ctx context.Context, userID, planID, orderID string) (*model.Subscription, error) {
	// Short per-order lock around the check-then-create. The unique
	// constraint on payment_order_id is the hard guarantee; the lock just
	// keeps retried triggers from doing duplicate work.
	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, "payments:activate:"+orderID, 10*time.Second)
		if err == nil {
			defer func() { _ = u.locker.Unlock(ctx, "payments:activate:"+orderID, token) }()
		}
	}

	if existing, err := u.subs.FindByOrderID(ctx, repository.NoTX, orderID); err == nil && existing != nil {
		return existing, nil
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	actives, err := u.subs.ListActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	// A lifetime grant blocks stacking: replace it instead, expiring the
	// prior subscriptions and their entitlements inside the same transaction
	// as the new grant.
	var toExpire []*model.Subscription
	start := now
	for _, s := range actives {
		if s.IsLifetime() {
			toExpire = actives
			actives = nil
			break
		}
	}
	if u.policy.Stacking {
		for _, s := range actives {
			if s.EndsAt != nil && s.EndsAt.After(start) {
				start = *s.EndsAt
			}
		}
	}

	var endsAt *time.Time
	if !plan.IsLifetime(u.policy.LifetimeDaysCeiling) {
		e := start.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
		endsAt = &e
	}

	sub := &model.Subscription{
		ID:             uuid.NewString(),
		UserID:         userID,
		PlanID:         planID,
		PaymentOrderID: orderID,
		Status:         model.SubscriptionActive,
		StartsAt:       start,
		EndsAt:         endsAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	result := sub
	mutate := func(ctx context.Context, tx repository.Tx) error {
		if err := u.expireAll(ctx, tx, toExpire, now); err != nil {
			return err
		}
		created, err := u.subs.Create(ctx, tx, sub)
		if err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		if !created {
			// Lost the race against a concurrent activation for the same order.
			existing, err := u.subs.FindByOrderID(ctx, tx, orderID)
			if err != nil {
				return err
			}
			result = existing
			return nil
		}

		features := plan.Features
		if len(features) == 0 {
			features = []model.PlanFeature{{Kind: model.EntitlementAll}}
		}
		for _, f := range features {
			ent := &model.Entitlement{
				ID:             uuid.NewString(),
				SubscriptionID: sub.ID,
				UserID:         userID,
				Kind:           f.Kind,
				Scope:          f.Scope,
				StartsAt:       sub.StartsAt,
				EndsAt:         sub.EndsAt,
				CreatedAt:      now,
			}
			if err := u.ents.Save(ctx, tx, ent); err != nil {
				return fmt.Errorf("save entitlement: %w", err)
			}
		}
		return nil
	}

	if u.txm != nil {
		err = u.txm.WithTx(ctx, pgx.TxOptions{}, mutate)
	} else {
		err = mutate(ctx, repository.NoTX)
	}
	if err != nil {
		return nil, err
	}
	if result != sub {
		return result, nil
	}

	u.log.Info().
		Str("user_id", userID).
		Str("plan_id", planID).
		Str("order_id", orderID).
		Bool("lifetime", endsAt == nil).
		Time("starts_at", sub.StartsAt).
		Msg("subscription activated")
	return sub, nil
}

func (u *activationUC) expireAll(ctx context.Context, tx repository.Tx, subs []*model.Subscription, at time.Time) error {
	for _, s := range subs {
		s.Status = model.SubscriptionExpired
		capped := at
		s.EndsAt = &capped
		s.UpdatedAt = at
		if err := u.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		if err := u.ents.ExpireBySubscription(ctx, tx, s.ID, at); err != nil {
			return err
		}
	}
	return nil
}
