// File: internal/usecase/coupon_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/repository"
)

// Compile-time check
var _ CouponUseCase = (*couponUC)(nil)

type CouponUseCase interface {
	// Resolve evaluates the coupon rules against the amount and returns the
	// coupon, the discount, and the final amount. It never records anything.
	Resolve(ctx context.Context, userID, code string, amountPaise int64) (*model.Coupon, int64, int64, error)
	// Redeem records the redemption for an order that reached SUCCESS. A
	// prior redemption for the same order short-circuits to a no-op.
	Redeem(ctx context.Context, tx repository.Tx, coupon *model.Coupon, userID, orderID string, discountPaise int64) error
}

type couponUC struct {
	coupons repository.CouponRepository
	log     *zerolog.Logger
}

func NewCouponUseCase(coupons repository.CouponRepository, logger *zerolog.Logger) *couponUC {
	return &couponUC{coupons: coupons, log: logger}
}

func (u *couponUC) Resolve(ctx context.Context, userID, code string, amountPaise int64) (*model.Coupon, int64, int64, error) {
	c, err := u.coupons.FindByCode(ctx, repository.NoTX, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, 0, 0, domain.ErrCouponInvalid
	}
	if !c.Active {
		return nil, 0, 0, domain.ErrCouponInvalid
	}

	now := time.Now()
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return nil, 0, 0, domain.ErrCouponNotStarted
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return nil, 0, 0, domain.ErrCouponExpired
	}
	if c.MinAmountPaise > 0 && amountPaise < c.MinAmountPaise {
		return nil, 0, 0, domain.ErrCouponMinAmount
	}

	if c.MaxRedemptions > 0 {
		total, err := u.coupons.CountRedemptions(ctx, repository.NoTX, c.ID)
		if err != nil {
			return nil, 0, 0, err
		}
		if total >= c.MaxRedemptions {
			return nil, 0, 0, domain.ErrCouponMaxRedeemed
		}
	}
	if c.PerUserLimit > 0 {
		used, err := u.coupons.CountRedemptionsByUser(ctx, repository.NoTX, c.ID, userID)
		if err != nil {
			return nil, 0, 0, err
		}
		if used >= c.PerUserLimit {
			return nil, 0, 0, domain.ErrCouponUserLimit
		}
	}

	discount := c.Discount(amountPaise)
	final := amountPaise - discount
	if final < 0 {
		final = 0
	}
	return c, discount, final, nil
}

func (u *couponUC) Redeem(ctx context.Context, tx repository.Tx, coupon *model.Coupon, userID, orderID string, discountPaise int64) error {
	if existing, err := u.coupons.FindRedemptionByOrder(ctx, tx, orderID); err == nil && existing != nil {
		return nil // already redeemed for this order
	}
	r := &model.CouponRedemption{
		ID:            uuid.NewString(),
		CouponID:      coupon.ID,
		UserID:        userID,
		OrderID:       orderID,
		DiscountPaise: discountPaise,
		CreatedAt:     time.Now(),
	}
	if err := u.coupons.SaveRedemption(ctx, tx, r); err != nil {
		// A unique-violation from a concurrent redeem means someone else won;
		// the redemption exists, which is all the caller needs.
		if err == domain.ErrAlreadyExists {
			return nil
		}
		return err
	}
	u.log.Info().Str("coupon", coupon.Code).Str("order_id", orderID).Int64("discount_paise", discountPaise).Msg("coupon redeemed")
	return nil
}
