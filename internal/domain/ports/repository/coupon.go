package repository

import (
	"context"

	"subscription-payments/internal/domain/model"
)

type CouponRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Coupon) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Coupon, error)
	CountRedemptions(ctx context.Context, tx Tx, couponID string) (int, error)
	CountRedemptionsByUser(ctx context.Context, tx Tx, couponID, userID string) (int, error)
	FindRedemptionByOrder(ctx context.Context, tx Tx, orderID string) (*model.CouponRedemption, error)
	SaveRedemption(ctx context.Context, tx Tx, r *model.CouponRedemption) error
}
