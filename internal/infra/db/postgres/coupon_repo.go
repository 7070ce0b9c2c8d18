package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/repository"
)

var _ repository.CouponRepository = (*couponRepo)(nil)

type couponRepo struct{ pool *pgxpool.Pool }

func NewCouponRepo(pool *pgxpool.Pool) *couponRepo {
	return &couponRepo{pool: pool}
}

func (r *couponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	const q = `
INSERT INTO coupons (id, code, coupon_type, value, min_amount_paise, max_redemptions, per_user_limit, active, starts_at, ends_at, created_at)
VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (code) DO UPDATE SET
  coupon_type=$3, value=$4, min_amount_paise=$5, max_redemptions=$6, per_user_limit=$7, active=$8, starts_at=$9, ends_at=$10;`
	_, err := execSQL(ctx, r.pool, tx, q, c.ID, c.Code, c.Type, c.Value, c.MinAmountPaise, c.MaxRedemptions, c.PerUserLimit, c.Active, c.StartsAt, c.EndsAt, c.CreatedAt)
	return wrapExec(err)
}

func (r *couponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	const q = `
SELECT id, code, coupon_type, value, min_amount_paise, max_redemptions, per_user_limit, active, starts_at, ends_at, created_at
  FROM coupons
 WHERE code = LOWER($1)
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	c := &model.Coupon{}
	if err := row.Scan(&c.ID, &c.Code, &c.Type, &c.Value, &c.MinAmountPaise, &c.MaxRedemptions, &c.PerUserLimit, &c.Active, &c.StartsAt, &c.EndsAt, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCouponInvalid
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *couponRepo) CountRedemptions(ctx context.Context, tx repository.Tx, couponID string) (int, error) {
	const q = `SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id=$1;`
	return r.count(ctx, tx, q, couponID)
}

func (r *couponRepo) CountRedemptionsByUser(ctx context.Context, tx repository.Tx, couponID, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM coupon_redemptions WHERE coupon_id=$1 AND user_id=$2;`
	return r.count(ctx, tx, q, couponID, userID)
}

func (r *couponRepo) FindRedemptionByOrder(ctx context.Context, tx repository.Tx, orderID string) (*model.CouponRedemption, error) {
	const q = `
SELECT id, coupon_id, user_id, order_id, discount_paise, created_at
  FROM coupon_redemptions
 WHERE order_id=$1
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	red := &model.CouponRedemption{}
	if err := row.Scan(&red.ID, &red.CouponID, &red.UserID, &red.OrderID, &red.DiscountPaise, &red.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return red, nil
}

// SaveRedemption inserts the redemption; order_id is unique, so a second
// attempt for the same order surfaces ErrAlreadyExists.
func (r *couponRepo) SaveRedemption(ctx context.Context, tx repository.Tx, red *model.CouponRedemption) error {
	const q = `
INSERT INTO coupon_redemptions (id, coupon_id, user_id, order_id, discount_paise, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q, red.ID, red.CouponID, red.UserID, red.OrderID, red.DiscountPaise, red.CreatedAt)
	return wrapExec(err)
}

func (r *couponRepo) count(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
