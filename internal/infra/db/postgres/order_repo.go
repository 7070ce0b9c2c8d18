package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/repository"
)

var _ repository.PaymentOrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, plan_id, coupon_code, merchant_tx_id, amount_paise, final_amount_paise, status, idempotency_key, redirect_url, expires_at, completed_at, created_at, updated_at, metadata`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error {
	const q = `
INSERT INTO payment_orders (
  id, user_id, plan_id, coupon_code, merchant_tx_id, amount_paise, final_amount_paise, status, idempotency_key, redirect_url, expires_at, completed_at, created_at, updated_at, metadata
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (id) DO UPDATE SET
  final_amount_paise=$7, status=$8, redirect_url=$10, expires_at=$11, completed_at=$12, updated_at=$14, metadata=$15;`

	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.UserID, o.PlanID, o.CouponCode, o.MerchantTxID, o.AmountPaise, o.FinalAmountPaise, o.Status, o.IdempotencyKey, o.RedirectURL, o.ExpiresAt, o.CompletedAt, o.CreatedAt, o.UpdatedAt, o.Metadata)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentOrder, error) {
	q := `SELECT ` + orderColumns + ` FROM payment_orders WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q+";", id)
}

func (r *orderRepo) FindByMerchantTxID(ctx context.Context, tx repository.Tx, merchantTxID string) (*model.PaymentOrder, error) {
	q := `SELECT ` + orderColumns + ` FROM payment_orders WHERE merchant_tx_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	return r.scanOne(ctx, tx, q+";", merchantTxID)
}

func (r *orderRepo) FindReusableByIdempotencyKey(ctx context.Context, tx repository.Tx, userID, key string, now time.Time) (*model.PaymentOrder, error) {
	const q = `
SELECT ` + orderColumns + `
  FROM payment_orders
 WHERE user_id=$1 AND idempotency_key=$2
   AND status IN ('CREATED','PENDING')
   AND expires_at > $3
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.scanOne(ctx, tx, q, userID, key, now)
}

func (r *orderRepo) FindLatestReusable(ctx context.Context, tx repository.Tx, userID, planID string, now time.Time) (*model.PaymentOrder, error) {
	const q = `
SELECT ` + orderColumns + `
  FROM payment_orders
 WHERE user_id=$1 AND plan_id=$2
   AND status IN ('CREATED','PENDING')
   AND expires_at > $3
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.scanOne(ctx, tx, q, userID, planID, now)
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, finalAmount *int64, completedAt *time.Time) error {
	const q = `
UPDATE payment_orders
   SET status=$2,
       final_amount_paise=COALESCE($3, final_amount_paise),
       completed_at=COALESCE($4, completed_at),
       updated_at=NOW()
 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, status, finalAmount, completedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) ListReconcilable(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.PaymentOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + orderColumns + `
  FROM payment_orders
 WHERE status IN ('CREATED','PENDING')
   AND expires_at > $1
 ORDER BY created_at ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentOrder
	for rows.Next() {
		o := new(model.PaymentOrder)
		if err := scanOrder(rows, o); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *orderRepo) scanOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.PaymentOrder, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	o := &model.PaymentOrder{}
	if err := scanOrder(row, o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner, o *model.PaymentOrder) error {
	return row.Scan(&o.ID, &o.UserID, &o.PlanID, &o.CouponCode, &o.MerchantTxID, &o.AmountPaise, &o.FinalAmountPaise, &o.Status, &o.IdempotencyKey, &o.RedirectURL, &o.ExpiresAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt, &o.Metadata)
}
