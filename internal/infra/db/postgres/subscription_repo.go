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

var (
	_ repository.SubscriptionRepository = (*subscriptionRepo)(nil)
	_ repository.EntitlementRepository  = (*entitlementRepo)(nil)
)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, plan_id, payment_order_id, status, starts_at, ends_at, created_at, updated_at`

// Create inserts the subscription. The unique index on payment_order_id
// makes a concurrent activation for the same order report created=false.
func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) (bool, error) {
	const q = `
INSERT INTO subscriptions (id, user_id, plan_id, payment_order_id, status, starts_at, ends_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (payment_order_id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.PlanID, s.PaymentOrderID, s.Status, s.StartsAt, s.EndsAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return false, wrapExec(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
UPDATE subscriptions
   SET status=$2, starts_at=$3, ends_at=$4, updated_at=$5
 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.Status, s.StartsAt, s.EndsAt, s.UpdatedAt)
	return wrapExec(err)
}

func (r *subscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE payment_order_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	s := &model.Subscription{}
	if err := scanSubscription(row, s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *subscriptionRepo) ListActiveByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status='ACTIVE'
 ORDER BY starts_at ASC;`
	return r.list(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ListActiveByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND plan_id=$2 AND status='ACTIVE'
 ORDER BY starts_at ASC;`
	return r.list(ctx, tx, q, userID, planID)
}

func (r *subscriptionRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, wrapExec(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s := new(model.Subscription)
		if err := scanSubscription(rows, s); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	return out, nil
}

func scanSubscription(row rowScanner, s *model.Subscription) error {
	return row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.PaymentOrderID, &s.Status, &s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt)
}

type entitlementRepo struct{ pool *pgxpool.Pool }

func NewEntitlementRepo(pool *pgxpool.Pool) *entitlementRepo {
	return &entitlementRepo{pool: pool}
}

func (r *entitlementRepo) Save(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	const q = `
INSERT INTO entitlements (id, subscription_id, user_id, kind, scope, starts_at, ends_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (subscription_id, kind, scope) DO UPDATE SET
  starts_at=$6, ends_at=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.SubscriptionID, e.UserID, e.Kind, e.Scope, e.StartsAt, e.EndsAt, e.CreatedAt)
	return wrapExec(err)
}

func (r *entitlementRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.Entitlement, error) {
	const q = `
SELECT id, subscription_id, user_id, kind, scope, starts_at, ends_at, created_at
  FROM entitlements
 WHERE subscription_id=$1
 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return nil, wrapExec(err)
	}
	defer rows.Close()

	var out []*model.Entitlement
	for rows.Next() {
		e := new(model.Entitlement)
		if err := rows.Scan(&e.ID, &e.SubscriptionID, &e.UserID, &e.Kind, &e.Scope, &e.StartsAt, &e.EndsAt, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}

// ExpireBySubscription caps every open entitlement window of the
// subscription at the given instant.
func (r *entitlementRepo) ExpireBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string, at time.Time) error {
	const q = `
UPDATE entitlements
   SET ends_at=$2
 WHERE subscription_id=$1
   AND (ends_at IS NULL OR ends_at > $2);`
	_, err := execSQL(ctx, r.pool, tx, q, subscriptionID, at)
	return wrapExec(err)
}
