package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	features, err := json.Marshal(p.Features)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO plans (id, name, price_paise, duration_days, lifetime, features, active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$2, price_paise=$3, duration_days=$4, lifetime=$5, features=$6, active=$7;`
	_, err = execSQL(ctx, r.pool, tx, q, p.ID, p.Name, p.PricePaise, p.DurationDays, p.Lifetime, features, p.Active, p.CreatedAt)
	return wrapExec(err)
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `
SELECT id, name, price_paise, duration_days, lifetime, features, active, created_at
  FROM plans
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `
SELECT id, name, price_paise, duration_days, lifetime, features, active, created_at
  FROM plans
 WHERE active = TRUE
 ORDER BY price_paise ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, wrapExec(err)
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func scanPlan(row rowScanner) (*model.Plan, error) {
	p := &model.Plan{}
	var features []byte
	if err := row.Scan(&p.ID, &p.Name, &p.PricePaise, &p.DurationDays, &p.Lifetime, &features, &p.Active, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return p, nil
}
