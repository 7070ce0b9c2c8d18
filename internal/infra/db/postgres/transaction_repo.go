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

var _ repository.PaymentTransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

func (r *transactionRepo) Upsert(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	// Keyed by provider_tx_id when present: a later observation of the same
	// provider transaction overwrites status and payload.
	if t.ProviderTxID != "" {
		const q = `
INSERT INTO payment_transactions (id, order_id, provider_tx_id, status, amount_paise, raw_payload, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (provider_tx_id) DO UPDATE SET
  status=$4, amount_paise=$5, raw_payload=$6, updated_at=$8;`
		_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.OrderID, t.ProviderTxID, t.Status, t.AmountPaise, t.RawPayload, t.CreatedAt, t.UpdatedAt)
		return wrapExec(err)
	}
	const q = `
INSERT INTO payment_transactions (id, order_id, provider_tx_id, status, amount_paise, raw_payload, created_at, updated_at)
VALUES ($1,$2,NULL,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.OrderID, t.Status, t.AmountPaise, t.RawPayload, t.CreatedAt, t.UpdatedAt)
	return wrapExec(err)
}

func (r *transactionRepo) ListByOrder(ctx context.Context, tx repository.Tx, orderID string) ([]*model.PaymentTransaction, error) {
	const q = `
SELECT id, order_id, COALESCE(provider_tx_id,''), status, amount_paise, raw_payload, created_at, updated_at
  FROM payment_transactions
 WHERE order_id=$1
 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, wrapExec(err)
	}
	defer rows.Close()

	var out []*model.PaymentTransaction
	for rows.Next() {
		t := new(model.PaymentTransaction)
		if err := rows.Scan(&t.ID, &t.OrderID, &t.ProviderTxID, &t.Status, &t.AmountPaise, &t.RawPayload, &t.CreatedAt, &t.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, nil
}

func wrapExec(err error) error {
	switch {
	case err == nil:
		return nil
	case err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext:
		return err
	case isUniqueViolation(err):
		return domain.ErrAlreadyExists
	default:
		return domain.ErrOperationFailed
	}
}
