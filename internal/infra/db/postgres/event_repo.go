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

var _ repository.PaymentEventRepository = (*eventRepo)(nil)

type eventRepo struct{ pool *pgxpool.Pool }

func NewEventRepo(pool *pgxpool.Pool) *eventRepo {
	return &eventRepo{pool: pool}
}

const eventColumns = `id, order_id, event_type, provider_event_id, amount_paise, state, refund_id, raw_payload, created_at`

// Record appends the event; the unique index on
// (order_id, event_type, provider_event_id) turns duplicates into no-ops.
func (r *eventRepo) Record(ctx context.Context, tx repository.Tx, e *model.PaymentEvent) (bool, error) {
	const q = `
INSERT INTO payment_events (id, order_id, event_type, provider_event_id, amount_paise, state, refund_id, raw_payload, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (order_id, event_type, provider_event_id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, e.ID, e.OrderID, e.Type, e.ProviderEventID, e.AmountPaise, e.State, e.RefundID, e.RawPayload, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *eventRepo) ListByOrder(ctx context.Context, tx repository.Tx, orderID string) ([]*model.PaymentEvent, error) {
	const q = `SELECT ` + eventColumns + ` FROM payment_events WHERE order_id=$1 ORDER BY created_at ASC;`
	return r.list(ctx, tx, q, orderID)
}

func (r *eventRepo) ListByOrderAndType(ctx context.Context, tx repository.Tx, orderID string, t model.EventType) ([]*model.PaymentEvent, error) {
	const q = `SELECT ` + eventColumns + ` FROM payment_events WHERE order_id=$1 AND event_type=$2 ORDER BY created_at ASC;`
	return r.list(ctx, tx, q, orderID, t)
}

func (r *eventRepo) FindRefundInitiated(ctx context.Context, tx repository.Tx, merchantRefundID string) (*model.PaymentEvent, error) {
	const q = `SELECT ` + eventColumns + ` FROM payment_events WHERE event_type='REFUND_INITIATED' AND refund_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, merchantRefundID)
	if err != nil {
		return nil, err
	}
	e := &model.PaymentEvent{}
	if err := scanEvent(row, e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRefundNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *eventRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentEvent, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentEvent
	for rows.Next() {
		e := new(model.PaymentEvent)
		if err := scanEvent(rows, e); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}

func scanEvent(row rowScanner, e *model.PaymentEvent) error {
	return row.Scan(&e.ID, &e.OrderID, &e.Type, &e.ProviderEventID, &e.AmountPaise, &e.State, &e.RefundID, &e.RawPayload, &e.CreatedAt)
}
