package repository

import (
	"context"
	"time"

	"subscription-payments/internal/domain/model"
)

type PaymentOrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.PaymentOrder) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentOrder, error)
	FindByMerchantTxID(ctx context.Context, tx Tx, merchantTxID string) (*model.PaymentOrder, error)
	// FindReusableByIdempotencyKey returns the non-terminal, non-expired order
	// carrying the given key for the user, or ErrOrderNotFound.
	FindReusableByIdempotencyKey(ctx context.Context, tx Tx, userID, key string, now time.Time) (*model.PaymentOrder, error)
	// FindLatestReusable returns the most recent non-terminal, non-expired
	// order for the (user, plan) pair, or ErrOrderNotFound.
	FindLatestReusable(ctx context.Context, tx Tx, userID, planID string, now time.Time) (*model.PaymentOrder, error)
	// UpdateStatus persists a status transition decided by the state machine.
	// finalAmount and completedAt are applied only when non-nil.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.OrderStatus, finalAmount *int64, completedAt *time.Time) error
	// ListReconcilable returns the oldest non-terminal, non-expired orders
	// for the poll reconciler, oldest first.
	ListReconcilable(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.PaymentOrder, error)
}

type PaymentTransactionRepository interface {
	// Upsert stores the attempt keyed by ProviderTxID; a later observation of
	// the same provider transaction overwrites status and payload. Attempts
	// without a ProviderTxID are appended as fresh rows.
	Upsert(ctx context.Context, tx Tx, t *model.PaymentTransaction) error
	ListByOrder(ctx context.Context, tx Tx, orderID string) ([]*model.PaymentTransaction, error)
}
