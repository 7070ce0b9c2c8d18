package repository

import (
	"context"

	"subscription-payments/internal/domain/model"
)

type PaymentEventRepository interface {
	// Record appends the event unless (orderID, type, providerEventID) was
	// already recorded. Returns true when a new row was created, false on a
	// duplicate; duplicates are never an error.
	Record(ctx context.Context, tx Tx, e *model.PaymentEvent) (bool, error)
	ListByOrder(ctx context.Context, tx Tx, orderID string) ([]*model.PaymentEvent, error)
	ListByOrderAndType(ctx context.Context, tx Tx, orderID string, t model.EventType) ([]*model.PaymentEvent, error)
	// FindRefundInitiated returns the refund-initiated event carrying the
	// given merchant refund id, or ErrRefundNotFound.
	FindRefundInitiated(ctx context.Context, tx Tx, merchantRefundID string) (*model.PaymentEvent, error)
}
