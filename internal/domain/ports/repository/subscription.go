package repository

import (
	"context"
	"time"

	"subscription-payments/internal/domain/model"
)

type SubscriptionRepository interface {
	// Create inserts the subscription; payment_order_id is unique, so a
	// concurrent activation for the same order reports created=false.
	Create(ctx context.Context, tx Tx, s *model.Subscription) (created bool, err error)
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Subscription, error)
	ListActiveByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	ListActiveByUserAndPlan(ctx context.Context, tx Tx, userID, planID string) ([]*model.Subscription, error)
}

type EntitlementRepository interface {
	Save(ctx context.Context, tx Tx, e *model.Entitlement) error
	ListBySubscription(ctx context.Context, tx Tx, subscriptionID string) ([]*model.Entitlement, error)
	// ExpireBySubscription caps every entitlement window of the subscription
	// at the given instant (lifetime replacement path).
	ExpireBySubscription(ctx context.Context, tx Tx, subscriptionID string, at time.Time) error
}
