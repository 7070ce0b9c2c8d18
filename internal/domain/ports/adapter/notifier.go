package adapter

import (
	"context"

	"subscription-payments/internal/domain/model"
)

// Notifier is the fire-and-forget notification collaborator. Delivery
// failures are the collaborator's problem; the payments core never blocks
// or fails on them.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, order *model.PaymentOrder)
	SubscriptionActivated(ctx context.Context, sub *model.Subscription)
}
