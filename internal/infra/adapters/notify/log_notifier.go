package notify

import (
	"context"

	"github.com/rs/zerolog"

	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*LogNotifier)(nil)

// LogNotifier records notices instead of delivering them. Actual delivery
// (email) is a separate collaborator; this keeps the payments core honest
// about fire-and-forget semantics during dev runs and tests.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) PaymentSucceeded(ctx context.Context, order *model.PaymentOrder) {
	n.log.Info().
		Str("order_id", order.ID).
		Str("user_id", order.UserID).
		Int64("final_amount_paise", order.FinalAmountPaise).
		Msg("notice: payment succeeded")
}

func (n *LogNotifier) SubscriptionActivated(ctx context.Context, sub *model.Subscription) {
	n.log.Info().
		Str("subscription_id", sub.ID).
		Str("user_id", sub.UserID).
		Str("plan_id", sub.PlanID).
		Msg("notice: subscription activated")
}
