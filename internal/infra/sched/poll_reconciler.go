package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"subscription-payments/internal/domain/ports/repository"
	"subscription-payments/internal/infra/redis"
	"subscription-payments/internal/usecase"
)

const throttleKey = "payments:poll:last_run"

// PollReconciler periodically sweeps the oldest non-terminal, non-expired
// orders and re-drives them through RefreshOrderStatus. This covers webhooks
// that never arrived and processes that crashed mid-reconcile. A failing
// order is logged and skipped, never aborting the batch.
type PollReconciler struct {
	uc        usecase.ReconcileUseCase
	orders    repository.PaymentOrderRepository
	throttle  *redis.Throttle
	interval  time.Duration
	batchSize int
	minAge    time.Duration // how old an order must be before polling it
	log       *zerolog.Logger
}

func NewPollReconciler(
	uc usecase.ReconcileUseCase,
	orders repository.PaymentOrderRepository,
	throttle *redis.Throttle,
	interval time.Duration,
	batchSize int,
	minAge time.Duration,
	logger *zerolog.Logger,
) *PollReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PollReconciler{
		uc:        uc,
		orders:    orders,
		throttle:  throttle,
		interval:  interval,
		batchSize: batchSize,
		minAge:    minAge,
		log:       logger,
	}
}

func (w *PollReconciler) Name() string { return "poll-reconciler" }

// RunOnce is invoked by the scheduler. The redis throttle guards against
// re-entry when multiple instances or overlapping triggers fire early.
func (w *PollReconciler) RunOnce(ctx context.Context) error {
	if w.throttle != nil && !w.throttle.Allow(ctx, throttleKey, w.interval) {
		w.log.Debug().Msg("poll-reconciler: interval not elapsed; skipping")
		return nil
	}

	cutoff := time.Now().Add(-w.minAge)
	batch, err := w.orders.ListReconcilable(ctx, repository.NoTX, time.Now(), w.batchSize)
	if err != nil {
		return err
	}
	for _, o := range batch {
		if o.CreatedAt.After(cutoff) {
			continue // too fresh; give the webhook a chance first
		}
		if _, err := w.uc.RefreshOrderStatus(ctx, o.ID); err != nil {
			w.log.Warn().Err(err).Str("order_id", o.ID).Str("merchant_tx_id", o.MerchantTxID).Msg("poll-reconciler: refresh failed")
			continue
		}
	}
	return nil
}
