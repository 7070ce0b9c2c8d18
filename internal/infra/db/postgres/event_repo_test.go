//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
)

func TestEventRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewEventRepo(testPool)
	orders := NewOrderRepo(testPool)

	seedOrder := func(t *testing.T) *model.PaymentOrder {
		t.Helper()
		cleanup(t)
		plan := seedPlan(t)
		order := newOrder(plan.ID)
		if err := orders.Save(ctx, nil, order); err != nil {
			t.Fatalf("save order: %v", err)
		}
		return order
	}

	t.Run("should record an event once and report duplicates", func(t *testing.T) {
		order := seedOrder(t)

		event := &model.PaymentEvent{
			ID:              uuid.NewString(),
			OrderID:         order.ID,
			Type:            model.EventWebhook,
			ProviderEventID: "evt-1",
			State:           "COMPLETED",
			CreatedAt:       time.Now(),
		}
		created, err := repo.Record(ctx, nil, event)
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if !created {
			t.Fatal("expected the first record to create a row")
		}

		// Redelivery: same (order, type, provider event id) under a fresh row id.
		dup := *event
		dup.ID = uuid.NewString()
		created, err = repo.Record(ctx, nil, &dup)
		if err != nil {
			t.Fatalf("Record (duplicate) failed: %v", err)
		}
		if created {
			t.Error("expected a duplicate to be a no-op")
		}

		events, err := repo.ListByOrder(ctx, nil, order.ID)
		if err != nil {
			t.Fatalf("ListByOrder failed: %v", err)
		}
		if len(events) != 1 {
			t.Errorf("expected one ledger row, got %d", len(events))
		}
	})

	t.Run("should keep distinct provider events apart", func(t *testing.T) {
		order := seedOrder(t)

		for _, evtID := range []string{"evt-1", "evt-2"} {
			created, err := repo.Record(ctx, nil, &model.PaymentEvent{
				ID: uuid.NewString(), OrderID: order.ID, Type: model.EventWebhook,
				ProviderEventID: evtID, CreatedAt: time.Now(),
			})
			if err != nil || !created {
				t.Fatalf("record %s: created=%v err=%v", evtID, created, err)
			}
		}

		events, _ := repo.ListByOrderAndType(ctx, nil, order.ID, model.EventWebhook)
		if len(events) != 2 {
			t.Errorf("expected two rows, got %d", len(events))
		}
	})

	t.Run("should find a refund initiation by merchant refund id", func(t *testing.T) {
		order := seedOrder(t)

		created, err := repo.Record(ctx, nil, &model.PaymentEvent{
			ID: uuid.NewString(), OrderID: order.ID, Type: model.EventRefundInitiated,
			ProviderEventID: "rf-1", RefundID: "rf-1", AmountPaise: 10000, CreatedAt: time.Now(),
		})
		if err != nil || !created {
			t.Fatalf("record initiation: created=%v err=%v", created, err)
		}

		found, err := repo.FindRefundInitiated(ctx, nil, "rf-1")
		if err != nil {
			t.Fatalf("FindRefundInitiated failed: %v", err)
		}
		if found.OrderID != order.ID || found.AmountPaise != 10000 {
			t.Error("found the wrong refund initiation")
		}

		if _, err := repo.FindRefundInitiated(ctx, nil, "rf-missing"); !errors.Is(err, domain.ErrRefundNotFound) {
			t.Errorf("expected ErrRefundNotFound, got %v", err)
		}
	})
}

func TestSubscriptionRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewSubscriptionRepo(testPool)
	orders := NewOrderRepo(testPool)

	t.Run("should create at most one subscription per payment order", func(t *testing.T) {
		cleanup(t)
		plan := seedPlan(t)
		order := newOrder(plan.ID)
		if err := orders.Save(ctx, nil, order); err != nil {
			t.Fatalf("save order: %v", err)
		}

		sub := &model.Subscription{
			ID: uuid.NewString(), UserID: "user-1", PlanID: plan.ID, PaymentOrderID: order.ID,
			Status: model.SubscriptionActive, StartsAt: time.Now(), CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		created, err := repo.Create(ctx, nil, sub)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if !created {
			t.Fatal("expected the first create to win")
		}

		// A concurrent loser hits the unique payment_order_id constraint.
		loser := *sub
		loser.ID = uuid.NewString()
		created, err = repo.Create(ctx, nil, &loser)
		if err != nil {
			t.Fatalf("Create (loser) failed: %v", err)
		}
		if created {
			t.Error("expected the second create to lose")
		}

		winner, err := repo.FindByOrderID(ctx, nil, order.ID)
		if err != nil {
			t.Fatalf("FindByOrderID failed: %v", err)
		}
		if winner.ID != sub.ID {
			t.Error("expected the winner's row to survive")
		}
	})
}
