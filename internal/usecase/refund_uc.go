// File: internal/usecase/refund_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/adapter"
	"subscription-payments/internal/domain/ports/repository"
	"subscription-payments/internal/infra/metrics"
)

// Compile-time check
var _ RefundUseCase = (*refundUC)(nil)

// RefundResult is the caller-facing view of one refund.
type RefundResult struct {
	OrderID          string
	MerchantRefundID string
	ProviderRefundID string
	State            string
	OrderStatus      model.OrderStatus
}

type RefundUseCase interface {
	// RefundOrder initiates a (possibly partial) refund. amountPaise nil
	// means the full remaining refundable amount. A repeat call with the
	// same merchantRefundID returns the refund's current status without a
	// second provider refund call.
	RefundOrder(ctx context.Context, orderID string, amountPaise *int64, reason, merchantRefundID string) (*RefundResult, error)
	// GetRefundStatus polls the provider for a previously initiated refund,
	// appends the observation to the ledger, and flips the order to REFUNDED
	// once cumulative successful refunds cover the full final amount.
	GetRefundStatus(ctx context.Context, merchantRefundID string) (*RefundResult, error)
}

type refundUC struct {
	orders  repository.PaymentOrderRepository
	events  repository.PaymentEventRepository
	gateway adapter.PaymentGateway
	log     *zerolog.Logger
}

func NewRefundUseCase(
	orders repository.PaymentOrderRepository,
	events repository.PaymentEventRepository,
	gateway adapter.PaymentGateway,
	logger *zerolog.Logger,
) *refundUC {
	return &refundUC{orders: orders, events: events, gateway: gateway, log: logger}
}

func (u *refundUC) RefundOrder(ctx context.Context, orderID string, amountPaise *int64, reason, merchantRefundID string) (*RefundResult, error) {
	order, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status != model.OrderStatusSuccess && order.Status != model.OrderStatusRefunded {
		return nil, domain.ErrOrderNotRefundable
	}

	// A caller-supplied refund id already on the ledger means this is a
	// retried request: report the existing refund, no new provider call.
	if merchantRefundID != "" {
		if _, err := u.events.FindRefundInitiated(ctx, repository.NoTX, merchantRefundID); err == nil {
			return u.GetRefundStatus(ctx, merchantRefundID)
		}
	} else {
		merchantRefundID = ulid.Make().String()
	}

	refunded, err := u.successfulRefundTotal(ctx, orderID)
	if err != nil {
		return nil, err
	}
	remaining := order.FinalAmountPaise - refunded
	amount := remaining
	if amountPaise != nil {
		amount = *amountPaise
	}
	if amount <= 0 || amount > remaining {
		return nil, domain.ErrRefundAmountInvalid
	}

	res, err := u.gateway.Refund(ctx, merchantRefundID, order.MerchantTxID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}

	now := time.Now()
	if _, err := u.events.Record(ctx, repository.NoTX, &model.PaymentEvent{
		ID:              uuid.NewString(),
		OrderID:         order.ID,
		Type:            model.EventRefundInitiated,
		ProviderEventID: merchantRefundID,
		AmountPaise:     amount,
		State:           res.State,
		RefundID:        merchantRefundID,
		RawPayload:      res.RawPayload,
		CreatedAt:       now,
	}); err != nil {
		return nil, err
	}
	metrics.IncRefund(res.State)
	u.log.Info().
		Str("order_id", order.ID).
		Str("merchant_refund_id", merchantRefundID).
		Int64("amount_paise", amount).
		Str("reason", reason).
		Msg("refund initiated")

	// Some providers settle instantly; fold the initiation response into the
	// ledger the same way a later status poll would.
	status, err := u.observeRefundState(ctx, order, merchantRefundID, res)
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		OrderID:          order.ID,
		MerchantRefundID: merchantRefundID,
		ProviderRefundID: res.ProviderRefundID,
		State:            res.State,
		OrderStatus:      status,
	}, nil
}

func (u *refundUC) GetRefundStatus(ctx context.Context, merchantRefundID string) (*RefundResult, error) {
	initiated, err := u.events.FindRefundInitiated(ctx, repository.NoTX, merchantRefundID)
	if err != nil {
		return nil, domain.ErrRefundNotFound
	}
	order, err := u.orders.FindByID(ctx, repository.NoTX, initiated.OrderID)
	if err != nil {
		return nil, domain.ErrOrderNotFound
	}

	res, err := u.gateway.GetRefundStatus(ctx, merchantRefundID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	if res.AmountPaise == 0 {
		res.AmountPaise = initiated.AmountPaise
	}

	status, err := u.observeRefundState(ctx, order, merchantRefundID, res)
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		OrderID:          order.ID,
		MerchantRefundID: merchantRefundID,
		ProviderRefundID: res.ProviderRefundID,
		State:            res.State,
		OrderStatus:      status,
	}, nil
}

// observeRefundState appends the refund observation to the ledger (deduped
// by refund id + normalized state, so repeating an identical observation is
// a no-op while genuine state changes append) and drives the order to
// REFUNDED through the state machine once fully refunded.
func (u *refundUC) observeRefundState(ctx context.Context, order *model.PaymentOrder, merchantRefundID string, res adapter.RefundResult) (model.OrderStatus, error) {
	state := strings.ToUpper(strings.TrimSpace(res.State))
	if _, err := u.events.Record(ctx, repository.NoTX, &model.PaymentEvent{
		ID:              uuid.NewString(),
		OrderID:         order.ID,
		Type:            model.EventRefundStatus,
		ProviderEventID: merchantRefundID + ":" + state,
		AmountPaise:     res.AmountPaise,
		State:           state,
		RefundID:        merchantRefundID,
		RawPayload:      res.RawPayload,
		CreatedAt:       time.Now(),
	}); err != nil {
		return order.Status, err
	}

	refunded, err := u.successfulRefundTotal(ctx, order.ID)
	if err != nil {
		return order.Status, err
	}
	if refunded >= order.FinalAmountPaise {
		next := model.NextStatus(order.Status, model.OrderStatusRefunded)
		if next != order.Status {
			now := time.Now()
			if err := u.orders.UpdateStatus(ctx, repository.NoTX, order.ID, next, nil, &now); err != nil {
				return order.Status, err
			}
			order.Status = next
			u.log.Info().Str("order_id", order.ID).Int64("refunded_paise", refunded).Msg("order fully refunded")
		}
	}
	return order.Status, nil
}

// successfulRefundTotal derives the cumulative successfully-refunded amount
// from the event ledger: refund-status events, deduplicated by refund id,
// counting each refund once when any of its observations is a success token.
func (u *refundUC) successfulRefundTotal(ctx context.Context, orderID string) (int64, error) {
	events, err := u.events.ListByOrderAndType(ctx, repository.NoTX, orderID, model.EventRefundStatus)
	if err != nil {
		return 0, err
	}
	succeeded := make(map[string]int64)
	for _, e := range events {
		if e.RefundID == "" || !isRefundSuccess(e.State) {
			continue
		}
		succeeded[e.RefundID] = e.AmountPaise
	}
	var total int64
	for _, amt := range succeeded {
		total += amt
	}
	return total, nil
}

func isRefundSuccess(state string) bool {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "COMPLETED", "SUCCESS", "DONE", "REFUND_COMPLETED":
		return true
	}
	return false
}
