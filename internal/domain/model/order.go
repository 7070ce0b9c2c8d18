package model

import "time"

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"   // row exists, provider not yet called
	OrderStatusPending   OrderStatus = "PENDING"   // provider acknowledged initiation
	OrderStatusSuccess   OrderStatus = "SUCCESS"   // settled at provider
	OrderStatusFailed    OrderStatus = "FAILED"    // provider reported failure
	OrderStatusExpired   OrderStatus = "EXPIRED"   // provider reported expiry
	OrderStatusCancelled OrderStatus = "CANCELLED" // user/admin cancelled
	OrderStatusRefunded  OrderStatus = "REFUNDED"  // fully refunded after success
)

// allowedNext is the forward-only successor table. Anything absent here is
// an ignored transition, never an error: reconciliation callers must be safe
// to invoke redundantly and out of order.
var allowedNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusCreated: {
		OrderStatusPending:   true,
		OrderStatusSuccess:   true,
		OrderStatusFailed:    true,
		OrderStatusExpired:   true,
		OrderStatusCancelled: true,
	},
	OrderStatusPending: {
		OrderStatusSuccess:   true,
		OrderStatusFailed:    true,
		OrderStatusExpired:   true,
		OrderStatusCancelled: true,
		OrderStatusRefunded:  true,
	},
	OrderStatusSuccess: {
		OrderStatusRefunded: true,
	},
}

// NextStatus returns the status to persist given the current status and a
// proposed one. Same-status proposals and disallowed transitions both keep
// the current status, so a stale PENDING observation arriving after SUCCESS
// cannot regress the order.
func NextStatus(current, proposed OrderStatus) OrderStatus {
	if current == proposed {
		return current
	}
	if allowedNext[current][proposed] {
		return proposed
	}
	return current
}

// IsTerminal reports whether a status ends the primary payment lifecycle.
// SUCCESS is terminal here even though it may still move to REFUNDED; the
// refund path goes through the ledger, not through reconciliation.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusSuccess, OrderStatusFailed, OrderStatusExpired, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// PaymentOrder is the canonical record of one purchase intent. Its
// MerchantTxID is immutable and globally unique: it is the idempotency
// anchor shared with the gateway across every reconciliation path.
type PaymentOrder struct {
	ID               string // UUID
	UserID           string
	PlanID           string
	CouponCode       string // empty when no coupon applied
	MerchantTxID     string // ULID, unique, shared with the provider
	AmountPaise      int64  // plan price before discount
	FinalAmountPaise int64  // post-discount; later corrected to settled amount
	Status           OrderStatus
	IdempotencyKey   string // optional caller-supplied dedup token
	RedirectURL      string // provider pay-page handle, set on initiation
	ExpiresAt        time.Time
	CompletedAt      *time.Time // stamped on first terminal transition
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Metadata         map[string]string
}

// Reusable reports whether this order can absorb a new checkout attempt for
// the same purchase intent instead of creating a parallel in-flight order.
func (o *PaymentOrder) Reusable(now time.Time) bool {
	if o.Status.IsTerminal() {
		return false
	}
	return o.ExpiresAt.IsZero() || now.Before(o.ExpiresAt)
}
