package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "ACTIVE"
	SubscriptionExpired SubscriptionStatus = "EXPIRED"
)

// Subscription is created at most once per successful order; the
// PaymentOrderID column carries a unique constraint so concurrent
// reconciliation triggers cannot double-activate.
type Subscription struct {
	ID             string // UUID
	UserID         string
	PlanID         string
	PaymentOrderID string // unique
	Status         SubscriptionStatus
	StartsAt       time.Time
	EndsAt         *time.Time // nil = lifetime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ActiveAt reports whether the subscription covers the given instant.
func (s *Subscription) ActiveAt(now time.Time) bool {
	if s.Status != SubscriptionActive {
		return false
	}
	if now.Before(s.StartsAt) {
		return false
	}
	return s.EndsAt == nil || now.Before(*s.EndsAt)
}

// IsLifetime reports whether the subscription never expires.
func (s *Subscription) IsLifetime() bool { return s.EndsAt == nil }

// Entitlement grants a capability kind with an optional scope. Its window is
// independent of the subscription's, though activation aligns them.
type Entitlement struct {
	ID             string // UUID
	SubscriptionID string
	UserID         string
	Kind           EntitlementKind
	Scope          string
	StartsAt       time.Time
	EndsAt         *time.Time // nil = lifetime
	CreatedAt      time.Time
}
