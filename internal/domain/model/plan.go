package model

import "time"

type EntitlementKind string

const (
	EntitlementNotes    EntitlementKind = "NOTES"
	EntitlementTests    EntitlementKind = "TESTS"
	EntitlementPractice EntitlementKind = "PRACTICE"
	EntitlementAll      EntitlementKind = "ALL"
)

// PlanFeature declares one entitlement a plan grants. Scope narrows the
// grant (e.g. a subject or exam id); empty means unscoped.
type PlanFeature struct {
	Kind  EntitlementKind `yaml:"kind" json:"kind"`
	Scope string          `yaml:"scope" json:"scope"`
}

type Plan struct {
	ID           string // UUID
	Name         string
	PricePaise   int64
	DurationDays int  // ignored for lifetime plans
	Lifetime     bool // explicit lifetime marker
	Features     []PlanFeature
	Active       bool
	CreatedAt    time.Time
}

// IsLifetime reports whether the plan grants a never-expiring subscription.
// Plans imported without the explicit marker fall back to a duration-days
// ceiling.
func (p *Plan) IsLifetime(ceilingDays int) bool {
	if p.Lifetime {
		return true
	}
	return ceilingDays > 0 && p.DurationDays >= ceilingDays
}
