package model

import "time"

type CouponType string

const (
	CouponPercent CouponType = "PERCENT"
	CouponFlat    CouponType = "FLAT"
)

type Coupon struct {
	ID             string // UUID
	Code           string // unique, matched case-insensitively at the boundary
	Type           CouponType
	Value          int64      // percent (0..100) or flat paise
	MinAmountPaise int64      // 0 = no minimum
	MaxRedemptions int        // 0 = unlimited
	PerUserLimit   int        // 0 = unlimited
	Active         bool
	StartsAt       *time.Time // nil = no lower bound
	EndsAt         *time.Time // nil = no upper bound
	CreatedAt      time.Time
}

// Discount computes the discount in paise for the given amount. PERCENT
// floors fractional paise; FLAT is clamped so the final amount never goes
// negative.
func (c *Coupon) Discount(amountPaise int64) int64 {
	var d int64
	switch c.Type {
	case CouponPercent:
		d = amountPaise * c.Value / 100
	case CouponFlat:
		d = c.Value
	}
	if d > amountPaise {
		d = amountPaise
	}
	if d < 0 {
		d = 0
	}
	return d
}

// CouponRedemption is created at most once per order, and only when that
// order reaches SUCCESS. Abandoned or failed orders never consume a slot.
type CouponRedemption struct {
	ID            string // UUID
	CouponID      string
	UserID        string
	OrderID       string // unique
	DiscountPaise int64
	CreatedAt     time.Time
}
