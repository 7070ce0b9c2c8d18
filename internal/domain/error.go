package domain

import "errors"

var (
	// Not-found family (404-equivalent).
	ErrPlanNotFound   = errors.New("plan not found")
	ErrOrderNotFound  = errors.New("payment order not found")
	ErrRefundNotFound = errors.New("refund not found")
	ErrNotFound       = errors.New("entity not found")

	// Business-rule violations (400-equivalent).
	ErrCouponInvalid       = errors.New("coupon invalid or inactive")
	ErrCouponNotStarted    = errors.New("coupon validity window has not started")
	ErrCouponExpired       = errors.New("coupon validity window has passed")
	ErrCouponMinAmount     = errors.New("amount below coupon minimum")
	ErrCouponMaxRedeemed   = errors.New("coupon global redemption cap reached")
	ErrCouponUserLimit     = errors.New("coupon per-user redemption cap reached")
	ErrRepurchaseBlocked   = errors.New("active subscription blocks re-purchase")
	ErrOrderNotRefundable  = errors.New("order is not in a refundable state")
	ErrRefundAmountInvalid = errors.New("refund amount non-positive or exceeds remainder")

	// Provider / configuration.
	ErrProvider      = errors.New("payment provider error")
	ErrConfigMissing = errors.New("payment gateway configuration missing")

	// Auth (401-equivalent).
	ErrWebhookUnauthorized = errors.New("webhook signature invalid")

	// Infrastructure.
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrAlreadyExists      = errors.New("entity already exists")
)

// Code maps a domain error to its stable machine-readable code. Callers
// serialize this in API error responses; unknown errors map to INTERNAL.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrPlanNotFound):
		return "PLAN_NOT_FOUND"
	case errors.Is(err, ErrOrderNotFound):
		return "ORDER_NOT_FOUND"
	case errors.Is(err, ErrRefundNotFound):
		return "REFUND_NOT_FOUND"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrCouponInvalid):
		return "COUPON_INVALID"
	case errors.Is(err, ErrCouponNotStarted):
		return "COUPON_NOT_STARTED"
	case errors.Is(err, ErrCouponExpired):
		return "COUPON_EXPIRED"
	case errors.Is(err, ErrCouponMinAmount):
		return "COUPON_MIN_AMOUNT"
	case errors.Is(err, ErrCouponMaxRedeemed):
		return "COUPON_MAX_REDEEMED"
	case errors.Is(err, ErrCouponUserLimit):
		return "COUPON_USER_LIMIT"
	case errors.Is(err, ErrRepurchaseBlocked):
		return "REPURCHASE_BLOCKED"
	case errors.Is(err, ErrOrderNotRefundable):
		return "ORDER_NOT_REFUNDABLE"
	case errors.Is(err, ErrRefundAmountInvalid):
		return "REFUND_AMOUNT_INVALID"
	case errors.Is(err, ErrProvider):
		return "PROVIDER_ERROR"
	case errors.Is(err, ErrConfigMissing):
		return "CONFIG_MISSING"
	case errors.Is(err, ErrWebhookUnauthorized):
		return "UNAUTHORIZED"
	default:
		return "INTERNAL"
	}
}
