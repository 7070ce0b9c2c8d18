package adapter

import "context"

// PaymentAttempt is one provider-side payment attempt inside a status
// response. The most recent attempt outranks the top-level state during
// normalization.
type PaymentAttempt struct {
	ProviderTxID string
	State        string // raw provider token, e.g. COMPLETED / FAILED
	AmountPaise  int64
}

// StatusResult is the raw provider view of one merchant transaction.
type StatusResult struct {
	State           string // top-level provider state token
	ErrorCode       string // provider error code, when any
	Attempts        []PaymentAttempt
	SettledAmount   int64 // paise actually settled; 0 when unknown
	ProviderEventID string
	RawPayload      []byte
}

// InitiationResult is the handle the caller redirects the payer to.
type InitiationResult struct {
	RedirectURL string
	ProviderRef string
}

type RefundResult struct {
	ProviderRefundID string
	State            string // raw provider token, e.g. PENDING / COMPLETED
	AmountPaise      int64
	RawPayload       []byte
}

// PaymentGateway is the hex port for the payment provider. All calls carry
// caller-side timeouts through ctx; implementations must not block past them.
type PaymentGateway interface {
	Name() string

	// InitiatePayment registers a payment intent for the merchant reference
	// and returns the pay-page redirect handle.
	InitiatePayment(ctx context.Context, merchantTxID string, amountPaise int64, redirectURL string) (InitiationResult, error)
	// CheckStatus fetches the authoritative state of the merchant reference.
	CheckStatus(ctx context.Context, merchantTxID string) (StatusResult, error)
	// Refund initiates a refund against the original merchant reference.
	Refund(ctx context.Context, merchantRefundID, merchantTxID string, amountPaise int64) (RefundResult, error)
	// GetRefundStatus fetches the current state of a previously initiated refund.
	GetRefundStatus(ctx context.Context, merchantRefundID string) (RefundResult, error)
	// ValidateWebhookSignature verifies the webhook authorization header
	// against the raw body. It returns (nil, nil) when no webhook credentials
	// are configured, meaning signature checking is skipped; a mismatch
	// returns domain.ErrWebhookUnauthorized.
	ValidateWebhookSignature(authHeader string, rawBody []byte) (map[string]interface{}, error)
}
