package model

import "time"

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "PENDING"
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

// PaymentTransaction is one row per distinct provider payment attempt,
// keyed by ProviderTxID when the provider supplies one. Later observations
// of the same provider transaction overwrite status (upsert, not append).
type PaymentTransaction struct {
	ID           string // UUID
	OrderID      string
	ProviderTxID string // unique when present; empty for anonymous observations
	Status       TransactionStatus
	AmountPaise  int64
	RawPayload   []byte // provider response as received, for audit
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type EventType string

const (
	EventWebhook         EventType = "WEBHOOK"
	EventRefundInitiated EventType = "REFUND_INITIATED"
	EventRefundStatus    EventType = "REFUND_STATUS"
	EventAdminAction     EventType = "ADMIN_ACTION"
)

// PaymentEvent is the append-only ledger of everything that happened to an
// order. The (OrderID, Type, ProviderEventID) triple is unique: recording
// the same provider event twice is a no-op, which is the sole dedup
// mechanism against at-least-once delivery.
type PaymentEvent struct {
	ID              string // UUID
	OrderID         string
	Type            EventType
	ProviderEventID string
	AmountPaise     int64  // refund events carry the amount observed
	State           string // normalized provider state for this event
	RefundID        string // merchant refund id, for refund events
	RawPayload      []byte
	CreatedAt       time.Time
}
