package web

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/model"
	"subscription-payments/internal/domain/ports/repository"
	"subscription-payments/internal/infra/metrics"
	"subscription-payments/internal/logging"
)

// handleWebhook ingests provider callbacks. The webhook is a trigger, never
// an authority: after signature verification and ledger dedup it hands off
// to the reconciler, which re-fetches the authoritative state from the
// provider. Unrecognized payloads are acked with 200 so the provider stops
// retrying garbage.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	payload, err := s.gateway.ValidateWebhookSignature(r.Header.Get("Authorization"), body)
	if err != nil {
		metrics.IncWebhook("unauthorized")
		writeError(w, domain.ErrWebhookUnauthorized)
		return
	}
	if len(payload) == 0 {
		// No webhook credentials configured, or the adapter got nothing out
		// of the body: parse the raw body directly.
		payload = decodeLoose(body)
	}

	merchantTxID := extractMerchantTxID(payload)
	if merchantTxID == "" {
		metrics.IncWebhook("ignored")
		s.log.Warn().Int("body_bytes", len(body)).Msg("webhook without merchant reference ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := logging.WithMerchantTxID(r.Context(), merchantTxID)
	order, err := s.orders.FindByMerchantTxID(ctx, repository.NoTX, merchantTxID)
	if err != nil {
		// Unknown reference: ack so the provider stops retrying, but keep a trace.
		metrics.IncWebhook("ignored")
		logging.With(ctx, s.log).Warn().Msg("webhook for unknown merchant reference")
		w.WriteHeader(http.StatusOK)
		return
	}

	created, err := s.events.Record(ctx, repository.NoTX, &model.PaymentEvent{
		ID:              uuid.NewString(),
		OrderID:         order.ID,
		Type:            model.EventWebhook,
		ProviderEventID: providerEventID(payload, body),
		State:           extractState(payload),
		RawPayload:      body,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !created {
		// Exact redelivery: already processed, nothing left to do.
		metrics.IncWebhook("duplicate")
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := s.reconcileUC.RefreshOrderStatus(ctx, order.ID); err != nil {
		// The ledger row is in; signal the provider to redeliver so the
		// status is re-fetched, with the poller covering the gap meanwhile.
		writeError(w, err)
		return
	}

	metrics.IncWebhook("accepted")
	w.WriteHeader(http.StatusOK)
}

// decodeLoose parses the body as JSON if possible. Some senders
// double-encode and deliver the event as a JSON string holding the object;
// that form gets a second unmarshal. Anything else yields an empty map
// rather than an error, since the payload is advisory only.
func decodeLoose(body []byte) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err == nil {
		return m
	}
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return m
		}
	}
	return map[string]interface{}{}
}

// nested returns the payload field as a map, unwrapping a string-encoded
// nest the same way decodeLoose unwraps a string-encoded body.
func nested(payload map[string]interface{}, key string) map[string]interface{} {
	switch inner := payload[key].(type) {
	case map[string]interface{}:
		return inner
	case string:
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(inner), &m); err == nil {
			return m
		}
	}
	return nil
}

// extractMerchantTxID digs the merchant reference out of the known payload
// shapes: top-level, nested under "data", or nested under "payload".
func extractMerchantTxID(payload map[string]interface{}) string {
	for _, key := range []string{"merchantTransactionId", "merchant_transaction_id", "transactionId"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	for _, nest := range []string{"data", "payload"} {
		if inner := nested(payload, nest); inner != nil {
			if v := extractMerchantTxID(inner); v != "" {
				return v
			}
		}
	}
	return ""
}

func extractState(payload map[string]interface{}) string {
	for _, key := range []string{"state", "code", "status"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	if inner := nested(payload, "data"); inner != nil {
		return extractState(inner)
	}
	return ""
}

// providerEventID prefers an explicit event id from the payload; absent one,
// the body hash stands in so exact redeliveries dedup and distinct payloads
// do not.
func providerEventID(payload map[string]interface{}, body []byte) string {
	for _, key := range []string{"eventId", "event_id", "notificationId"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
