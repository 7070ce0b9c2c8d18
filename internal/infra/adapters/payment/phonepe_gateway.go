// File: internal/infra/adapters/payment/phonepe_gateway.go
package payment

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subscription-payments/internal/domain"
	"subscription-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PhonePeGateway)(nil)

// PhonePeGateway implements adapter.PaymentGateway against the PhonePe-style
// REST API: base64-wrapped request bodies signed with an X-VERIFY header
// (SHA256(payload + path + saltKey) + "###" + saltIndex), and webhook
// authorization via SHA256(username:password).
type PhonePeGateway struct {
	merchantID      string
	saltKey         string
	saltIndex       string
	redirectURL     string
	webhookUsername string
	webhookPassword string
	sandbox         bool
	client          *http.Client
}

func NewPhonePeGateway(merchantID, saltKey, saltIndex, redirectURL, webhookUsername, webhookPassword string, sandbox bool) (*PhonePeGateway, error) {
	// Webhook credentials are all-or-nothing; a half-set pair would silently
	// disable signature checking.
	if (webhookUsername == "") != (webhookPassword == "") {
		return nil, errors.New("phonepe: webhook username and password must both be set or both be empty")
	}
	if saltIndex == "" {
		saltIndex = "1"
	}
	return &PhonePeGateway{
		merchantID:      merchantID,
		saltKey:         saltKey,
		saltIndex:       saltIndex,
		redirectURL:     redirectURL,
		webhookUsername: webhookUsername,
		webhookPassword: webhookPassword,
		sandbox:         sandbox,
		client:          &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *PhonePeGateway) Name() string { return "phonepe" }

func (g *PhonePeGateway) endpoint(path string) string {
	base := "https://api.phonepe.com/apis/hermes"
	if g.sandbox {
		base = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	}
	return base + path
}

func (g *PhonePeGateway) verify(payload, path string) string {
	sum := sha256.Sum256([]byte(payload + path + g.saltKey))
	return hex.EncodeToString(sum[:]) + "###" + g.saltIndex
}

func (g *PhonePeGateway) configured() error {
	if g.merchantID == "" || g.saltKey == "" {
		return domain.ErrConfigMissing
	}
	return nil
}

// InitiatePayment calls /pg/v1/pay and returns the pay-page redirect URL.
func (g *PhonePeGateway) InitiatePayment(ctx context.Context, merchantTxID string, amountPaise int64, redirectURL string) (adapter.InitiationResult, error) {
	if err := g.configured(); err != nil {
		return adapter.InitiationResult{}, err
	}
	if redirectURL == "" {
		redirectURL = g.redirectURL
	}
	body, _ := json.Marshal(map[string]any{
		"merchantId":            g.merchantID,
		"merchantTransactionId": merchantTxID,
		"amount":                amountPaise,
		"redirectUrl":           redirectURL,
		"redirectMode":          "REDIRECT",
		"paymentInstrument":     map[string]string{"type": "PAY_PAGE"},
	})
	encoded := base64.StdEncoding.EncodeToString(body)
	reqBody, _ := json.Marshal(map[string]string{"request": encoded})

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("/pg/v1/pay"), strings.NewReader(string(reqBody)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", g.verify(encoded, "/pg/v1/pay"))
	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.InitiationResult{}, err
	}
	defer resp.Body.Close()

	var out struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Data    struct {
			TransactionID      string `json:"transactionId"`
			InstrumentResponse struct {
				RedirectInfo struct {
					URL string `json:"url"`
				} `json:"redirectInfo"`
			} `json:"instrumentResponse"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return adapter.InitiationResult{}, err
	}
	if !out.Success || out.Data.InstrumentResponse.RedirectInfo.URL == "" {
		return adapter.InitiationResult{}, fmt.Errorf("phonepe pay failed: %s", out.Code)
	}
	return adapter.InitiationResult{
		RedirectURL: out.Data.InstrumentResponse.RedirectInfo.URL,
		ProviderRef: out.Data.TransactionID,
	}, nil
}

// CheckStatus calls /pg/v1/status/{merchantId}/{merchantTransactionId}.
func (g *PhonePeGateway) CheckStatus(ctx context.Context, merchantTxID string) (adapter.StatusResult, error) {
	if err := g.configured(); err != nil {
		return adapter.StatusResult{}, err
	}
	path := fmt.Sprintf("/pg/v1/status/%s/%s", g.merchantID, merchantTxID)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(path), nil)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", g.verify("", path))
	req.Header.Set("X-MERCHANT-ID", g.merchantID)
	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.StatusResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.StatusResult{}, err
	}
	var out struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Data    struct {
			State          string `json:"state"`
			ResponseCode   string `json:"responseCode"`
			TransactionID  string `json:"transactionId"`
			Amount         int64  `json:"amount"`
			PaymentDetails []struct {
				TransactionID string `json:"transactionId"`
				State         string `json:"state"`
				Amount        int64  `json:"amount"`
			} `json:"paymentDetails"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return adapter.StatusResult{}, err
	}

	res := adapter.StatusResult{
		State:           out.Data.State,
		ErrorCode:       out.Code,
		SettledAmount:   out.Data.Amount,
		ProviderEventID: out.Data.TransactionID,
		RawPayload:      raw,
	}
	for _, d := range out.Data.PaymentDetails {
		res.Attempts = append(res.Attempts, adapter.PaymentAttempt{
			ProviderTxID: d.TransactionID,
			State:        d.State,
			AmountPaise:  d.Amount,
		})
	}
	// No sub-attempts: synthesize one from the top level so callers always
	// see the provider transaction id when there is one.
	if len(res.Attempts) == 0 && out.Data.TransactionID != "" {
		res.Attempts = append(res.Attempts, adapter.PaymentAttempt{
			ProviderTxID: out.Data.TransactionID,
			State:        out.Data.State,
			AmountPaise:  out.Data.Amount,
		})
	}
	return res, nil
}

// Refund calls /pg/v1/refund against the original merchant transaction.
func (g *PhonePeGateway) Refund(ctx context.Context, merchantRefundID, merchantTxID string, amountPaise int64) (adapter.RefundResult, error) {
	if err := g.configured(); err != nil {
		return adapter.RefundResult{}, err
	}
	body, _ := json.Marshal(map[string]any{
		"merchantId":            g.merchantID,
		"merchantTransactionId": merchantRefundID,
		"originalTransactionId": merchantTxID,
		"amount":                amountPaise,
		"callbackUrl":           g.redirectURL,
	})
	encoded := base64.StdEncoding.EncodeToString(body)
	reqBody, _ := json.Marshal(map[string]string{"request": encoded})

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("/pg/v1/refund"), strings.NewReader(string(reqBody)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", g.verify(encoded, "/pg/v1/refund"))
	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.RefundResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.RefundResult{}, err
	}
	var out struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Data    struct {
			TransactionID string `json:"transactionId"`
			State         string `json:"state"`
			Amount        int64  `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return adapter.RefundResult{}, err
	}
	if !out.Success {
		return adapter.RefundResult{}, fmt.Errorf("phonepe refund failed: %s", out.Code)
	}
	return adapter.RefundResult{
		ProviderRefundID: out.Data.TransactionID,
		State:            out.Data.State,
		AmountPaise:      out.Data.Amount,
		RawPayload:       raw,
	}, nil
}

// GetRefundStatus reuses the status endpoint with the merchant refund id.
func (g *PhonePeGateway) GetRefundStatus(ctx context.Context, merchantRefundID string) (adapter.RefundResult, error) {
	st, err := g.CheckStatus(ctx, merchantRefundID)
	if err != nil {
		return adapter.RefundResult{}, err
	}
	return adapter.RefundResult{
		ProviderRefundID: st.ProviderEventID,
		State:            st.State,
		AmountPaise:      st.SettledAmount,
		RawPayload:       st.RawPayload,
	}, nil
}

// ValidateWebhookSignature checks the Authorization header against
// SHA256(username:password). Returns (nil, nil) when no credentials are
// configured, which means signature checking is skipped.
func (g *PhonePeGateway) ValidateWebhookSignature(authHeader string, rawBody []byte) (map[string]interface{}, error) {
	if g.webhookUsername == "" && g.webhookPassword == "" {
		return nil, nil
	}
	sum := sha256.Sum256([]byte(g.webhookUsername + ":" + g.webhookPassword))
	expected := hex.EncodeToString(sum[:])
	got := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(authHeader), "SHA256"))
	got = strings.TrimSpace(strings.TrimPrefix(got, "="))
	if got == "" || !strings.EqualFold(got, expected) {
		return nil, domain.ErrWebhookUnauthorized
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		// Signature was valid; an unparseable body is the caller's problem.
		return map[string]interface{}{}, nil
	}
	// PhonePe wraps the event in a base64 "response" field.
	if enc, ok := payload["response"].(string); ok {
		if decoded, err := base64.StdEncoding.DecodeString(enc); err == nil {
			var inner map[string]interface{}
			if err := json.Unmarshal(decoded, &inner); err == nil {
				return inner, nil
			}
		}
	}
	return payload, nil
}
