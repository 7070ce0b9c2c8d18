//go:build !integration

package payment

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"

	"subscription-payments/internal/domain"
)

func TestNewPhonePeGateway(t *testing.T) {
	t.Run("should reject a half-set webhook credential pair", func(t *testing.T) {
		if _, err := NewPhonePeGateway("m", "salt", "1", "", "hook-user", "", false); err == nil {
			t.Error("expected an error for username without password")
		}
		if _, err := NewPhonePeGateway("m", "salt", "1", "", "", "hook-pass", false); err == nil {
			t.Error("expected an error for password without username")
		}
	})

	t.Run("should default the salt index to 1", func(t *testing.T) {
		g, err := NewPhonePeGateway("m", "salt", "", "", "", "", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if g.saltIndex != "1" {
			t.Errorf("expected salt index '1', got %q", g.saltIndex)
		}
	})
}

func TestPhonePeGateway_Verify(t *testing.T) {
	g, _ := NewPhonePeGateway("m", "secret-salt", "2", "", "", "", false)

	payload := base64.StdEncoding.EncodeToString([]byte(`{"amount":100}`))
	sum := sha256.Sum256([]byte(payload + "/pg/v1/pay" + "secret-salt"))
	want := hex.EncodeToString(sum[:]) + "###2"

	if got := g.verify(payload, "/pg/v1/pay"); got != want {
		t.Errorf("verify() = %q, want %q", got, want)
	}
}

func TestPhonePeGateway_ConfigMissing(t *testing.T) {
	g, _ := NewPhonePeGateway("", "", "1", "", "", "", false)
	ctx := context.Background()

	if _, err := g.InitiatePayment(ctx, "MT-1", 100, ""); !errors.Is(err, domain.ErrConfigMissing) {
		t.Errorf("InitiatePayment: expected ErrConfigMissing, got %v", err)
	}
	if _, err := g.CheckStatus(ctx, "MT-1"); !errors.Is(err, domain.ErrConfigMissing) {
		t.Errorf("CheckStatus: expected ErrConfigMissing, got %v", err)
	}
	if _, err := g.Refund(ctx, "RF-1", "MT-1", 100); !errors.Is(err, domain.ErrConfigMissing) {
		t.Errorf("Refund: expected ErrConfigMissing, got %v", err)
	}
}

func TestPhonePeGateway_ValidateWebhookSignature(t *testing.T) {
	sum := sha256.Sum256([]byte("hook-user:hook-pass"))
	validAuth := hex.EncodeToString(sum[:])

	t.Run("should skip verification when no credentials are configured", func(t *testing.T) {
		g, _ := NewPhonePeGateway("m", "salt", "1", "", "", "", false)
		payload, err := g.ValidateWebhookSignature("anything", []byte(`{}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload != nil {
			t.Error("expected a nil payload to signal skipped verification")
		}
	})

	t.Run("should accept a matching signature and parse the body", func(t *testing.T) {
		g, _ := NewPhonePeGateway("m", "salt", "1", "", "hook-user", "hook-pass", false)
		payload, err := g.ValidateWebhookSignature(validAuth, []byte(`{"merchantTransactionId":"MT-1"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload["merchantTransactionId"] != "MT-1" {
			t.Errorf("expected parsed payload, got %+v", payload)
		}
	})

	t.Run("should accept the SHA256= prefixed header form", func(t *testing.T) {
		g, _ := NewPhonePeGateway("m", "salt", "1", "", "hook-user", "hook-pass", false)
		if _, err := g.ValidateWebhookSignature("SHA256="+validAuth, []byte(`{}`)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("should reject a wrong or missing signature", func(t *testing.T) {
		g, _ := NewPhonePeGateway("m", "salt", "1", "", "hook-user", "hook-pass", false)
		if _, err := g.ValidateWebhookSignature("deadbeef", []byte(`{}`)); !errors.Is(err, domain.ErrWebhookUnauthorized) {
			t.Errorf("wrong signature: expected ErrWebhookUnauthorized, got %v", err)
		}
		if _, err := g.ValidateWebhookSignature("", []byte(`{}`)); !errors.Is(err, domain.ErrWebhookUnauthorized) {
			t.Errorf("missing header: expected ErrWebhookUnauthorized, got %v", err)
		}
	})

	t.Run("should unwrap the base64 response envelope", func(t *testing.T) {
		g, _ := NewPhonePeGateway("m", "salt", "1", "", "hook-user", "hook-pass", false)
		inner := base64.StdEncoding.EncodeToString([]byte(`{"merchantTransactionId":"MT-9","state":"COMPLETED"}`))
		payload, err := g.ValidateWebhookSignature(validAuth, []byte(`{"response":"`+inner+`"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload["merchantTransactionId"] != "MT-9" {
			t.Errorf("expected the unwrapped event, got %+v", payload)
		}
	})
}

func TestNoopGateway(t *testing.T) {
	ctx := context.Background()
	g := NewNoopGateway()

	init, err := g.InitiatePayment(ctx, "MT-1", 49900, "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if init.RedirectURL == "" {
		t.Error("expected a redirect URL")
	}

	st, err := g.CheckStatus(ctx, "MT-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != "COMPLETED" {
		t.Errorf("expected COMPLETED on first check, got %s", st.State)
	}

	rf, err := g.Refund(ctx, "RF-1", "MT-1", 49900)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if rf.State != "COMPLETED" {
		t.Errorf("expected an instant refund, got %s", rf.State)
	}
}
