//go:build !integration

package security_test

import (
	"errors"
	"strings"
	"testing"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/infra/security"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"payment.captured","payload":{}}`)
	sig := security.Sign(body, secret)

	t.Run("should accept the signature of the exact body", func(t *testing.T) {
		if !security.VerifySignature(body, sig, secret) {
			t.Fatal("expected signature to verify")
		}
	})

	t.Run("should accept upper-case hex", func(t *testing.T) {
		if !security.VerifySignature(body, strings.ToUpper(sig), secret) {
			t.Fatal("expected upper-case hex to verify")
		}
	})

	t.Run("should reject a re-serialised body", func(t *testing.T) {
		reformatted := []byte(`{"event": "payment.captured", "payload": {}}`)
		if security.VerifySignature(reformatted, sig, secret) {
			t.Fatal("expected whitespace change to invalidate the signature")
		}
	})

	t.Run("should reject a different secret", func(t *testing.T) {
		if security.VerifySignature(body, sig, "other") {
			t.Fatal("expected a wrong secret to fail")
		}
	})

	t.Run("should reject malformed hex and wrong length", func(t *testing.T) {
		for _, bad := range []string{"zz", sig[:10], sig + "00", ""} {
			if security.VerifySignature(body, bad, secret) {
				t.Errorf("expected %q to be rejected", bad)
			}
		}
	})

	t.Run("should reject everything when the secret is empty", func(t *testing.T) {
		if security.VerifySignature(body, security.Sign(body, ""), "") {
			t.Fatal("expected empty secret to fail closed")
		}
	})
}

func TestVerifySignature_AnyBodyChange(t *testing.T) {
	secret := "s"
	body := []byte("0123456789abcdef")
	sig := security.Sign(body, secret)
	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		if security.VerifySignature(mutated, sig, secret) {
			t.Fatalf("expected mutation at byte %d to be rejected", i)
		}
	}
}

func TestCheckWebhookSignature(t *testing.T) {
	body := []byte(`{}`)
	if err := security.CheckWebhookSignature(body, "", "s"); !errors.Is(err, domain.ErrMissingSignature) {
		t.Errorf("expected ErrMissingSignature, but got %v", err)
	}
	if err := security.CheckWebhookSignature(body, "not-hex", "s"); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for bad hex, but got %v", err)
	}
	if err := security.CheckWebhookSignature(body, security.Sign([]byte("x"), "s"), "s"); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for mismatch, but got %v", err)
	}
	if err := security.CheckWebhookSignature(body, security.Sign(body, "s"), "s"); err != nil {
		t.Errorf("expected no error, but got %v", err)
	}
}

func TestVerifyCheckoutSignature(t *testing.T) {
	sig := security.Sign([]byte("order_1|pay_1"), "key_secret")
	if !security.VerifyCheckoutSignature("order_1", "pay_1", sig, "key_secret") {
		t.Error("expected checkout signature to verify")
	}
	if security.VerifyCheckoutSignature("order_1", "pay_2", sig, "key_secret") {
		t.Error("expected a different payment id to fail")
	}
}

func TestPayloadSealer(t *testing.T) {
	s, err := security.NewPayloadSealer("passphrase of any length")
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	sealed, err := s.Seal(`{"contact":"+919876543210"}`)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if strings.Contains(sealed, "9876543210") {
		t.Fatal("expected plaintext not to appear in sealed output")
	}
	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != `{"contact":"+919876543210"}` {
		t.Errorf("unexpected plaintext: %s", opened)
	}
	if _, err := security.NewPayloadSealer(""); err == nil {
		t.Error("expected an empty passphrase to be rejected")
	}
}
