package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"counselling-payments/internal/domain"
)

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a hex HMAC-SHA256 over the exact raw body.
// Both sides are compared as decoded bytes with hmac.Equal, so timing does
// not depend on where the first mismatch sits.
func VerifySignature(body []byte, signatureHex, secret string) bool {
	if secret == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// CheckWebhookSignature maps a header value to the webhook error taxonomy.
// Decode errors and mismatches are indistinguishable to the caller.
func CheckWebhookSignature(body []byte, header, secret string) error {
	if strings.TrimSpace(header) == "" {
		return domain.ErrMissingSignature
	}
	if !VerifySignature(body, header, secret) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// VerifyCheckoutSignature validates the signature the checkout widget hands
// back to the client: HMAC-SHA256(keySecret, orderID + "|" + paymentID).
func VerifyCheckoutSignature(orderID, paymentID, signatureHex, keySecret string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return VerifySignature([]byte(orderID+"|"+paymentID), signatureHex, keySecret)
}
