package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyPaymentSignature checks the checkout callback signature:
// HMAC-SHA256(secret, orderID + "|" + paymentID), hex encoded.
// An empty secret or signature fails closed.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	if secret == "" || signature == "" || orderID == "" || paymentID == "" {
		return false
	}
	return hmacMatch([]byte(orderID+"|"+paymentID), signature, secret)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// exact raw request bytes.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" || len(body) == 0 {
		return false
	}
	return hmacMatch(body, signature, secret)
}

func hmacMatch(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	// Constant-time compare; the signature is attacker-controlled input.
	return hmac.Equal([]byte(expected), []byte(signature))
}
