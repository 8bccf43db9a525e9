package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignWebhookPayload computes the hex-encoded HMAC-SHA512 of payload keyed by
// secretKey. Paystack sends this value in the x-paystack-signature header.
func SignWebhookPayload(payload []byte, secretKey string) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature reports whether signature matches the HMAC-SHA512 of
// the raw payload under secretKey. The comparison is constant time.
func VerifyWebhookSignature(payload []byte, signature, secretKey string) bool {
	expected := SignWebhookPayload(payload, secretKey)
	return hmac.Equal([]byte(expected), []byte(signature))
}
