package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const signaturePrefix = "sha256="

// SignWebhook computes the signature the processor attaches to a webhook:
// "sha256=" + hex(HMAC-SHA256(secret, body)).
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks an inbound webhook signature against the raw
// request body, byte-for-byte as received. Re-serializing the parsed JSON can
// reorder keys or change whitespace and invalidate an authentic signature, so
// callers must pass the original bytes. Comparison is constant-time; any
// malformed or missing signature is simply invalid, never an error.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignWebhook(secret, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}
