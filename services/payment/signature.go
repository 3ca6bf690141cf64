package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// OrderSignatureMessage is the canonical string the gateway signs on checkout. The format is fixed by the gateway.
func OrderSignatureMessage(orderID, paymentID string) string {
	return orderID + "|" + paymentID
}

// ComputeSignature returns the hex HMAC-SHA256 of message under secret.
func ComputeSignature(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time. An empty signature or secret never verifies.
func VerifySignature(message, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := ComputeSignature(message, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
