package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns hex(hmac_sha256(secret, payload)), the scheme Razorpay uses for
// checkout and webhook signatures. Dev clients and tests use it to sign
// payloads for the noop gateway.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// CheckoutSignature is the signature the checkout widget returns for a payment.
func CheckoutSignature(secret, orderID, paymentID string) string {
	return Sign(secret, []byte(orderID+"|"+paymentID))
}
