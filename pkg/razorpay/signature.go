package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyPaymentSignature checks the checkout callback signature: the hex HMAC-SHA256
// of "<razorpay_order_id>|<razorpay_payment_id>" keyed with the API secret.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" || secret == "" {
		return false
	}
	return verifyHexDigest([]byte(orderID+"|"+paymentID), secret, signature)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the raw
// webhook body keyed with the webhook secret.
func VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	if len(payload) == 0 || signature == "" || secret == "" {
		return false
	}
	return verifyHexDigest(payload, secret, signature)
}

func verifyHexDigest(payload []byte, secret, provided string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(provided))
}
