package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyPaymentSignature(t *testing.T) {
	secret := "test-secret"
	orderID := "order_ABC123"
	paymentID := "pay_XYZ789"
	good := sign(orderID+"|"+paymentID, secret)

	if !VerifyPaymentSignature(orderID, paymentID, good, secret) {
		t.Fatal("expected valid signature to verify")
	}
	if VerifyPaymentSignature(orderID, paymentID, good, "wrong-secret") {
		t.Fatal("expected mismatched secret to fail")
	}
	if VerifyPaymentSignature(orderID, "pay_other", good, secret) {
		t.Fatal("expected mismatched payment id to fail")
	}
	if VerifyPaymentSignature("", paymentID, good, secret) {
		t.Fatal("expected empty order id to fail")
	}
	if VerifyPaymentSignature(orderID, paymentID, "", secret) {
		t.Fatal("expected empty signature to fail")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "webhook-secret"
	body := []byte(`{"event":"payment.captured"}`)
	good := sign(string(body), secret)

	if !VerifyWebhookSignature(body, good, secret) {
		t.Fatal("expected valid webhook signature to verify")
	}
	if VerifyWebhookSignature(body, good, "other") {
		t.Fatal("expected wrong secret to fail")
	}
	if VerifyWebhookSignature(nil, good, secret) {
		t.Fatal("expected empty payload to fail")
	}
}

func TestParseGatewayOrder(t *testing.T) {
	order, err := parseGatewayOrder(map[string]interface{}{
		"id":       "order_123",
		"amount":   float64(49900),
		"currency": "INR",
		"receipt":  "rcpt-1",
	})
	if err != nil {
		t.Fatalf("parseGatewayOrder returned error: %v", err)
	}
	if order.ID != "order_123" || order.AmountPaise != 49900 || order.Currency != "INR" {
		t.Fatalf("unexpected order %+v", order)
	}

	if _, err := parseGatewayOrder(map[string]interface{}{"amount": float64(100)}); err == nil {
		t.Fatal("expected error when id missing")
	}
	if _, err := parseGatewayOrder(map[string]interface{}{"id": "order_1", "amount": "100"}); err == nil {
		t.Fatal("expected error for string amount")
	}
}
