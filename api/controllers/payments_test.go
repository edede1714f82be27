package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/config"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
)

const webhookSecret = "whsec_test"

func signWebhook(t *testing.T, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayVerifyRejectsMissingFields(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeValidation, "missing payment verification fields")}
	handler := RazorpayVerify(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/razorpay/verify", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRazorpayVerifySuccess(t *testing.T) {
	order := &models.Order{ID: uuid.New(), PaymentStatus: enums.PaymentStatusPaid}
	handler := RazorpayVerify(&stubOrderService{order: order}, nil)

	body := []byte(`{"razorpay_order_id":"order_abc","razorpay_payment_id":"pay_abc","razorpay_signature":"sig"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/razorpay/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRazorpayWebhookRejectsBadSignature(t *testing.T) {
	handler := RazorpayWebhook(&stubOrderService{}, config.RazorpayConfig{WebhookSecret: webhookSecret}, nil)

	payload := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/razorpay/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", "deadbeef")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRazorpayWebhookMarksPaymentFailed(t *testing.T) {
	svc := &stubOrderService{order: &models.Order{ID: uuid.New(), PaymentStatus: enums.PaymentStatusFailed}}
	handler := RazorpayWebhook(svc, config.RazorpayConfig{WebhookSecret: webhookSecret}, nil)

	payload := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/razorpay/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", signWebhook(t, payload))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRazorpayWebhookIgnoresUnknownOrder(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	handler := RazorpayWebhook(svc, config.RazorpayConfig{WebhookSecret: webhookSecret}, nil)

	payload := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_unknown"}}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/razorpay/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", signWebhook(t, payload))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
