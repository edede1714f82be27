package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/merakimart/backend/api/middleware"
	cartsvc "github.com/merakimart/backend/internal/cart"
	"github.com/merakimart/backend/pkg/db/models"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
)

type stubCartService struct {
	summary   *cartsvc.Summary
	err       error
	addedQty  int
	addedProd uuid.UUID
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cartsvc.Summary, error) {
	return s.summary, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.Summary, error) {
	s.addedProd = productID
	s.addedQty = quantity
	return s.summary, s.err
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.Summary, error) {
	return s.summary, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*cartsvc.Summary, error) {
	return s.summary, s.err
}

func (s *stubCartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*cartsvc.Summary, error) {
	return s.summary, s.err
}

func (s *stubCartService) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*cartsvc.Summary, error) {
	return s.summary, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) (*cartsvc.Summary, error) {
	return s.summary, s.err
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func TestCartAddItemSuccess(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{summary: &cartsvc.Summary{Cart: &models.Cart{ID: uuid.New()}, TotalPaise: 80000}}
	handler := CartAddItem(svc, nil)

	body, _ := json.Marshal(map[string]any{"product_id": productID, "quantity": 2})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.addedProd != productID || svc.addedQty != 2 {
		t.Fatalf("expected add of %s x2, got %s x%d", productID, svc.addedProd, svc.addedQty)
	}

	var envelope struct {
		Data struct {
			TotalPaise int64 `json:"total_paise"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TotalPaise != 80000 {
		t.Fatalf("expected total 80000 got %d", envelope.Data.TotalPaise)
	}
}

func TestCartAddItemRequiresAuth(t *testing.T) {
	handler := CartAddItem(&stubCartService{}, nil)

	body := []byte(`{"product_id":"` + uuid.NewString() + `","quantity":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	handler := CartAddItem(&stubCartService{}, nil)

	body := []byte(`{"product_id":"` + uuid.NewString() + `","quantity":0}`)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", body))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCartApplyCouponPropagatesConflict(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")}
	handler := CartApplyCoupon(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/coupon", []byte(`{"code":"SAVE10"}`)))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", resp.Code, resp.Body.String())
	}
}
