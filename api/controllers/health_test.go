package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/merakimart/backend/pkg/config"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-MerakiMart-Env"); got != "dev" {
		t.Fatalf("expected env header dev got %q", got)
	}
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	handler := HealthReady(cfg, nil, stubPinger{err: errors.New("connection refused")}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestHealthReadySucceedsWhenStoresRespond(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	handler := HealthReady(cfg, nil, stubPinger{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
