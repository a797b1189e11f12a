package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_AllHealthy(t *testing.T) {
	h := NewHandler("test")
	h.RegisterChecker("postgres", NewPingChecker("postgres", func(context.Context) error { return nil }))
	h.RegisterChecker("stripe", NewPingChecker("stripe", func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
	if len(resp.Checks) != 2 {
		t.Errorf("expected 2 checks, got %d", len(resp.Checks))
	}
	if resp.Version != "test" {
		t.Errorf("unexpected version %s", resp.Version)
	}
}

func TestHandler_Unhealthy(t *testing.T) {
	h := NewHandler("test")
	h.RegisterChecker("postgres", NewPingChecker("postgres", func(context.Context) error { return nil }))
	h.RegisterChecker("stripe", NewPingChecker("stripe", func(context.Context) error {
		return errors.New("api key invalid")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", resp.Status)
	}
	if resp.Checks["stripe"].Message != "api key invalid" {
		t.Errorf("expected failure message, got %q", resp.Checks["stripe"].Message)
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	h := NewHandler("test")

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready with no checkers, got %d", rec.Code)
	}

	h.RegisterChecker("postgres", NewPingChecker("postgres", func(context.Context) error {
		return errors.New("connection refused")
	}))

	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
