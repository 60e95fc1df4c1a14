package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func signedWebhookRequest(secret []byte, body string, ts time.Time) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway/payments", strings.NewReader(body))
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	req.Header.Set("X-Gateway-Timestamp", timestamp)
	req.Header.Set("X-Gateway-Signature", computeWebhookSignature(secret, timestamp, []byte(body)))
	return req
}

func TestWebhookAuth_ValidSignature(t *testing.T) {
	secret := []byte("gateway-secret")
	mw := NewWebhookAuthMiddleware(secret, 5*time.Minute)
	var seen string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"receipt_number":"RCPT-2025-0001","event":"payment.settled"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedWebhookRequest(secret, body, time.Now()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if seen != body {
		t.Fatalf("body not passed through, got %q", seen)
	}
}

func TestWebhookAuth_BadSignature(t *testing.T) {
	mw := NewWebhookAuthMiddleware([]byte("gateway-secret"), 5*time.Minute)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := signedWebhookRequest([]byte("wrong-secret"), `{}`, time.Now())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestWebhookAuth_ExpiredTimestamp(t *testing.T) {
	secret := []byte("gateway-secret")
	mw := NewWebhookAuthMiddleware(secret, 5*time.Minute)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := signedWebhookRequest(secret, `{}`, time.Now().Add(-time.Hour))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestWebhookAuth_MissingHeaders(t *testing.T) {
	mw := NewWebhookAuthMiddleware([]byte("gateway-secret"), 5*time.Minute)
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway/payments", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
