package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookSender(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "secret")
	if err := s.Send(context.Background(), "+94771234567", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if auth != "Bearer secret" || got["to"] != "+94771234567" || got["body"] != "hello" {
		t.Fatalf("unexpected request auth=%q body=%v", auth, got)
	}
}

func TestWebhookSenderErrors(t *testing.T) {
	if err := NewWebhookSender("", "").Send(context.Background(), "+1", "x"); err == nil {
		t.Fatal("expected error without url")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewWebhookSender(srv.URL, "").Send(context.Background(), "+1", "x"); err == nil {
		t.Fatal("expected error on non-2xx")
	}
}

func TestTwilioConfig(t *testing.T) {
	if _, err := NewTwilioSender("AC123", "", "+15550000000"); err == nil {
		t.Fatal("expected error for missing token")
	}
	s, err := NewTwilioSender("AC123", "token", "+15550000000")
	if err != nil || s.ProviderID() != "twilio" {
		t.Fatalf("NewTwilioSender = %v, %v", s, err)
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))
	if err := s.Send(context.Background(), "+94771234567", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(buf.String(), `"to":"+94771234567"`) {
		t.Fatalf("expected log line, got %s", buf.String())
	}
}
