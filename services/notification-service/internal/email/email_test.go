package email

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"
	"testing"
	"time"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

func TestBuildMessage(t *testing.T) {
	raw := buildMessage(
		mail.Address{Name: "BookEase", Address: "no-reply@bookease.local"},
		mail.Address{Name: "Asha", Address: "asha@example.com"},
		"Booking confirmed\r\nBcc: evil@example.com",
		"line one\nline two",
		time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
	)

	if !strings.Contains(raw, "To: \"Asha\" <asha@example.com>\r\n") {
		t.Fatalf("missing To header: %q", raw)
	}
	if strings.Contains(raw, "\r\nBcc:") {
		t.Fatalf("subject must not inject headers: %q", raw)
	}
	if !strings.Contains(raw, "line one\r\nline two\r\n") {
		t.Fatalf("body lines must use CRLF: %q", raw)
	}
	if !strings.Contains(raw, "Date: Mon, 06 Jan 2025 09:00:00 +0000\r\n") {
		t.Fatalf("missing Date header: %q", raw)
	}
}

func TestSMTPRejectsBadRecipient(t *testing.T) {
	s := NewSMTPSender("127.0.0.1", "1", "")
	if err := s.Send(context.Background(), Message{To: "not an address"}); err == nil {
		t.Fatal("expected invalid recipient error")
	}
}

func TestSendGridConfig(t *testing.T) {
	if _, err := NewSendGridSender("", "from@example.com", ""); err == nil {
		t.Fatal("expected api key error")
	}
	if _, err := NewSendGridSender("key", "", ""); err == nil {
		t.Fatal("expected from error")
	}
}

func TestSendGridMessage(t *testing.T) {
	s, err := NewSendGridSender("key", "hello@bookease.local", "")
	if err != nil {
		t.Fatalf("NewSendGridSender: %v", err)
	}
	body := sgmail.GetRequestBody(s.message(Message{To: "asha@example.com", ToName: "Asha", Subject: "Booking confirmed", Body: "see you"}))

	var payload struct {
		From struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"from"`
		Subject          string `json:"subject"`
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.From.Name != "BookEase" || payload.From.Email != "hello@bookease.local" || payload.Subject != "Booking confirmed" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(payload.Personalizations) != 1 || payload.Personalizations[0].To[0].Email != "asha@example.com" {
		t.Fatalf("unexpected recipients %+v", payload.Personalizations)
	}
}
