package outbox

import (
	"encoding/json"
	"fmt"
)

const (
	TopicBookingConfirmed = "booking.confirmed.v1"
	TopicBookingCancelled = "booking.cancelled.v1"
)

// Event is the envelope written to outbox_events; its EventType doubles as the Kafka topic.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// BookingEvent is the payload of both booking topics.
type BookingEvent struct {
	BookingID        string `json:"booking_id"`
	BusinessID       string `json:"business_id"`
	BusinessName     string `json:"business_name"`
	BusinessTimezone string `json:"business_timezone"`
	ServiceID        string `json:"service_id"`
	ServiceName      string `json:"service_name"`
	CustomerName     string `json:"customer_name"`
	CustomerEmail    string `json:"customer_email"`
	CustomerPhone    string `json:"customer_phone,omitempty"`
	StartAt          string `json:"start_at"`
	EndAt            string `json:"end_at"`
	CancelledAt      string `json:"cancelled_at,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

func NewBookingEvent(topic string, payload BookingEvent) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   payload.BookingID,
		EventType:     topic,
		Payload:       body,
	}, nil
}
