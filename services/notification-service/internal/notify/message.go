// Package notify turns booking events into customer emails and texts.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TopicBookingConfirmed = "booking.confirmed.v1"
	TopicBookingCancelled = "booking.cancelled.v1"
)

var ErrUnknownTimezone = errors.New("unknown business timezone")

// BookingEvent mirrors the payload the booking service writes to both topics.
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

// Rendered is one notification in both channels.
type Rendered struct {
	Subject string
	Body    string
	SMS     string
}

func (e BookingEvent) validate() error {
	var missing []string
	if e.BookingID == "" {
		missing = append(missing, "booking_id")
	}
	if e.CustomerEmail == "" {
		missing = append(missing, "customer_email")
	}
	if e.StartAt == "" {
		missing = append(missing, "start_at")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// localStart returns the start instant in the business zone. A missing or unknown zone is an
// error.
func (e BookingEvent) localStart() (time.Time, string, error) {
	start, err := time.Parse(time.RFC3339, e.StartAt)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid start_at: %w", err)
	}
	zone := strings.TrimSpace(e.BusinessTimezone)
	if zone == "" {
		return time.Time{}, "", fmt.Errorf("%w: empty", ErrUnknownTimezone)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w %q: %v", ErrUnknownTimezone, zone, err)
	}
	return start.In(loc), zone, nil
}

// Render builds the message for topic.
func Render(topic string, e BookingEvent) (Rendered, error) {
	if err := e.validate(); err != nil {
		return Rendered{}, err
	}
	local, zone, err := e.localStart()
	if err != nil {
		return Rendered{}, err
	}
	when := fmt.Sprintf("%s at %s (%s)", local.Format("Monday, 2 January 2006"), local.Format("15:04"), zone)
	greeting := "Hi"
	if e.CustomerName != "" {
		greeting = "Hi " + e.CustomerName
	}

	var b strings.Builder
	switch topic {
	case TopicBookingConfirmed:
		fmt.Fprintf(&b, "%s,\n\nYour booking for %s at %s is confirmed.\n\n", greeting, e.ServiceName, e.BusinessName)
		fmt.Fprintf(&b, "When: %s\nReference: %s\n", when, e.BookingID)
		return Rendered{
			Subject: fmt.Sprintf("Booking confirmed: %s at %s", e.ServiceName, e.BusinessName),
			Body:    b.String(),
			SMS:     fmt.Sprintf("%s: your %s is confirmed for %s %s. Ref %s", e.BusinessName, e.ServiceName, local.Format("2 Jan"), local.Format("15:04"), shortRef(e.BookingID)),
		}, nil
	case TopicBookingCancelled:
		fmt.Fprintf(&b, "%s,\n\nYour booking for %s at %s on %s has been cancelled.\n", greeting, e.ServiceName, e.BusinessName, when)
		if e.Reason != "" {
			fmt.Fprintf(&b, "\nReason: %s\n", e.Reason)
		}
		fmt.Fprintf(&b, "\nReference: %s\n", e.BookingID)
		return Rendered{
			Subject: fmt.Sprintf("Booking cancelled: %s at %s", e.ServiceName, e.BusinessName),
			Body:    b.String(),
			SMS:     fmt.Sprintf("%s: your %s on %s %s was cancelled. Ref %s", e.BusinessName, e.ServiceName, local.Format("2 Jan"), local.Format("15:04"), shortRef(e.BookingID)),
		}, nil
	default:
		return Rendered{}, fmt.Errorf("unsupported topic %q", topic)
	}
}

func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
