package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/bookease/libs/kafkax"
	"github.com/md-rashed-zaman/bookease/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/bookease/services/notification-service/internal/sms"
)

// Notifier handles booking events from Kafka. sms may be nil.
type Notifier struct {
	email  email.Sender
	sms    sms.Sender
	logger *slog.Logger
}

func NewNotifier(emailSender email.Sender, smsSender sms.Sender, logger *slog.Logger) *Notifier {
	return &Notifier{email: emailSender, sms: smsSender, logger: logger}
}

// Handle decodes and sends one event. Malformed payloads are logged and dropped.
func (n *Notifier) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventType != TopicBookingConfirmed && meta.EventType != TopicBookingCancelled {
		n.logger.Warn("ignoring unknown event type", "event_type", meta.EventType)
		return nil
	}

	var evt BookingEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		n.logger.Error("invalid booking payload", "err", err, "event_id", meta.EventID)
		return nil
	}
	out, err := Render(meta.EventType, evt)
	if err != nil {
		n.logger.Error("booking event not renderable", "err", err, "event_id", meta.EventID,
			"booking_id", evt.BookingID, "business_id", evt.BusinessID)
		return nil
	}

	var errs []error
	if err := n.email.Send(ctx, email.Message{To: evt.CustomerEmail, ToName: evt.CustomerName, Subject: out.Subject, Body: out.Body}); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", n.email.ProviderID(), err))
	}
	if n.sms != nil && evt.CustomerPhone != "" {
		if err := n.sms.Send(ctx, evt.CustomerPhone, out.SMS); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.sms.ProviderID(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	n.logger.Info("booking notification sent", "event_type", meta.EventType, "booking_id", evt.BookingID)
	return nil
}
