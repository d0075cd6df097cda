package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
)

const icsProductID = "-//BookEase//Booking//EN"

// CalendarFile renders a booking as a single-event iCalendar document.
func (s *Service) CalendarFile(ctx context.Context, bookingID, slug string) (string, error) {
	details, err := s.PublicBooking(ctx, bookingID, slug)
	if err != nil {
		return "", err
	}
	return renderICS(details, s.now()), nil
}

func renderICS(d BookingDetails, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)

	b := d.Booking
	event := cal.AddEvent(b.ID + "@bookease")
	event.SetDtStampTime(stamp.UTC())
	if !b.CreatedAt.IsZero() {
		event.SetCreatedTime(b.CreatedAt.UTC())
	}
	event.SetStartAt(b.StartAt.UTC())
	event.SetEndAt(b.EndAt.UTC())
	event.SetSummary(fmt.Sprintf("%s at %s", d.Service.Name, d.Business.Name))

	var desc strings.Builder
	fmt.Fprintf(&desc, "Booking %s for %s.", b.ID, b.CustomerName)
	if b.Note != "" {
		fmt.Fprintf(&desc, " Note: %s", b.Note)
	}
	event.SetDescription(desc.String())
	event.AddAttendee("mailto:"+b.CustomerEmail, ics.WithCN(b.CustomerName))

	if b.Status == model.StatusCancelled {
		event.SetStatus(ics.ObjectStatusCancelled)
	} else {
		event.SetStatus(ics.ObjectStatusConfirmed)
	}
	return cal.Serialize()
}
