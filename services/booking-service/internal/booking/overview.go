package booking

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
)

const topServicesLimit = 3

// Overview is the dashboard summary. Weeks start on Monday in the business timezone.
type Overview struct {
	Today         availability.Date
	TodayCount    int
	ThisWeekCount int
	LastWeekCount int
	Next          *model.Booking
	TopServices   []model.ServiceCount
}

// WeekChange is the relative change of this week against last week in percent. It is nil
// when last week had no bookings.
func (o Overview) WeekChange() *float64 {
	if o.LastWeekCount == 0 {
		return nil
	}
	pct := float64(o.ThisWeekCount-o.LastWeekCount) * 100 / float64(o.LastWeekCount)
	return &pct
}

func (s *Service) Overview(ctx context.Context, businessID string) (Overview, error) {
	biz, err := s.Profile(ctx, businessID)
	if err != nil {
		return Overview{}, err
	}
	loc, err := availability.LoadZone(biz.Timezone)
	if err != nil {
		return Overview{}, fmt.Errorf("business %s: %w", biz.ID, err)
	}
	now := s.now().In(loc)
	today := availability.DateOf(now)
	monday := today.AddDays(-((int(today.Weekday()) + 6) % 7))

	thisWeek := availability.Interval{Start: monday.Span(loc).Start, End: monday.AddDays(7).Span(loc).Start}
	lastWeek := availability.Interval{Start: monday.AddDays(-7).Span(loc).Start, End: thisWeek.Start}

	out := Overview{Today: today}
	if out.TodayCount, err = s.store.CountConfirmed(ctx, biz.ID, today.Span(loc)); err != nil {
		return Overview{}, fmt.Errorf("count today: %w", err)
	}
	if out.ThisWeekCount, err = s.store.CountConfirmed(ctx, biz.ID, thisWeek); err != nil {
		return Overview{}, fmt.Errorf("count this week: %w", err)
	}
	if out.LastWeekCount, err = s.store.CountConfirmed(ctx, biz.ID, lastWeek); err != nil {
		return Overview{}, fmt.Errorf("count last week: %w", err)
	}
	if out.Next, err = s.store.NextConfirmed(ctx, biz.ID, now); err != nil {
		return Overview{}, fmt.Errorf("next booking: %w", err)
	}
	if out.TopServices, err = s.store.TopServices(ctx, biz.ID, topServicesLimit); err != nil {
		return Overview{}, fmt.Errorf("top services: %w", err)
	}
	return out, nil
}
