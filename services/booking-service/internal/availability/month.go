package availability

import "time"

type MonthRequest struct {
	Month    Month
	Timezone string
	Duration time.Duration
	// Rules holds at most one rule per weekday; the first one listed for a weekday wins.
	Rules      []WeeklyRule
	Exceptions map[Date]Exception
	// Bookings are the month's confirmed bookings; each day only sees those overlapping it.
	Bookings  []Interval
	NotBefore time.Time
}

// MonthSummary splits every date of a month into two disjoint ordered lists.
type MonthSummary struct {
	Available []Date
	Closed    []Date
}

// SummarizeMonth resolves each business-local date of the month independently and marks it
// available when at least one slot remains.
func SummarizeMonth(req MonthRequest) (MonthSummary, error) {
	loc, err := LoadZone(req.Timezone)
	if err != nil {
		return MonthSummary{}, err
	}

	byWeekday := make(map[time.Weekday]*WeeklyRule, 7)
	for i := range req.Rules {
		r := &req.Rules[i]
		if _, ok := byWeekday[r.Weekday]; !ok {
			byWeekday[r.Weekday] = r
		}
	}

	out := MonthSummary{Available: []Date{}, Closed: []Date{}}
	for _, day := range req.Month.Days() {
		span := day.Span(loc)
		var bookings []Interval
		for _, b := range req.Bookings {
			if b.Overlaps(span) {
				bookings = append(bookings, b)
			}
		}
		slots := resolveIn(loc, DayRequest{
			Date:      day,
			Duration:  req.Duration,
			Rule:      byWeekday[day.Weekday()],
			Exception: req.Exceptions[day],
			Bookings:  bookings,
			NotBefore: req.NotBefore,
		})
		if len(slots) > 0 {
			out.Available = append(out.Available, day)
		} else {
			out.Closed = append(out.Closed, day)
		}
	}
	return out, nil
}
