package availability

import "time"

// SlotStep is the granularity at which appointments may begin, independent of duration.
const SlotStep = 15 * time.Minute

const labelLayout = "15:04"

type Slot struct {
	Start time.Time
	End   time.Time
	// Label is the start time of day in the business zone.
	Label string
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// DayRequest carries everything needed to resolve one business-local date.
type DayRequest struct {
	Date     Date
	Timezone string
	Duration time.Duration
	// Rule is the weekly rule for Date's weekday, nil when none is defined.
	Rule      *WeeklyRule
	Exception Exception
	// Bookings are confirmed bookings only.
	Bookings []Interval
	// NotBefore drops candidates starting before it. Zero keeps every candidate.
	NotBefore time.Time
}

// Resolve returns the bookable slots for the request in chronological order.
// The only error is an unusable timezone.
func Resolve(req DayRequest) ([]Slot, error) {
	loc, err := LoadZone(req.Timezone)
	if err != nil {
		return nil, err
	}
	return resolveIn(loc, req), nil
}

func resolveIn(loc *time.Location, req DayRequest) []Slot {
	if req.Rule == nil || req.Duration <= 0 {
		return nil
	}

	start, end, breaks := req.Rule.Start, req.Rule.End, req.Rule.Breaks
	switch ex := req.Exception.(type) {
	case Closed:
		return nil
	case CustomHours:
		start, end, breaks = ex.Start, ex.End, ex.Breaks
	}

	open := Interval{Start: start.On(req.Date, loc), End: end.On(req.Date, loc)}
	blocked := make([]Interval, 0, len(breaks))
	for _, b := range breaks {
		blocked = append(blocked, Interval{Start: b.Start.On(req.Date, loc), End: b.End.On(req.Date, loc)})
	}

	var slots []Slot
	for t := open.Start; t.Before(open.End); t = t.Add(SlotStep) {
		candidate := Interval{Start: t, End: t.Add(req.Duration)}
		if candidate.End.After(open.End) {
			break
		}
		if !req.NotBefore.IsZero() && t.Before(req.NotBefore) {
			continue
		}
		if overlapsAny(candidate, blocked) || overlapsAny(candidate, req.Bookings) {
			continue
		}
		slots = append(slots, Slot{
			Start: candidate.Start.UTC(),
			End:   candidate.End.UTC(),
			Label: candidate.Start.In(loc).Format(labelLayout),
		})
	}
	return slots
}

// Offers reports whether start is one of the slot starts in slots.
func Offers(slots []Slot, start time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return true
		}
	}
	return false
}
