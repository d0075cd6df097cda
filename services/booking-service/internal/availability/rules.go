package availability

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRule = errors.New("invalid availability rule")

// Break is a wall-clock sub-interval of open hours in which no appointment may run.
type Break struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// WeeklyRule is the recurring open-hours definition for one weekday.
type WeeklyRule struct {
	Weekday time.Weekday
	Start   Clock
	End     Clock
	Breaks  []Break
}

// Exception overrides the weekly rule for one date. It is either Closed or CustomHours;
// a nil Exception means the weekly rule applies unchanged.
type Exception interface {
	exception()
}

// Closed shuts the business for the whole date.
type Closed struct{}

// CustomHours replaces the weekly rule's hours and breaks for the date. An empty Breaks
// list means no breaks that day, whatever the weekly rule says.
type CustomHours struct {
	Start  Clock
	End    Clock
	Breaks []Break
}

func (Closed) exception()      {}
func (CustomHours) exception() {}

// ExceptionFromRow maps the flat stored shape onto the tagged variant. A row that is not
// closed and lacks either bound carries no override.
func ExceptionFromRow(isClosed bool, start, end *Clock, breaks []Break) Exception {
	if isClosed {
		return Closed{}
	}
	if start == nil || end == nil {
		return nil
	}
	return CustomHours{Start: *start, End: *end, Breaks: breaks}
}

// ValidateHours is applied on the rule-writing path. The resolver itself never rejects input.
func ValidateHours(start, end Clock, breaks []Break) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidRule, start, end)
	}
	for i, b := range breaks {
		if !b.Start.Before(b.End) {
			return fmt.Errorf("%w: break %d start %s must be before end %s", ErrInvalidRule, i, b.Start, b.End)
		}
		if b.Start.Before(start) || end.Before(b.End) {
			return fmt.Errorf("%w: break %s-%s outside open hours %s-%s", ErrInvalidRule, b.Start, b.End, start, end)
		}
		for j := 0; j < i; j++ {
			prev := breaks[j]
			if b.Start.Before(prev.End) && prev.Start.Before(b.End) {
				return fmt.Errorf("%w: breaks %d and %d overlap", ErrInvalidRule, j, i)
			}
		}
	}
	return nil
}

func (r WeeklyRule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, int(r.Weekday))
	}
	return ValidateHours(r.Start, r.End, r.Breaks)
}
