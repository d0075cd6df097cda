package availability

import (
	"errors"
	"testing"
	"time"
)

func everyDay(start, end string) []WeeklyRule {
	rules := make([]WeeklyRule, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		rules = append(rules, WeeklyRule{Weekday: wd, Start: MustClock(start), End: MustClock(end)})
	}
	return rules
}

func TestSummarizeMonth_CoversEveryDay(t *testing.T) {
	months := []Month{
		{Year: 2025, Month: time.January},
		{Year: 2024, Month: time.February},
		{Year: 2025, Month: time.February},
		{Year: 2025, Month: time.April},
	}
	for _, m := range months {
		sum, err := SummarizeMonth(MonthRequest{
			Month:    m,
			Timezone: "Asia/Colombo",
			Duration: 30 * time.Minute,
			Rules:    everyDay("09:00", "12:00"),
		})
		if err != nil {
			t.Fatalf("%s: SummarizeMonth failed: %v", m, err)
		}
		days := m.Last().Day
		if len(sum.Available)+len(sum.Closed) != days {
			t.Fatalf("%s: expected %d days, got %d available + %d closed", m, days, len(sum.Available), len(sum.Closed))
		}
		if len(sum.Closed) != 0 {
			t.Fatalf("%s: expected no closed days, got %v", m, sum.Closed)
		}
	}
}

func TestSummarizeMonth_Classification(t *testing.T) {
	// January 2025 starts on a Wednesday. Open Monday to Friday only.
	var rules []WeeklyRule
	for wd := time.Monday; wd <= time.Friday; wd++ {
		rules = append(rules, WeeklyRule{Weekday: wd, Start: MustClock("09:00"), End: MustClock("10:00")})
	}
	// A later rule for the same weekday is ignored.
	rules = append(rules, WeeklyRule{Weekday: time.Saturday, Start: MustClock("09:00"), End: MustClock("10:00")})
	rules = append(rules, WeeklyRule{Weekday: time.Monday, Start: MustClock("10:00"), End: MustClock("09:00")})

	jan6 := Date{Year: 2025, Month: time.January, Day: 6}
	jan7 := Date{Year: 2025, Month: time.January, Day: 7}
	jan8 := Date{Year: 2025, Month: time.January, Day: 8}
	jan12 := Date{Year: 2025, Month: time.January, Day: 12}

	sum, err := SummarizeMonth(MonthRequest{
		Month:    Month{Year: 2025, Month: time.January},
		Timezone: "Asia/Colombo",
		Duration: time.Hour,
		Rules:    rules,
		Exceptions: map[Date]Exception{
			jan7:  Closed{},
			jan12: CustomHours{Start: MustClock("08:00"), End: MustClock("09:00")},
		},
		// Fills Jan 8 local 09:00-10:00 (03:30Z-04:30Z).
		Bookings: []Interval{{
			Start: time.Date(2025, 1, 8, 3, 30, 0, 0, time.UTC),
			End:   time.Date(2025, 1, 8, 4, 30, 0, 0, time.UTC),
		}},
	})
	if err != nil {
		t.Fatalf("SummarizeMonth failed: %v", err)
	}

	available := map[Date]bool{}
	for _, d := range sum.Available {
		available[d] = true
	}
	closed := map[Date]bool{}
	for _, d := range sum.Closed {
		if available[d] {
			t.Fatalf("%s listed as both available and closed", d)
		}
		closed[d] = true
	}

	if !available[jan6] {
		t.Fatalf("expected Monday %s available (first rule wins)", jan6)
	}
	if !closed[jan7] {
		t.Fatalf("expected closed exception on %s", jan7)
	}
	if !closed[jan8] {
		t.Fatalf("expected fully booked %s to be closed", jan8)
	}
	if !available[Date{Year: 2025, Month: time.January, Day: 11}] {
		t.Fatal("expected Saturday available")
	}
	if !closed[jan12] {
		t.Fatal("expected Sunday without weekly rule to stay closed despite custom hours")
	}
	if len(sum.Available)+len(sum.Closed) != 31 {
		t.Fatalf("expected 31 days, got %d", len(sum.Available)+len(sum.Closed))
	}
	for i := 1; i < len(sum.Available); i++ {
		if !sum.Available[i-1].Before(sum.Available[i]) {
			t.Fatalf("available dates out of order at %d", i)
		}
	}
}

func TestSummarizeMonth_LocalCalendar(t *testing.T) {
	// In Pacific/Kiritimati (UTC+14) the local 1st of March starts on Feb 28 UTC.
	sum, err := SummarizeMonth(MonthRequest{
		Month:    Month{Year: 2025, Month: time.March},
		Timezone: "Pacific/Kiritimati",
		Duration: 30 * time.Minute,
		Rules:    everyDay("09:00", "09:30"),
		Bookings: []Interval{{
			Start: time.Date(2025, 2, 28, 19, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 2, 28, 19, 30, 0, 0, time.UTC),
		}},
	})
	if err != nil {
		t.Fatalf("SummarizeMonth failed: %v", err)
	}
	if len(sum.Closed) != 1 || sum.Closed[0] != (Date{Year: 2025, Month: time.March, Day: 1}) {
		t.Fatalf("expected only 2025-03-01 closed, got %v", sum.Closed)
	}
}

func TestSummarizeMonth_InvalidTimezone(t *testing.T) {
	_, err := SummarizeMonth(MonthRequest{Month: Month{Year: 2025, Month: time.January}, Timezone: "Nowhere/Land", Duration: time.Hour})
	if !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
}
