package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
)

func mustDate(t *testing.T, s string) availability.Date {
	t.Helper()
	d, err := availability.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestPrintSlots(t *testing.T) {
	start := time.Date(2025, 1, 6, 3, 30, 0, 0, time.UTC)
	day := booking.DayAvailability{
		Business: model.Business{Timezone: "Asia/Colombo"},
		Service:  model.Service{Name: "Haircut"},
		Date:     mustDate(t, "2025-01-06"),
		Slots:    []availability.Slot{{Start: start, End: start.Add(time.Hour), Label: "09:00"}},
	}

	var buf bytes.Buffer
	printSlots(&buf, day)
	out := buf.String()
	if !strings.Contains(out, "Haircut on 2025-01-06 (Asia/Colombo)") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "09:00  2025-01-06T03:30:00Z - 2025-01-06T04:30:00Z") {
		t.Fatalf("missing slot line: %q", out)
	}

	buf.Reset()
	day.Slots = nil
	printSlots(&buf, day)
	if !strings.Contains(buf.String(), "no slots") {
		t.Fatalf("expected empty marker, got %q", buf.String())
	}
}

func TestPrintMonth(t *testing.T) {
	var buf bytes.Buffer
	printMonth(&buf, "2025-01", availability.MonthSummary{
		Available: []availability.Date{mustDate(t, "2025-01-06")},
		Closed:    []availability.Date{mustDate(t, "2025-01-13")},
	})
	out := buf.String()
	for _, want := range []string{"2025-01: 1 available, 1 closed", "2025-01-06  open", "2025-01-13  closed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestParseSlotsFlags(t *testing.T) {
	parser, err := kong.New(&CLI, kong.Vars{"version": "test"})
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}
	ctx, err := parser.Parse([]string{"slots", "--slug", "lotus", "--service", "svc-1", "--date", "2025-01-06"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ctx.Command() != "slots" || CLI.Slots.Slug != "lotus" || CLI.Slots.Date != "2025-01-06" {
		t.Fatalf("unexpected parse result %q %+v", ctx.Command(), CLI.Slots)
	}

	if _, err := parser.Parse([]string{"slots", "--slug", "lotus"}); err == nil {
		t.Fatal("missing required flags should fail")
	}
}

func TestMissingDatabaseURL(t *testing.T) {
	g := &Globals{Out: &bytes.Buffer{}}
	err := (&SlotsCmd{Slug: "lotus", Service: "x", Date: "2025-01-06"}).Run(g)
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}
