package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
)

func clockPtr(s string) *availability.Clock {
	c := availability.MustClock(s)
	return &c
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, newYear)
	ctx := context.Background()

	biz, err := f.svc.UpdateProfile(ctx, f.biz.ID, booking.ProfileUpdate{Name: "Lotus Spa", Timezone: "Europe/London", Currency: "gbp"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if biz.Name != "Lotus Spa" || biz.Timezone != "Europe/London" || biz.Currency != "GBP" || biz.Slug != "lotus" {
		t.Fatalf("unexpected profile %+v", biz)
	}

	for name, in := range map[string]booking.ProfileUpdate{
		"timezone": {Timezone: "Mars/Olympus"},
		"currency": {Currency: "XX"},
		"slug":     {Slug: "no spaces"},
		"name":     {Name: "L"},
	} {
		if _, err := f.svc.UpdateProfile(ctx, f.biz.ID, in); !errors.Is(err, booking.ErrInvalidRequest) {
			t.Fatalf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}

	f.store.AddBusiness(model.Business{Name: "Taken", Slug: "taken", Timezone: "UTC", Currency: "USD"})
	if _, err := f.svc.UpdateProfile(ctx, f.biz.ID, booking.ProfileUpdate{Slug: "taken"}); !errors.Is(err, booking.ErrSlugUsed) {
		t.Fatalf("expected ErrSlugUsed, got %v", err)
	}
	if _, err := f.svc.Profile(ctx, "missing"); !errors.Is(err, booking.ErrBusinessNotFound) {
		t.Fatalf("expected ErrBusinessNotFound, got %v", err)
	}
}

func TestServiceLifecycle(t *testing.T) {
	f := newFixture(t, newYear)
	ctx := context.Background()

	for _, d := range []int{0, 10, 721} {
		_, err := f.svc.CreateService(ctx, f.biz.ID, booking.ServiceInput{Name: "Massage", DurationMinutes: d})
		if !errors.Is(err, booking.ErrInvalidRequest) {
			t.Fatalf("duration %d: expected ErrInvalidRequest, got %v", d, err)
		}
	}
	svc, err := f.svc.CreateService(ctx, f.biz.ID, booking.ServiceInput{Name: " Massage ", DurationMinutes: 45, PriceMinor: 500000})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	if svc.ID == "" || svc.Name != "Massage" || !svc.IsActive {
		t.Fatalf("unexpected service %+v", svc)
	}

	inactive := false
	svc, err = f.svc.UpdateService(ctx, f.biz.ID, svc.ID, booking.ServiceInput{Name: "Deep massage", DurationMinutes: 90, IsActive: &inactive})
	if err != nil || svc.DurationMinutes != 90 || svc.IsActive {
		t.Fatalf("UpdateService: %+v %v", svc, err)
	}
	if _, err := f.svc.UpdateService(ctx, "other", svc.ID, booking.ServiceInput{Name: "Nope", DurationMinutes: 30}); !errors.Is(err, booking.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound for another business, got %v", err)
	}

	all, err := f.svc.OwnerServices(ctx, f.biz.ID)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected both services for the owner, got %v %v", all, err)
	}
}

func TestWeeklyRules(t *testing.T) {
	f := newFixture(t, newYear)
	ctx := context.Background()

	bad := []availability.WeeklyRule{
		{Weekday: time.Tuesday, Start: availability.MustClock("12:00"), End: availability.MustClock("09:00")},
		{Weekday: 7, Start: availability.MustClock("09:00"), End: availability.MustClock("12:00")},
		{Weekday: time.Tuesday, Start: availability.MustClock("09:00"), End: availability.MustClock("12:00"),
			Breaks: []availability.Break{{Start: availability.MustClock("11:30"), End: availability.MustClock("12:30")}}},
	}
	for _, r := range bad {
		if err := f.svc.PutWeeklyRule(ctx, f.biz.ID, r); !errors.Is(err, booking.ErrInvalidRequest) {
			t.Fatalf("rule %+v: expected ErrInvalidRequest, got %v", r, err)
		}
	}

	err := f.svc.PutWeeklyRule(ctx, f.biz.ID, availability.WeeklyRule{Weekday: time.Sunday, Start: availability.MustClock("10:00"), End: availability.MustClock("14:00")})
	if err != nil {
		t.Fatalf("PutWeeklyRule: %v", err)
	}
	rules, err := f.svc.WeeklyRules(ctx, f.biz.ID)
	if err != nil || len(rules) != 2 || rules[0].Weekday != time.Sunday {
		t.Fatalf("expected sunday then monday, got %+v %v", rules, err)
	}
	if err := f.svc.DeleteWeeklyRule(ctx, f.biz.ID, time.Friday); !errors.Is(err, booking.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
	if err := f.svc.DeleteWeeklyRule(ctx, f.biz.ID, time.Sunday); err != nil {
		t.Fatalf("DeleteWeeklyRule: %v", err)
	}
}

func TestPutWeeklyRulesIsAllOrNothing(t *testing.T) {
	f := newFixture(t, newYear)
	ctx := context.Background()
	rules := []availability.WeeklyRule{
		{Weekday: time.Monday, Start: availability.MustClock("08:00"), End: availability.MustClock("16:00")},
		{Weekday: time.Tuesday, Start: availability.MustClock("09:00"), End: availability.MustClock("17:00")},
	}

	writeFailed := errors.New("write failed")
	f.store.FailRule = func(r availability.WeeklyRule) error {
		if r.Weekday == time.Tuesday {
			return writeFailed
		}
		return nil
	}
	if err := f.svc.PutWeeklyRules(ctx, f.biz.ID, rules); !errors.Is(err, writeFailed) {
		t.Fatalf("expected the store error, got %v", err)
	}
	got, err := f.svc.WeeklyRules(ctx, f.biz.ID)
	if err != nil || len(got) != 1 || got[0].Start != availability.MustClock("09:00") {
		t.Fatalf("monday rule must keep its old hours, got %+v %v", got, err)
	}

	f.store.FailRule = nil
	if err := f.svc.PutWeeklyRules(ctx, f.biz.ID, rules); err != nil {
		t.Fatalf("PutWeeklyRules: %v", err)
	}
	got, err = f.svc.WeeklyRules(ctx, f.biz.ID)
	if err != nil || len(got) != 2 || got[0].Start != availability.MustClock("08:00") || got[1].Weekday != time.Tuesday {
		t.Fatalf("expected both rules saved, got %+v %v", got, err)
	}
}

func TestExceptions(t *testing.T) {
	f := newFixture(t, newYear)
	ctx := context.Background()

	if _, err := f.svc.PutException(ctx, f.biz.ID, model.DateException{Date: monday}); !errors.Is(err, booking.ErrInvalidRequest) {
		t.Fatalf("open exception without hours: expected ErrInvalidRequest, got %v", err)
	}
	if _, err := f.svc.PutException(ctx, f.biz.ID, model.DateException{Date: monday, Start: clockPtr("14:00"), End: clockPtr("10:00")}); !errors.Is(err, booking.ErrInvalidRequest) {
		t.Fatalf("inverted hours: expected ErrInvalidRequest, got %v", err)
	}

	closed, err := f.svc.PutException(ctx, f.biz.ID, model.DateException{Date: monday.AddDays(1), IsClosed: true, Start: clockPtr("09:00"), End: clockPtr("10:00")})
	if err != nil || closed.Start != nil || closed.End != nil {
		t.Fatalf("closed exception should drop hours, got %+v %v", closed, err)
	}

	custom, err := f.svc.PutException(ctx, f.biz.ID, model.DateException{Date: monday, Start: clockPtr("13:00"), End: clockPtr("15:00")})
	if err != nil || custom.Breaks == nil {
		t.Fatalf("PutException: %+v %v", custom, err)
	}
	day, err := f.svc.DaySlots(ctx, "lotus", f.cut.ID, monday.String())
	if err != nil {
		t.Fatalf("DaySlots: %v", err)
	}
	if got := slotLabels(day.Slots); got != "13:00,13:15,13:30,13:45,14:00" {
		t.Fatalf("custom hours should replace the weekly rule, got %s", got)
	}

	list, err := f.svc.Exceptions(ctx, f.biz.ID, availability.Date{}, availability.Date{})
	if err != nil || len(list) != 2 || list[0].Date != monday {
		t.Fatalf("expected both exceptions in the default window, got %+v %v", list, err)
	}
	if _, err := f.svc.Exceptions(ctx, f.biz.ID, monday, monday.AddDays(-1)); !errors.Is(err, booking.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for an inverted range, got %v", err)
	}
	if err := f.svc.DeleteException(ctx, f.biz.ID, monday.AddDays(30)); !errors.Is(err, booking.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestOwnerBookings(t *testing.T) {
	f := newFixture(t, newYear)
	ctx := context.Background()
	for _, clock := range []string{"09:00", "10:00", "11:00"} {
		if _, err := f.svc.Book(ctx, f.request(clock)); err != nil {
			t.Fatalf("Book %s: %v", clock, err)
		}
	}
	list, err := f.svc.OwnerBookings(ctx, f.biz.ID, model.BookingFilter{})
	if err != nil || len(list) != 3 {
		t.Fatalf("expected 3 bookings, got %d %v", len(list), err)
	}
	if _, err := f.svc.Cancel(ctx, f.biz.ID, list[0].ID, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	confirmed, err := f.svc.OwnerBookings(ctx, f.biz.ID, model.BookingFilter{Status: model.StatusConfirmed, Limit: 1})
	if err != nil || len(confirmed) != 1 || confirmed[0].ID != list[1].ID {
		t.Fatalf("unexpected filtered list %+v %v", confirmed, err)
	}
	if _, err := f.svc.OwnerBookings(ctx, f.biz.ID, model.BookingFilter{Status: "pending"}); !errors.Is(err, booking.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestOverview(t *testing.T) {
	// Wednesday 2025-01-08 12:00 in Colombo.
	now := time.Date(2025, 1, 8, 6, 30, 0, 0, time.UTC)
	f := newFixture(t, now)
	massage := f.store.AddService(model.Service{BusinessID: f.biz.ID, Name: "Massage", DurationMinutes: 30, IsActive: true})

	add := func(svc model.Service, start time.Time, status string) model.Booking {
		return f.store.AddBooking(model.Booking{
			BusinessID: f.biz.ID, ServiceID: svc.ID, Status: status,
			StartAt: start, EndAt: start.Add(svc.Duration()),
		})
	}
	add(f.cut, time.Date(2025, 1, 8, 3, 30, 0, 0, time.UTC), model.StatusConfirmed)
	next := add(massage, time.Date(2025, 1, 8, 9, 30, 0, 0, time.UTC), model.StatusConfirmed)
	add(massage, time.Date(2025, 1, 8, 10, 30, 0, 0, time.UTC), model.StatusCancelled)
	add(f.cut, time.Date(2025, 1, 6, 3, 30, 0, 0, time.UTC), model.StatusConfirmed)
	add(f.cut, time.Date(2025, 1, 1, 3, 30, 0, 0, time.UTC), model.StatusConfirmed)
	// Sunday 23:00 local still belongs to last week.
	add(massage, time.Date(2025, 1, 5, 17, 30, 0, 0, time.UTC), model.StatusConfirmed)

	ov, err := f.svc.Overview(context.Background(), f.biz.ID)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.TodayCount != 2 || ov.ThisWeekCount != 3 || ov.LastWeekCount != 2 {
		t.Fatalf("unexpected counts today=%d week=%d last=%d", ov.TodayCount, ov.ThisWeekCount, ov.LastWeekCount)
	}
	if ov.Next == nil || ov.Next.ID != next.ID {
		t.Fatalf("expected next booking %s, got %+v", next.ID, ov.Next)
	}
	if pct := ov.WeekChange(); pct == nil || *pct != 50 {
		t.Fatalf("expected +50%% week change, got %v", pct)
	}
	if len(ov.TopServices) != 2 || ov.TopServices[0].ServiceName != "Haircut" || ov.TopServices[0].Count != 3 {
		t.Fatalf("unexpected top services %+v", ov.TopServices)
	}
}
