package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/golang-jwt/jwt/v5"

	"github.com/md-rashed-zaman/bookease/libs/auth"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking/bookingtest"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
)

const (
	bizID     = "6f1d2a8e-3c4b-4e5f-8a9b-0c1d2e3f4a5b"
	serviceID = "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d"
)

type testServer struct {
	store *bookingtest.Store
	mux   *http.ServeMux
}

func newTestServer(t *testing.T, verifier *auth.Verifier) testServer {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := bookingtest.NewStore()
	store.Now = func() time.Time { return now }
	store.AddBusiness(model.Business{ID: bizID, Name: "Lotus Salon", Slug: "lotus", Timezone: "Asia/Colombo", Currency: "USD"})
	store.AddService(model.Service{ID: serviceID, BusinessID: bizID, Name: "Haircut", DurationMinutes: 60, PriceMinor: 250000, IsActive: true})
	if err := store.PutWeeklyRule(context.Background(), bizID, availability.WeeklyRule{
		Weekday: time.Monday,
		Start:   availability.MustClock("09:00"),
		End:     availability.MustClock("12:00"),
	}); err != nil {
		t.Fatalf("seed rule: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.NewService(store, logger, booking.WithClock(func() time.Time { return now }))
	mux := http.NewServeMux()
	NewPublicHandler(svc, logger).Register(mux, nil)
	NewOwnerHandler(svc, logger).Register(mux, OwnerAuth(verifier))
	return testServer{store: store, mux: mux}
}

func (s testServer) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func owner() map[string]string {
	return map[string]string{BusinessIDHeader: bizID}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func bookBody(clock, email string) string {
	return `{"slug":"lotus","service_id":"` + serviceID + `","date":"2025-01-06","start_time":"` + clock +
		`","customer_name":"Nimal Perera","customer_email":"` + email + `"}`
}

func TestPublicServicesAndSlots(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/api/v1/public/services?slug=lotus", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"price":"USD 2500.00"`) {
		t.Fatalf("services: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/api/v1/public/availability?slug=lotus&service_id="+serviceID+"&date=2025-01-06", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("availability: %d %s", rec.Code, rec.Body.String())
	}
	var day struct {
		Slots []slotView `json:"slots"`
	}
	decode(t, rec, &day)
	if len(day.Slots) != 9 || day.Slots[0].Label != "09:00" || day.Slots[0].StartTime != "2025-01-06T03:30:00Z" {
		t.Fatalf("unexpected slots %+v", day.Slots)
	}

	rec = s.do(http.MethodGet, "/api/v1/public/availability?slug=unknown&service_id="+serviceID+"&date=2025-01-06", "", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"slots":[]}` {
		t.Fatalf("unknown slug should yield empty slots: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/api/v1/public/availability?slug=lotus&date=2025-01-06", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing service_id: expected 400, got %d", rec.Code)
	}
	rec = s.do(http.MethodGet, "/api/v1/public/availability?slug=lotus&service_id="+serviceID+"&date=tomorrow", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", rec.Code)
	}
}

func TestPublicCalendar(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(http.MethodGet, "/api/v1/public/availability/calendar?slug=lotus&service_id="+serviceID+"&month=2025-01", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar: %d %s", rec.Code, rec.Body.String())
	}
	var cal struct {
		Available []string `json:"available_dates"`
		Closed    []string `json:"closed_dates"`
	}
	decode(t, rec, &cal)
	if strings.Join(cal.Available, ",") != "2025-01-06,2025-01-13,2025-01-20,2025-01-27" || len(cal.Closed) != 27 {
		t.Fatalf("unexpected calendar %+v", cal)
	}
}

func TestPublicBookingFlow(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/public/bookings", bookBody("10:00", "nimal@example.com"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rec.Code, rec.Body.String())
	}
	var conf confirmationView
	decode(t, rec, &conf)
	if conf.StartAt != "2025-01-06T04:30:00Z" || conf.Status != model.StatusConfirmed {
		t.Fatalf("unexpected confirmation %+v", conf)
	}

	cases := []struct {
		name string
		body string
		want int
	}{
		{"overlap", bookBody("10:30", "other@example.com"), http.StatusConflict},
		{"outside hours", bookBody("12:00", "other@example.com"), http.StatusUnprocessableEntity},
		{"bad email", bookBody("09:00", "nope"), http.StatusBadRequest},
		{"unknown field", `{"slug":"lotus","admin":true}`, http.StatusBadRequest},
		{"not json", `slug=lotus`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := s.do(http.MethodPost, "/api/v1/public/bookings", tc.body, nil); rec.Code != tc.want {
				t.Fatalf("expected %d, got %d %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	rec = s.do(http.MethodGet, "/api/v1/public/bookings/"+conf.BookingID+"?slug=lotus", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup: %d %s", rec.Code, rec.Body.String())
	}
	var details publicBookingView
	decode(t, rec, &details)
	if details.LocalDate != "2025-01-06" || details.LocalTime != "10:00" || details.Service.Name != "Haircut" {
		t.Fatalf("unexpected details %+v", details)
	}
	if rec := s.do(http.MethodGet, "/api/v1/public/bookings/"+conf.BookingID+"?slug=other", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("mismatched slug: expected 404, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/v1/public/bookings/"+conf.BookingID+"/ics", "", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") ||
		!strings.Contains(rec.Body.String(), "BEGIN:VEVENT") {
		t.Fatalf("ics: %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestPublicBookingIdempotency(t *testing.T) {
	s := newTestServer(t, nil)
	header := map[string]string{"Idempotency-Key": "abc"}

	first := s.do(http.MethodPost, "/api/v1/public/bookings", bookBody("09:00", "a@example.com"), header)
	second := s.do(http.MethodPost, "/api/v1/public/bookings", bookBody("09:00", "a@example.com"), header)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201 twice, got %d and %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" || first.Body.String() != second.Body.String() {
		t.Fatalf("expected a replay, got %s vs %s", first.Body.String(), second.Body.String())
	}
}

func TestPublicBookingByInstant(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"slug":"lotus","service_id":"` + serviceID + `","start_at":"2025-01-06T05:30:00Z",` +
		`"customer_name":"Nimal Perera","customer_email":"nimal@example.com"}`
	rec := s.do(http.MethodPost, "/api/v1/public/bookings", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", rec.Code, rec.Body.String())
	}
	var conf confirmationView
	decode(t, rec, &conf)
	if conf.StartAt != "2025-01-06T05:30:00Z" {
		t.Fatalf("unexpected confirmation %+v", conf)
	}

	bad := strings.Replace(body, "2025-01-06T05:30:00Z", "2025-01-06 05:30", 1)
	if rec := s.do(http.MethodPost, "/api/v1/public/bookings", bad, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed start_at: expected 400, got %d", rec.Code)
	}
}

func TestOwnerAuthHeader(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := s.do(http.MethodGet, "/api/v1/business/profile", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/v1/business/profile", "", map[string]string{BusinessIDHeader: "not-a-uuid"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad header: expected 401, got %d", rec.Code)
	}
	rec := s.do(http.MethodGet, "/api/v1/business/profile", "", owner())
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"slug":"lotus"`) {
		t.Fatalf("profile: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOwnerAuthJWT(t *testing.T) {
	const secret = "test-secret"
	s := newTestServer(t, auth.NewVerifier(secret, "bookease"))

	token, err := auth.SignHS256(auth.Claims{
		BusinessID: bizID,
		Role:       "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "bookease",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if rec := s.do(http.MethodGet, "/api/v1/business/overview", "", map[string]string{"Authorization": "Bearer " + token}); rec.Code != http.StatusOK {
		t.Fatalf("overview with token: %d %s", rec.Code, rec.Body.String())
	}
	// The gateway header is ignored once tokens are verified here.
	if rec := s.do(http.MethodGet, "/api/v1/business/overview", "", owner()); rec.Code != http.StatusUnauthorized {
		t.Fatalf("header without token: expected 401, got %d", rec.Code)
	}

	forged, _ := auth.SignHS256(auth.Claims{
		BusinessID:       bizID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}, "wrong")
	if rec := s.do(http.MethodGet, "/api/v1/business/overview", "", map[string]string{"Authorization": "Bearer " + forged}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: expected 401, got %d", rec.Code)
	}
}

func TestOwnerRulesAndExceptions(t *testing.T) {
	s := newTestServer(t, nil)

	bad := `{"rules":[{"weekday":2,"start_time":"17:00","end_time":"09:00","breaks":[]}]}`
	if rec := s.do(http.MethodPut, "/api/v1/business/availability/rules", bad, owner()); rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted rule: expected 400, got %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodPut, "/api/v1/business/availability/rules", `{"rules":[{"weekday":2,"start_time":"9am"}]}`, owner()); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed clock: expected 400, got %d", rec.Code)
	}

	good := `{"rules":[{"weekday":2,"start_time":"09:00","end_time":"17:00","breaks":[{"start":"12:00","end":"13:00"}]}]}`
	rec := s.do(http.MethodPut, "/api/v1/business/availability/rules", good, owner())
	if rec.Code != http.StatusOK {
		t.Fatalf("put rules: %d %s", rec.Code, rec.Body.String())
	}
	var rules struct {
		Rules []ruleView `json:"rules"`
	}
	decode(t, rec, &rules)
	if len(rules.Rules) != 2 || rules.Rules[1].Weekday != 2 || len(rules.Rules[1].Breaks) != 1 {
		t.Fatalf("unexpected rules %+v", rules.Rules)
	}

	rec = s.do(http.MethodPut, "/api/v1/business/availability/exceptions", `{"date":"2025-01-06","is_closed":true}`, owner())
	if rec.Code != http.StatusOK {
		t.Fatalf("put exception: %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(http.MethodGet, "/api/v1/public/availability?slug=lotus&service_id="+serviceID+"&date=2025-01-06", "", nil)
	if !strings.Contains(rec.Body.String(), `"slots":[]`) {
		t.Fatalf("closed date must have no slots: %s", rec.Body.String())
	}
	if rec := s.do(http.MethodDelete, "/api/v1/business/availability/exceptions/2025-01-06", "", owner()); rec.Code != http.StatusNoContent {
		t.Fatalf("delete exception: %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/api/v1/business/availability/rules/9", "", owner()); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad weekday: expected 400, got %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/api/v1/business/availability/rules/5", "", owner()); rec.Code != http.StatusNotFound {
		t.Fatalf("missing rule: expected 404, got %d", rec.Code)
	}
}

func TestOwnerServicesAndCancel(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/business/services", `{"name":"Beard trim","duration_minutes":30,"price_minor":90000}`, owner())
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"price":"USD 900.00"`) {
		t.Fatalf("create service: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodPost, "/api/v1/business/services", `{"name":"Nap","duration_minutes":5}`, owner()); rec.Code != http.StatusBadRequest {
		t.Fatalf("short service: expected 400, got %d", rec.Code)
	}

	rec = s.do(http.MethodPost, "/api/v1/public/bookings", bookBody("10:00", "nimal@example.com"), nil)
	var conf confirmationView
	decode(t, rec, &conf)

	rec = s.do(http.MethodPost, "/api/v1/business/bookings/"+conf.BookingID+"/cancel", `{"reason":"sick"}`, owner())
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"cancelled"`) {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(http.MethodPost, "/api/v1/business/bookings/missing/cancel", "", owner()); rec.Code != http.StatusNotFound {
		t.Fatalf("cancel missing: expected 404, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/v1/business/bookings?status=cancelled", "", owner())
	var list struct {
		Bookings []bookingView `json:"bookings"`
	}
	decode(t, rec, &list)
	if len(list.Bookings) != 1 || list.Bookings[0].CancelReason != "sick" {
		t.Fatalf("unexpected bookings %+v", list.Bookings)
	}
	if rec := s.do(http.MethodGet, "/api/v1/business/bookings?from=yesterday", "", owner()); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad from: expected 400, got %d", rec.Code)
	}
}
