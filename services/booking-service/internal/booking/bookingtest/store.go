// Package bookingtest provides an in-memory booking.Store for tests.
package bookingtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/outbox"
)

// Store keeps everything in maps guarded by one mutex. Transactions hold the mutex for their
// whole run and restore a snapshot when fn fails.
type Store struct {
	mu         sync.Mutex
	seq        int
	businesses map[string]model.Business
	services   map[string]model.Service
	rules      map[string]map[time.Weekday]availability.WeeklyRule
	exceptions map[string]map[availability.Date]model.DateException
	bookings   []model.Booking
	idem       map[string]booking.IdempotencyRecord
	events     []outbox.Event

	// SkipPrecheck makes Tx.ConfirmedIntervals report nothing so only the insert-time
	// overlap check can fire.
	SkipPrecheck bool
	// FailRule, when set, is consulted by Tx.PutWeeklyRule before each write.
	FailRule func(availability.WeeklyRule) error
	Now      func() time.Time
}

var _ booking.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		businesses: map[string]model.Business{},
		services:   map[string]model.Service{},
		rules:      map[string]map[time.Weekday]availability.WeeklyRule{},
		exceptions: map[string]map[availability.Date]model.DateException{},
		idem:       map[string]booking.IdempotencyRecord{},
		Now:        time.Now,
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// AddBusiness seeds a business, assigning an ID when empty.
func (s *Store) AddBusiness(b model.Business) model.Business {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = s.nextID("biz")
	}
	s.businesses[b.ID] = b
	return b
}

func (s *Store) AddService(svc model.Service) model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == "" {
		svc.ID = s.nextID("svc")
	}
	s.services[svc.ID] = svc
	return svc
}

// AddBooking seeds a booking without any overlap check.
func (s *Store) AddBooking(b model.Booking) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = s.nextID("bkg")
	}
	if b.Status == "" {
		b.Status = model.StatusConfirmed
	}
	s.bookings = append(s.bookings, b)
	return b
}

func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) AllBookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Booking(nil), s.bookings...)
}

func (s *Store) BusinessBySlug(_ context.Context, slug string) (model.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.businesses {
		if b.Slug == slug {
			return b, nil
		}
	}
	return model.Business{}, booking.ErrNotFound
}

func (s *Store) Business(_ context.Context, businessID string) (model.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return model.Business{}, booking.ErrNotFound
	}
	return b, nil
}

func (s *Store) UpdateBusiness(_ context.Context, b model.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses[b.ID]; !ok {
		return booking.ErrNotFound
	}
	for id, other := range s.businesses {
		if id != b.ID && other.Slug == b.Slug {
			return booking.ErrSlugUsed
		}
	}
	s.businesses[b.ID] = b
	return nil
}

func (s *Store) Services(_ context.Context, businessID string, activeOnly bool) ([]model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Service{}
	for _, svc := range s.services {
		if svc.BusinessID == businessID && (!activeOnly || svc.IsActive) {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) Service(_ context.Context, businessID, serviceID string) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.BusinessID != businessID {
		return model.Service{}, booking.ErrNotFound
	}
	return svc, nil
}

func (s *Store) CreateService(_ context.Context, svc *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc.ID = s.nextID("svc")
	svc.CreatedAt = s.Now()
	s.services[svc.ID] = *svc
	return nil
}

func (s *Store) UpdateService(_ context.Context, svc model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.services[svc.ID]
	if !ok || cur.BusinessID != svc.BusinessID {
		return booking.ErrNotFound
	}
	s.services[svc.ID] = svc
	return nil
}

func (s *Store) DeactivateService(_ context.Context, businessID, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.BusinessID != businessID {
		return booking.ErrNotFound
	}
	svc.IsActive = false
	s.services[serviceID] = svc
	return nil
}

func (s *Store) WeeklyRules(_ context.Context, businessID string) ([]availability.WeeklyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []availability.WeeklyRule{}
	for _, r := range s.rules[businessID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (s *Store) WeeklyRule(_ context.Context, businessID string, weekday time.Weekday) (*availability.WeeklyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[businessID][weekday]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) PutWeeklyRule(_ context.Context, businessID string, rule availability.WeeklyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules[businessID] == nil {
		s.rules[businessID] = map[time.Weekday]availability.WeeklyRule{}
	}
	s.rules[businessID][rule.Weekday] = rule
	return nil
}

func (s *Store) DeleteWeeklyRule(_ context.Context, businessID string, weekday time.Weekday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[businessID][weekday]; !ok {
		return booking.ErrNotFound
	}
	delete(s.rules[businessID], weekday)
	return nil
}

func (s *Store) Exceptions(_ context.Context, businessID string, from, to availability.Date) ([]model.DateException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.DateException{}
	for d, ex := range s.exceptions[businessID] {
		if !d.Before(from) && !to.Before(d) {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) PutException(_ context.Context, businessID string, ex model.DateException) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exceptions[businessID] == nil {
		s.exceptions[businessID] = map[availability.Date]model.DateException{}
	}
	s.exceptions[businessID][ex.Date] = ex
	return nil
}

func (s *Store) DeleteException(_ context.Context, businessID string, date availability.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exceptions[businessID][date]; !ok {
		return booking.ErrNotFound
	}
	delete(s.exceptions[businessID], date)
	return nil
}

func (s *Store) confirmedIntervals(businessID string, span availability.Interval) []availability.Interval {
	out := []availability.Interval{}
	for _, b := range s.bookings {
		if b.BusinessID == businessID && b.Status == model.StatusConfirmed && b.Interval().Overlaps(span) {
			out = append(out, b.Interval())
		}
	}
	return out
}

func (s *Store) ConfirmedIntervals(_ context.Context, businessID string, span availability.Interval) ([]availability.Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmedIntervals(businessID, span), nil
}

func (s *Store) Booking(_ context.Context, bookingID string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == bookingID {
			return b, nil
		}
	}
	return model.Booking{}, booking.ErrNotFound
}

func (s *Store) Bookings(_ context.Context, businessID string, f model.BookingFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Booking{}
	for _, b := range s.bookings {
		switch {
		case b.BusinessID != businessID:
		case f.Status != "" && b.Status != f.Status:
		case !f.From.IsZero() && b.StartAt.Before(f.From):
		case !f.To.IsZero() && !b.StartAt.Before(f.To):
		default:
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CountConfirmed(_ context.Context, businessID string, span availability.Interval) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.BusinessID == businessID && b.Status == model.StatusConfirmed &&
			!b.StartAt.Before(span.Start) && b.StartAt.Before(span.End) {
			n++
		}
	}
	return n, nil
}

func (s *Store) NextConfirmed(_ context.Context, businessID string, after time.Time) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *model.Booking
	for i := range s.bookings {
		b := s.bookings[i]
		if b.BusinessID != businessID || b.Status != model.StatusConfirmed || !b.StartAt.After(after) {
			continue
		}
		if next == nil || b.StartAt.Before(next.StartAt) {
			next = &b
		}
	}
	return next, nil
}

func (s *Store) TopServices(_ context.Context, businessID string, limit int) ([]model.ServiceCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, b := range s.bookings {
		if b.BusinessID == businessID && b.Status == model.StatusConfirmed {
			counts[b.ServiceID]++
		}
	}
	out := []model.ServiceCount{}
	for id, n := range counts {
		out = append(out, model.ServiceCount{ServiceID: id, ServiceName: s.services[id].Name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ServiceName < out[j].ServiceName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InTx(_ context.Context, fn func(tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookings := append([]model.Booking(nil), s.bookings...)
	events := append([]outbox.Event(nil), s.events...)
	idem := make(map[string]booking.IdempotencyRecord, len(s.idem))
	for k, v := range s.idem {
		idem[k] = v
	}
	seq := s.seq
	rules := make(map[string]map[time.Weekday]availability.WeeklyRule, len(s.rules))
	for biz, byDay := range s.rules {
		rules[biz] = make(map[time.Weekday]availability.WeeklyRule, len(byDay))
		for d, r := range byDay {
			rules[biz][d] = r
		}
	}

	if err := fn(&memTx{s: s}); err != nil {
		s.bookings, s.events, s.idem, s.seq, s.rules = bookings, events, idem, seq, rules
		return err
	}
	return nil
}

type memTx struct {
	s *Store
}

func idemKey(businessID, key string) string {
	return businessID + "\x00" + key
}

func (t *memTx) LockIdempotencyKey(_ context.Context, businessID, key string) (booking.IdempotencyRecord, bool, error) {
	rec, ok := t.s.idem[idemKey(businessID, key)]
	if !ok {
		t.s.idem[idemKey(businessID, key)] = booking.IdempotencyRecord{}
	}
	return rec, ok, nil
}

func (t *memTx) FinalizeIdempotency(_ context.Context, businessID, key string, rec booking.IdempotencyRecord) error {
	t.s.idem[idemKey(businessID, key)] = rec
	return nil
}

func (t *memTx) LockBusiness(context.Context, string) error { return nil }

func (t *memTx) ConfirmedIntervals(_ context.Context, businessID string, span availability.Interval) ([]availability.Interval, error) {
	if t.s.SkipPrecheck {
		return nil, nil
	}
	return t.s.confirmedIntervals(businessID, span), nil
}

func (t *memTx) PutWeeklyRule(_ context.Context, businessID string, rule availability.WeeklyRule) error {
	if t.s.FailRule != nil {
		if err := t.s.FailRule(rule); err != nil {
			return err
		}
	}
	if t.s.rules[businessID] == nil {
		t.s.rules[businessID] = map[time.Weekday]availability.WeeklyRule{}
	}
	t.s.rules[businessID][rule.Weekday] = rule
	return nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	if len(t.s.confirmedIntervals(b.BusinessID, b.Interval())) > 0 {
		return booking.ErrOverlap
	}
	b.ID = t.s.nextID("bkg")
	b.CreatedAt = t.s.Now()
	t.s.bookings = append(t.s.bookings, *b)
	return nil
}

func (t *memTx) BookingForUpdate(_ context.Context, businessID, bookingID string) (model.Booking, error) {
	for _, b := range t.s.bookings {
		if b.ID == bookingID && b.BusinessID == businessID {
			return b, nil
		}
	}
	return model.Booking{}, booking.ErrNotFound
}

func (t *memTx) CancelBooking(_ context.Context, businessID, bookingID, reason string) (time.Time, error) {
	now := t.s.Now()
	for i := range t.s.bookings {
		b := &t.s.bookings[i]
		if b.ID == bookingID && b.BusinessID == businessID && b.Status == model.StatusConfirmed {
			b.Status = model.StatusCancelled
			b.CancelledAt = &now
			b.CancelReason = reason
			return now, nil
		}
	}
	return time.Time{}, booking.ErrNotFound
}

func (t *memTx) Enqueue(_ context.Context, evt outbox.Event) error {
	t.s.events = append(t.s.events, evt)
	return nil
}
