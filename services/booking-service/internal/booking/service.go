package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/outbox"
)

// Service owns fetch orchestration around the pure availability resolver and the
// transactional booking write path.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, which decides which slots are already in the past.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DayAvailability is the resolved slot list for one public date.
type DayAvailability struct {
	Business model.Business
	Service  model.Service
	Date     availability.Date
	Slots    []availability.Slot
}

// PublicServices lists the active services of the business behind slug.
func (s *Service) PublicServices(ctx context.Context, slug string) (model.Business, []model.Service, error) {
	biz, err := s.store.BusinessBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return model.Business{}, nil, orNotFound(err, ErrBusinessNotFound)
	}
	services, err := s.store.Services(ctx, biz.ID, true)
	if err != nil {
		return model.Business{}, nil, fmt.Errorf("list services: %w", err)
	}
	return biz, services, nil
}

func (s *Service) publicTarget(ctx context.Context, slug, serviceID string) (model.Business, model.Service, error) {
	biz, err := s.store.BusinessBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return model.Business{}, model.Service{}, orNotFound(err, ErrBusinessNotFound)
	}
	svc, err := s.store.Service(ctx, biz.ID, strings.TrimSpace(serviceID))
	if err != nil {
		return model.Business{}, model.Service{}, orNotFound(err, ErrServiceNotFound)
	}
	if !svc.IsActive {
		return model.Business{}, model.Service{}, ErrServiceNotFound
	}
	return biz, svc, nil
}

// DaySlots resolves the bookable slots on a business-local date. Slots that already started
// are hidden.
func (s *Service) DaySlots(ctx context.Context, slug, serviceID, date string) (DayAvailability, error) {
	defer metrics.ObserveResolve("day", time.Now())

	day, err := availability.ParseDate(date)
	if err != nil {
		return DayAvailability{}, invalid("date must be YYYY-MM-DD")
	}
	biz, svc, err := s.publicTarget(ctx, slug, serviceID)
	if err != nil {
		return DayAvailability{}, err
	}
	slots, err := s.resolveDay(ctx, biz, svc, day, true)
	if err != nil {
		return DayAvailability{}, err
	}
	return DayAvailability{Business: biz, Service: svc, Date: day, Slots: slots}, nil
}

func (s *Service) resolveDay(ctx context.Context, biz model.Business, svc model.Service, day availability.Date, withBookings bool) ([]availability.Slot, error) {
	loc, err := availability.LoadZone(biz.Timezone)
	if err != nil {
		return nil, fmt.Errorf("business %s: %w", biz.ID, err)
	}
	rule, err := s.store.WeeklyRule(ctx, biz.ID, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load weekly rule: %w", err)
	}
	exceptions, err := s.store.Exceptions(ctx, biz.ID, day, day)
	if err != nil {
		return nil, fmt.Errorf("load exception: %w", err)
	}
	var exception availability.Exception
	if len(exceptions) > 0 {
		exception = exceptions[0].Exception()
	}
	var bookings []availability.Interval
	if withBookings {
		bookings, err = s.store.ConfirmedIntervals(ctx, biz.ID, day.Span(loc))
		if err != nil {
			return nil, fmt.Errorf("load bookings: %w", err)
		}
	}
	return availability.Resolve(availability.DayRequest{
		Date:      day,
		Timezone:  biz.Timezone,
		Duration:  svc.Duration(),
		Rule:      rule,
		Exception: exception,
		Bookings:  bookings,
		NotBefore: s.now(),
	})
}

// MonthSummary classifies every business-local date of month as available or closed.
func (s *Service) MonthSummary(ctx context.Context, slug, serviceID, month string) (availability.MonthSummary, error) {
	defer metrics.ObserveResolve("month", time.Now())

	m, err := availability.ParseMonth(month)
	if err != nil {
		return availability.MonthSummary{}, invalid("month must be YYYY-MM")
	}
	biz, svc, err := s.publicTarget(ctx, slug, serviceID)
	if err != nil {
		return availability.MonthSummary{}, err
	}
	loc, err := availability.LoadZone(biz.Timezone)
	if err != nil {
		return availability.MonthSummary{}, fmt.Errorf("business %s: %w", biz.ID, err)
	}

	rules, err := s.store.WeeklyRules(ctx, biz.ID)
	if err != nil {
		return availability.MonthSummary{}, fmt.Errorf("load weekly rules: %w", err)
	}
	rows, err := s.store.Exceptions(ctx, biz.ID, m.First(), m.Last())
	if err != nil {
		return availability.MonthSummary{}, fmt.Errorf("load exceptions: %w", err)
	}
	exceptions := make(map[availability.Date]availability.Exception, len(rows))
	for _, row := range rows {
		if ex := row.Exception(); ex != nil {
			exceptions[row.Date] = ex
		}
	}
	span := availability.Interval{Start: m.First().Span(loc).Start, End: m.Last().Span(loc).End}
	bookings, err := s.store.ConfirmedIntervals(ctx, biz.ID, span)
	if err != nil {
		return availability.MonthSummary{}, fmt.Errorf("load bookings: %w", err)
	}

	return availability.SummarizeMonth(availability.MonthRequest{
		Month:      m,
		Timezone:   biz.Timezone,
		Duration:   svc.Duration(),
		Rules:      rules,
		Exceptions: exceptions,
		Bookings:   bookings,
		NotBefore:  s.now(),
	})
}

type BookRequest struct {
	Slug      string
	ServiceID string
	// Date and StartTime are business-local; StartAt, when set, takes precedence.
	Date           string
	StartTime      string
	StartAt        time.Time
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Note           string
	IdempotencyKey string
}

type Confirmation struct {
	BookingID string    `json:"booking_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Status    string    `json:"status"`
	Replayed  bool      `json:"-"`
}

func (r *BookRequest) normalize() error {
	r.Slug = strings.TrimSpace(r.Slug)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.ToLower(strings.TrimSpace(r.CustomerEmail))
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.Note = strings.TrimSpace(r.Note)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)

	switch {
	case r.Slug == "" || r.ServiceID == "":
		return invalid("slug and service_id are required")
	case !validName(r.CustomerName):
		return invalid("customer_name must be 2-%d characters", maxNameLength)
	case !validEmail(r.CustomerEmail):
		return invalid("customer_email is not a valid address")
	case r.CustomerPhone != "" && !validPhone(r.CustomerPhone):
		return invalid("customer_phone must be in E.164 format")
	case len(r.Note) > maxNoteLength:
		return invalid("note must be at most %d characters", maxNoteLength)
	case len(r.IdempotencyKey) > 200:
		return invalid("Idempotency-Key is too long")
	case r.StartAt.IsZero() && (r.Date == "" || r.StartTime == ""):
		return invalid("date and start_time are required")
	}
	return nil
}

// Book confirms a booking for an offered slot. Overlap is checked under a per-business lock
// and the store's exclusion constraint backs it up; both surface as ErrSlotTaken.
func (s *Service) Book(ctx context.Context, req BookRequest) (Confirmation, error) {
	conf, err := s.book(ctx, req)
	switch {
	case err == nil && conf.Replayed:
		metrics.IncBookingCreated("replayed")
	case err == nil:
		metrics.IncBookingCreated("confirmed")
	case errors.Is(err, ErrSlotTaken):
		metrics.IncBookingCreated("conflict")
	case errors.Is(err, ErrOutsideAvailability):
		metrics.IncBookingCreated("unavailable")
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrBusinessNotFound), errors.Is(err, ErrServiceNotFound):
		metrics.IncBookingCreated("rejected")
	default:
		metrics.IncBookingCreated("error")
	}
	return conf, err
}

func (s *Service) book(ctx context.Context, req BookRequest) (Confirmation, error) {
	if err := req.normalize(); err != nil {
		return Confirmation{}, err
	}
	biz, svc, err := s.publicTarget(ctx, req.Slug, req.ServiceID)
	if err != nil {
		return Confirmation{}, err
	}
	loc, err := availability.LoadZone(biz.Timezone)
	if err != nil {
		return Confirmation{}, fmt.Errorf("business %s: %w", biz.ID, err)
	}

	start := req.StartAt
	if start.IsZero() {
		day, err := availability.ParseDate(req.Date)
		if err != nil {
			return Confirmation{}, invalid("date must be YYYY-MM-DD")
		}
		clock, err := availability.ParseClock(req.StartTime)
		if err != nil {
			return Confirmation{}, invalid("start_time must be HH:MM")
		}
		start = clock.On(day, loc)
	}
	start = start.UTC()
	candidate := availability.Interval{Start: start, End: start.Add(svc.Duration())}

	// Resolve without bookings so a taken slot reports a conflict rather than unavailability.
	offered, err := s.resolveDay(ctx, biz, svc, availability.DateOf(start.In(loc)), false)
	if err != nil {
		return Confirmation{}, err
	}
	available := availability.Offers(offered, start)
	if !available && req.IdempotencyKey == "" {
		return Confirmation{}, ErrOutsideAvailability
	}

	var conf Confirmation
	err = s.store.InTx(ctx, func(tx Tx) error {
		// A recorded key replays its response even once the slot has started.
		if req.IdempotencyKey != "" {
			rec, exists, err := tx.LockIdempotencyKey(ctx, biz.ID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if exists && rec.BookingID != "" && rec.StatusCode == http.StatusCreated {
				if err := json.Unmarshal(rec.Response, &conf); err != nil {
					return fmt.Errorf("decode stored response: %w", err)
				}
				conf.Replayed = true
				return nil
			}
		}
		if !available {
			return ErrOutsideAvailability
		}

		if err := tx.LockBusiness(ctx, biz.ID); err != nil {
			return fmt.Errorf("lock business: %w", err)
		}
		existing, err := tx.ConfirmedIntervals(ctx, biz.ID, candidate)
		if err != nil {
			return fmt.Errorf("load bookings: %w", err)
		}
		if availability.WouldConflict(candidate, existing) {
			metrics.IncBookingConflict("precheck")
			return ErrSlotTaken
		}

		b := &model.Booking{
			BusinessID:    biz.ID,
			ServiceID:     svc.ID,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			CustomerPhone: req.CustomerPhone,
			Note:          req.Note,
			StartAt:       candidate.Start,
			EndAt:         candidate.End,
			Status:        model.StatusConfirmed,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			if errors.Is(err, ErrOverlap) {
				metrics.IncBookingConflict("constraint")
				return ErrSlotTaken
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		evt, err := outbox.NewBookingEvent(outbox.TopicBookingConfirmed, bookingEvent(biz, svc, *b))
		if err != nil {
			return err
		}
		if err := tx.Enqueue(ctx, evt); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}

		conf = Confirmation{BookingID: b.ID, StartAt: b.StartAt, EndAt: b.EndAt, Status: b.Status}
		if req.IdempotencyKey != "" {
			body, err := json.Marshal(conf)
			if err != nil {
				return err
			}
			if err := tx.FinalizeIdempotency(ctx, biz.ID, req.IdempotencyKey, IdempotencyRecord{
				BookingID:  b.ID,
				StatusCode: http.StatusCreated,
				Response:   body,
			}); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Confirmation{}, err
	}
	if !conf.Replayed {
		s.logger.InfoContext(ctx, "booking confirmed", "booking_id", conf.BookingID, "business_id", biz.ID, "start_at", conf.StartAt)
	}
	return conf, nil
}

// BookingDetails is a booking with the business and service it belongs to.
type BookingDetails struct {
	Booking  model.Booking
	Business model.Business
	Service  model.Service
}

// PublicBooking looks a booking up for its confirmation page. When slug is set it must
// match the owning business.
func (s *Service) PublicBooking(ctx context.Context, bookingID, slug string) (BookingDetails, error) {
	b, err := s.store.Booking(ctx, strings.TrimSpace(bookingID))
	if err != nil {
		return BookingDetails{}, orNotFound(err, ErrBookingNotFound)
	}
	biz, err := s.store.Business(ctx, b.BusinessID)
	if err != nil {
		return BookingDetails{}, orNotFound(err, ErrBookingNotFound)
	}
	if slug = strings.TrimSpace(slug); slug != "" && slug != biz.Slug {
		return BookingDetails{}, ErrBookingNotFound
	}
	svc, err := s.store.Service(ctx, biz.ID, b.ServiceID)
	if err != nil {
		return BookingDetails{}, orNotFound(err, ErrServiceNotFound)
	}
	return BookingDetails{Booking: b, Business: biz, Service: svc}, nil
}

// Cancel moves a confirmed booking to cancelled. Cancelling twice returns the stored state.
func (s *Service) Cancel(ctx context.Context, businessID, bookingID, reason string) (model.Booking, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxNoteLength {
		return model.Booking{}, invalid("reason must be at most %d characters", maxNoteLength)
	}
	biz, err := s.store.Business(ctx, businessID)
	if err != nil {
		return model.Booking{}, orNotFound(err, ErrBusinessNotFound)
	}

	current, err := s.store.Booking(ctx, strings.TrimSpace(bookingID))
	if err != nil {
		return model.Booking{}, orNotFound(err, ErrBookingNotFound)
	}
	if current.BusinessID != biz.ID {
		return model.Booking{}, ErrBookingNotFound
	}
	svc, err := s.store.Service(ctx, biz.ID, current.ServiceID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("load service: %w", err)
	}

	var out model.Booking
	changed := false
	err = s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, biz.ID, current.ID)
		if err != nil {
			return orNotFound(err, ErrBookingNotFound)
		}
		if b.Status == model.StatusCancelled {
			out = b
			return nil
		}
		if b.Status != model.StatusConfirmed {
			return ErrNotCancellable
		}

		cancelledAt, err := tx.CancelBooking(ctx, biz.ID, b.ID, reason)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		b.Status = model.StatusCancelled
		b.CancelledAt = &cancelledAt
		b.CancelReason = reason

		evt, err := outbox.NewBookingEvent(outbox.TopicBookingCancelled, bookingEvent(biz, svc, b))
		if err != nil {
			return err
		}
		if err := tx.Enqueue(ctx, evt); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}
		out = b
		changed = true
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	if changed {
		metrics.IncBookingCancelled()
		s.logger.InfoContext(ctx, "booking cancelled", "booking_id", out.ID, "business_id", biz.ID)
	}
	return out, nil
}

func bookingEvent(biz model.Business, svc model.Service, b model.Booking) outbox.BookingEvent {
	evt := outbox.BookingEvent{
		BookingID:        b.ID,
		BusinessID:       biz.ID,
		BusinessName:     biz.Name,
		BusinessTimezone: biz.Timezone,
		ServiceID:        svc.ID,
		ServiceName:      svc.Name,
		CustomerName:     b.CustomerName,
		CustomerEmail:    b.CustomerEmail,
		CustomerPhone:    b.CustomerPhone,
		StartAt:          b.StartAt.UTC().Format(time.RFC3339),
		EndAt:            b.EndAt.UTC().Format(time.RFC3339),
		Reason:           b.CancelReason,
	}
	if b.CancelledAt != nil {
		evt.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return evt
}
