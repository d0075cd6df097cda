package booking

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/outbox"
)

// Errors a Store implementation reports; absence of optional rows is not an error.
var (
	ErrNotFound = errors.New("not found")
	ErrOverlap  = errors.New("overlapping confirmed booking")
	ErrSlugUsed = errors.New("slug already in use")
)

// Store is the read/write surface the service needs outside a transaction.
type Store interface {
	BusinessBySlug(ctx context.Context, slug string) (model.Business, error)
	Business(ctx context.Context, businessID string) (model.Business, error)
	UpdateBusiness(ctx context.Context, b model.Business) error

	Services(ctx context.Context, businessID string, activeOnly bool) ([]model.Service, error)
	Service(ctx context.Context, businessID, serviceID string) (model.Service, error)
	CreateService(ctx context.Context, s *model.Service) error
	UpdateService(ctx context.Context, s model.Service) error
	DeactivateService(ctx context.Context, businessID, serviceID string) error

	WeeklyRules(ctx context.Context, businessID string) ([]availability.WeeklyRule, error)
	// WeeklyRule returns nil when the weekday has no rule.
	WeeklyRule(ctx context.Context, businessID string, weekday time.Weekday) (*availability.WeeklyRule, error)
	PutWeeklyRule(ctx context.Context, businessID string, rule availability.WeeklyRule) error
	DeleteWeeklyRule(ctx context.Context, businessID string, weekday time.Weekday) error

	// Exceptions lists overrides with from <= date <= to.
	Exceptions(ctx context.Context, businessID string, from, to availability.Date) ([]model.DateException, error)
	PutException(ctx context.Context, businessID string, ex model.DateException) error
	DeleteException(ctx context.Context, businessID string, date availability.Date) error

	// ConfirmedIntervals returns confirmed bookings overlapping span.
	ConfirmedIntervals(ctx context.Context, businessID string, span availability.Interval) ([]availability.Interval, error)
	Booking(ctx context.Context, bookingID string) (model.Booking, error)
	Bookings(ctx context.Context, businessID string, filter model.BookingFilter) ([]model.Booking, error)
	// CountConfirmed counts confirmed bookings starting within span.
	CountConfirmed(ctx context.Context, businessID string, span availability.Interval) (int, error)
	// NextConfirmed returns nil when nothing is scheduled after the instant.
	NextConfirmed(ctx context.Context, businessID string, after time.Time) (*model.Booking, error)
	TopServices(ctx context.Context, businessID string, limit int) ([]model.ServiceCount, error)

	// InTx runs fn in one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// IdempotencyRecord is the stored outcome of a keyed booking request.
type IdempotencyRecord struct {
	BookingID  string
	StatusCode int
	Response   []byte
}

// Tx is the transactional write path for bookings and bulk rule replacement.
type Tx interface {
	// LockIdempotencyKey creates or locks the key row; exists is true when it was already present.
	LockIdempotencyKey(ctx context.Context, businessID, key string) (rec IdempotencyRecord, exists bool, err error)
	FinalizeIdempotency(ctx context.Context, businessID, key string, rec IdempotencyRecord) error
	// LockBusiness serializes booking writes of one business until the transaction ends.
	LockBusiness(ctx context.Context, businessID string) error
	ConfirmedIntervals(ctx context.Context, businessID string, span availability.Interval) ([]availability.Interval, error)
	PutWeeklyRule(ctx context.Context, businessID string, rule availability.WeeklyRule) error
	// InsertBooking fills ID and CreatedAt, and returns ErrOverlap when the exclusion constraint fires.
	InsertBooking(ctx context.Context, b *model.Booking) error
	BookingForUpdate(ctx context.Context, businessID, bookingID string) (model.Booking, error)
	CancelBooking(ctx context.Context, businessID, bookingID, reason string) (time.Time, error)
	Enqueue(ctx context.Context, evt outbox.Event) error
}
