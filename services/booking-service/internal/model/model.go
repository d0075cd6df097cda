package model

import (
	"time"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

type Business struct {
	ID        string
	Name      string
	Slug      string
	Timezone  string
	Currency  string
	CreatedAt time.Time
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	Description     string
	DurationMinutes int
	PriceMinor      int64
	IsActive        bool
	CreatedAt       time.Time
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Booking struct {
	ID            string
	BusinessID    string
	ServiceID     string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Note          string
	StartAt       time.Time
	EndAt         time.Time
	Status        string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

func (b Booking) Interval() availability.Interval {
	return availability.Interval{Start: b.StartAt, End: b.EndAt}
}

// DateException is the stored shape of a date override, kept flat for the dashboard.
type DateException struct {
	Date     availability.Date
	IsClosed bool
	Start    *availability.Clock
	End      *availability.Clock
	Breaks   []availability.Break
}

func (e DateException) Exception() availability.Exception {
	return availability.ExceptionFromRow(e.IsClosed, e.Start, e.End, e.Breaks)
}

type BookingFilter struct {
	Status string
	From   time.Time
	To     time.Time
	Limit  int
}

type ServiceCount struct {
	ServiceID   string
	ServiceName string
	Count       int
}
