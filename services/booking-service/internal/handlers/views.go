package handlers

import (
	"time"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/money"
)

type businessView struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Timezone  string `json:"timezone"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toBusinessView(b model.Business, owner bool) businessView {
	v := businessView{Name: b.Name, Slug: b.Slug, Timezone: b.Timezone, Currency: b.Currency}
	if owner {
		v.ID = b.ID
		v.CreatedAt = formatTime(b.CreatedAt)
	}
	return v
}

type serviceView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceMinor      int64  `json:"price_minor"`
	Price           string `json:"price"`
	IsActive        bool   `json:"is_active"`
}

func toServiceView(s model.Service, currency string) serviceView {
	price, err := money.Format(s.PriceMinor, currency)
	if err != nil {
		price = ""
	}
	return serviceView{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		DurationMinutes: s.DurationMinutes,
		PriceMinor:      s.PriceMinor,
		Price:           price,
		IsActive:        s.IsActive,
	}
}

type slotView struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Label     string `json:"label"`
}

func toSlotViews(slots []availability.Slot) []slotView {
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotView{StartTime: formatTime(s.Start), EndTime: formatTime(s.End), Label: s.Label})
	}
	return out
}

func dateStrings(days []availability.Date) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return out
}

type ruleView struct {
	Weekday   int                  `json:"weekday"`
	StartTime availability.Clock   `json:"start_time"`
	EndTime   availability.Clock   `json:"end_time"`
	Breaks    []availability.Break `json:"breaks"`
}

func toRuleView(r availability.WeeklyRule) ruleView {
	breaks := r.Breaks
	if breaks == nil {
		breaks = []availability.Break{}
	}
	return ruleView{Weekday: int(r.Weekday), StartTime: r.Start, EndTime: r.End, Breaks: breaks}
}

func (v ruleView) rule() availability.WeeklyRule {
	return availability.WeeklyRule{Weekday: time.Weekday(v.Weekday), Start: v.StartTime, End: v.EndTime, Breaks: v.Breaks}
}

type exceptionView struct {
	Date      string               `json:"date"`
	IsClosed  bool                 `json:"is_closed"`
	StartTime *availability.Clock  `json:"start_time"`
	EndTime   *availability.Clock  `json:"end_time"`
	Breaks    []availability.Break `json:"breaks"`
}

func toExceptionView(e model.DateException) exceptionView {
	breaks := e.Breaks
	if breaks == nil {
		breaks = []availability.Break{}
	}
	return exceptionView{Date: e.Date.String(), IsClosed: e.IsClosed, StartTime: e.Start, EndTime: e.End, Breaks: breaks}
}

type bookingView struct {
	ID            string `json:"id"`
	ServiceID     string `json:"service_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	Note          string `json:"note,omitempty"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CancelReason  string `json:"cancel_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toBookingView(b model.Booking) bookingView {
	v := bookingView{
		ID:            b.ID,
		ServiceID:     b.ServiceID,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		CustomerPhone: b.CustomerPhone,
		Note:          b.Note,
		StartAt:       formatTime(b.StartAt),
		EndAt:         formatTime(b.EndAt),
		Status:        b.Status,
		CancelReason:  b.CancelReason,
		CreatedAt:     formatTime(b.CreatedAt),
	}
	if b.CancelledAt != nil {
		v.CancelledAt = formatTime(*b.CancelledAt)
	}
	return v
}

type confirmationView struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	StartAt   string `json:"start_at"`
	EndAt     string `json:"end_at"`
}

func toConfirmationView(c booking.Confirmation) confirmationView {
	return confirmationView{BookingID: c.BookingID, Status: c.Status, StartAt: formatTime(c.StartAt), EndAt: formatTime(c.EndAt)}
}

type publicBookingView struct {
	BookingID    string       `json:"booking_id"`
	Status       string       `json:"status"`
	StartAt      string       `json:"start_at"`
	EndAt        string       `json:"end_at"`
	LocalDate    string       `json:"local_date"`
	LocalTime    string       `json:"local_time"`
	CustomerName string       `json:"customer_name"`
	Business     businessView `json:"business"`
	Service      serviceView  `json:"service"`
}

func toPublicBookingView(d booking.BookingDetails) publicBookingView {
	v := publicBookingView{
		BookingID:    d.Booking.ID,
		Status:       d.Booking.Status,
		StartAt:      formatTime(d.Booking.StartAt),
		EndAt:        formatTime(d.Booking.EndAt),
		CustomerName: d.Booking.CustomerName,
		Business:     toBusinessView(d.Business, false),
		Service:      toServiceView(d.Service, d.Business.Currency),
	}
	if loc, err := availability.LoadZone(d.Business.Timezone); err == nil {
		local := d.Booking.StartAt.In(loc)
		v.LocalDate = local.Format("2006-01-02")
		v.LocalTime = local.Format("15:04")
	}
	return v
}

type serviceCountView struct {
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	Count       int    `json:"count"`
}

type overviewView struct {
	Today         string             `json:"today"`
	TodayCount    int                `json:"today_count"`
	ThisWeekCount int                `json:"this_week_count"`
	LastWeekCount int                `json:"last_week_count"`
	WeekChangePct *float64           `json:"week_change_pct"`
	NextBooking   *bookingView       `json:"next_booking"`
	TopServices   []serviceCountView `json:"top_services"`
}

func toOverviewView(o booking.Overview) overviewView {
	v := overviewView{
		Today:         o.Today.String(),
		TodayCount:    o.TodayCount,
		ThisWeekCount: o.ThisWeekCount,
		LastWeekCount: o.LastWeekCount,
		WeekChangePct: o.WeekChange(),
		TopServices:   make([]serviceCountView, 0, len(o.TopServices)),
	}
	if o.Next != nil {
		next := toBookingView(*o.Next)
		v.NextBooking = &next
	}
	for _, c := range o.TopServices {
		v.TopServices = append(v.TopServices, serviceCountView{ServiceID: c.ServiceID, ServiceName: c.ServiceName, Count: c.Count})
	}
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
