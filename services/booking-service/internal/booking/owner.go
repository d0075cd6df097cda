package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/money"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	exceptionWindow  = 366
)

func (s *Service) Profile(ctx context.Context, businessID string) (model.Business, error) {
	biz, err := s.store.Business(ctx, businessID)
	if err != nil {
		return model.Business{}, orNotFound(err, ErrBusinessNotFound)
	}
	return biz, nil
}

// ProfileUpdate carries the editable business fields; empty fields keep their value.
type ProfileUpdate struct {
	Name     string
	Slug     string
	Timezone string
	Currency string
}

func (s *Service) UpdateProfile(ctx context.Context, businessID string, in ProfileUpdate) (model.Business, error) {
	biz, err := s.Profile(ctx, businessID)
	if err != nil {
		return model.Business{}, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		if !validName(name) {
			return model.Business{}, invalid("name must be 2-%d characters", maxNameLength)
		}
		biz.Name = name
	}
	if slug := strings.ToLower(strings.TrimSpace(in.Slug)); slug != "" {
		if !validSlug(slug) {
			return model.Business{}, invalid("slug may only contain lowercase letters, digits and dashes")
		}
		biz.Slug = slug
	}
	if tz := strings.TrimSpace(in.Timezone); tz != "" {
		if _, err := availability.LoadZone(tz); err != nil {
			return model.Business{}, invalid("unknown timezone %q", tz)
		}
		biz.Timezone = tz
	}
	if cur := strings.TrimSpace(in.Currency); cur != "" {
		unit, err := money.ParseCurrency(strings.ToUpper(cur))
		if err != nil {
			return model.Business{}, invalid("currency must be an ISO 4217 code")
		}
		biz.Currency = unit.String()
	}

	if err := s.store.UpdateBusiness(ctx, biz); err != nil {
		if errors.Is(err, ErrSlugUsed) {
			return model.Business{}, ErrSlugUsed
		}
		return model.Business{}, orNotFound(err, ErrBusinessNotFound)
	}
	return biz, nil
}

func (s *Service) OwnerServices(ctx context.Context, businessID string) ([]model.Service, error) {
	return s.store.Services(ctx, businessID, false)
}

type ServiceInput struct {
	Name            string
	Description     string
	DurationMinutes int
	PriceMinor      int64
	// IsActive is only honoured on update; new services start active.
	IsActive *bool
}

func (in *ServiceInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case !validName(in.Name):
		return invalid("name must be 2-%d characters", maxNameLength)
	case len(in.Description) > maxNoteLength:
		return invalid("description must be at most %d characters", maxNoteLength)
	case in.DurationMinutes < minServiceMinutes || in.DurationMinutes > maxServiceMinutes:
		return invalid("duration_minutes must be between %d and %d", minServiceMinutes, maxServiceMinutes)
	case in.PriceMinor < 0:
		return invalid("price must not be negative")
	}
	return nil
}

func (s *Service) CreateService(ctx context.Context, businessID string, in ServiceInput) (model.Service, error) {
	if err := in.validate(); err != nil {
		return model.Service{}, err
	}
	svc := model.Service{
		BusinessID:      businessID,
		Name:            in.Name,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		PriceMinor:      in.PriceMinor,
		IsActive:        true,
	}
	if err := s.store.CreateService(ctx, &svc); err != nil {
		return model.Service{}, fmt.Errorf("create service: %w", err)
	}
	return svc, nil
}

func (s *Service) UpdateService(ctx context.Context, businessID, serviceID string, in ServiceInput) (model.Service, error) {
	if err := in.validate(); err != nil {
		return model.Service{}, err
	}
	svc, err := s.store.Service(ctx, businessID, serviceID)
	if err != nil {
		return model.Service{}, orNotFound(err, ErrServiceNotFound)
	}
	svc.Name = in.Name
	svc.Description = in.Description
	svc.DurationMinutes = in.DurationMinutes
	svc.PriceMinor = in.PriceMinor
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	if err := s.store.UpdateService(ctx, svc); err != nil {
		return model.Service{}, orNotFound(err, ErrServiceNotFound)
	}
	return svc, nil
}

// DeactivateService hides a service from the public pages. Existing bookings are untouched.
func (s *Service) DeactivateService(ctx context.Context, businessID, serviceID string) error {
	return orNotFound(s.store.DeactivateService(ctx, businessID, serviceID), ErrServiceNotFound)
}

func (s *Service) WeeklyRules(ctx context.Context, businessID string) ([]availability.WeeklyRule, error) {
	rules, err := s.store.WeeklyRules(ctx, businessID)
	if err != nil {
		return nil, err
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Weekday < rules[j].Weekday })
	return rules, nil
}

// PutWeeklyRule replaces the rule of rule.Weekday.
func (s *Service) PutWeeklyRule(ctx context.Context, businessID string, rule availability.WeeklyRule) error {
	if err := rule.Validate(); err != nil {
		return invalid("%v", err)
	}
	return s.store.PutWeeklyRule(ctx, businessID, rule)
}

// PutWeeklyRules validates every rule, then writes them all in one transaction. A weekday may
// appear once.
func (s *Service) PutWeeklyRules(ctx context.Context, businessID string, rules []availability.WeeklyRule) error {
	seen := make(map[time.Weekday]bool, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return invalid("%v", err)
		}
		if seen[rule.Weekday] {
			return invalid("weekday %d listed twice", int(rule.Weekday))
		}
		seen[rule.Weekday] = true
	}
	return s.store.InTx(ctx, func(tx Tx) error {
		for _, rule := range rules {
			if err := tx.PutWeeklyRule(ctx, businessID, rule); err != nil {
				return fmt.Errorf("save rule for weekday %d: %w", int(rule.Weekday), err)
			}
		}
		return nil
	})
}

func (s *Service) DeleteWeeklyRule(ctx context.Context, businessID string, weekday time.Weekday) error {
	return orNotFound(s.store.DeleteWeeklyRule(ctx, businessID, weekday), ErrRuleNotFound)
}

// Exceptions lists overrides in [from, to]. A zero from defaults to today in the business
// timezone, a zero to to a year after from.
func (s *Service) Exceptions(ctx context.Context, businessID string, from, to availability.Date) ([]model.DateException, error) {
	if from == (availability.Date{}) {
		biz, err := s.Profile(ctx, businessID)
		if err != nil {
			return nil, err
		}
		loc, err := availability.LoadZone(biz.Timezone)
		if err != nil {
			return nil, fmt.Errorf("business %s: %w", biz.ID, err)
		}
		from = availability.DateOf(s.now().In(loc))
	}
	if to == (availability.Date{}) {
		to = from.AddDays(exceptionWindow)
	}
	if to.Before(from) {
		return nil, invalid("to must not be before from")
	}
	return s.store.Exceptions(ctx, businessID, from, to)
}

// PutException stores a closure or custom hours for one date. Closed exceptions drop any
// hours sent along.
func (s *Service) PutException(ctx context.Context, businessID string, ex model.DateException) (model.DateException, error) {
	if ex.Date == (availability.Date{}) {
		return model.DateException{}, invalid("date is required")
	}
	if ex.IsClosed {
		ex.Start, ex.End, ex.Breaks = nil, nil, nil
	} else {
		if ex.Start == nil || ex.End == nil {
			return model.DateException{}, invalid("start and end are required unless is_closed is set")
		}
		if err := availability.ValidateHours(*ex.Start, *ex.End, ex.Breaks); err != nil {
			return model.DateException{}, invalid("%v", err)
		}
		if ex.Breaks == nil {
			ex.Breaks = []availability.Break{}
		}
	}
	if err := s.store.PutException(ctx, businessID, ex); err != nil {
		return model.DateException{}, err
	}
	return ex, nil
}

func (s *Service) DeleteException(ctx context.Context, businessID string, date availability.Date) error {
	return orNotFound(s.store.DeleteException(ctx, businessID, date), ErrRuleNotFound)
}

func (s *Service) OwnerBookings(ctx context.Context, businessID string, filter model.BookingFilter) ([]model.Booking, error) {
	switch filter.Status {
	case "", model.StatusConfirmed, model.StatusCancelled:
	default:
		return nil, invalid("status must be confirmed or cancelled")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, invalid("from must be before to")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	return s.store.Bookings(ctx, businessID, filter)
}
