package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/bookease/libs/db"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/outbox"
)

// Store is the Postgres implementation of booking.Store.
type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

var _ booking.Store = (*Store)(nil)

func NewStore(pool *db.Pool, events *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: events}
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func notFound(err error) error {
	if IsNotFound(err) {
		return booking.ErrNotFound
	}
	return err
}

// requireRow turns a write that touched nothing into booking.ErrNotFound.
func requireRow(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

const businessColumns = `id::text, name, slug, timezone, currency, created_at`

func scanBusiness(row pgx.Row) (model.Business, error) {
	var b model.Business
	err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.Timezone, &b.Currency, &b.CreatedAt)
	return b, notFound(err)
}

func (s *Store) BusinessBySlug(ctx context.Context, slug string) (model.Business, error) {
	return scanBusiness(s.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE slug = $1`, slug))
}

func (s *Store) Business(ctx context.Context, businessID string) (model.Business, error) {
	if !validID(businessID) {
		return model.Business{}, booking.ErrNotFound
	}
	return scanBusiness(s.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, businessID))
}

func (s *Store) UpdateBusiness(ctx context.Context, b model.Business) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE businesses
		SET name = $2, slug = $3, timezone = $4, currency = $5, updated_at = now()
		WHERE id = $1
	`, b.ID, b.Name, b.Slug, b.Timezone, b.Currency)
	if IsUniqueViolation(err) {
		return booking.ErrSlugUsed
	}
	return requireRow(tag, err)
}

const serviceColumns = `id::text, business_id::text, name, description, duration_minutes, price_minor, is_active, created_at`

func scanService(row pgx.Row) (model.Service, error) {
	var svc model.Service
	err := row.Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.Description, &svc.DurationMinutes, &svc.PriceMinor, &svc.IsActive, &svc.CreatedAt)
	return svc, err
}

func (s *Store) Services(ctx context.Context, businessID string, activeOnly bool) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE business_id = $1 AND (is_active OR NOT $2)
		ORDER BY name, created_at
	`, businessID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := []model.Service{}
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *Store) Service(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	if !validID(serviceID) {
		return model.Service{}, booking.ErrNotFound
	}
	svc, err := scanService(s.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+` FROM services WHERE id = $1 AND business_id = $2
	`, serviceID, businessID))
	return svc, notFound(err)
}

func (s *Store) CreateService(ctx context.Context, svc *model.Service) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO services (business_id, name, description, duration_minutes, price_minor, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`, svc.BusinessID, svc.Name, svc.Description, svc.DurationMinutes, svc.PriceMinor, svc.IsActive).Scan(&svc.ID, &svc.CreatedAt)
}

func (s *Store) UpdateService(ctx context.Context, svc model.Service) error {
	return requireRow(s.pool.Exec(ctx, `
		UPDATE services
		SET name = $3, description = $4, duration_minutes = $5, price_minor = $6, is_active = $7
		WHERE id = $1 AND business_id = $2
	`, svc.ID, svc.BusinessID, svc.Name, svc.Description, svc.DurationMinutes, svc.PriceMinor, svc.IsActive))
}

func (s *Store) DeactivateService(ctx context.Context, businessID, serviceID string) error {
	if !validID(serviceID) {
		return booking.ErrNotFound
	}
	return requireRow(s.pool.Exec(ctx, `
		UPDATE services SET is_active = false WHERE id = $1 AND business_id = $2
	`, serviceID, businessID))
}

func encodeBreaks(breaks []availability.Break) (string, error) {
	if breaks == nil {
		breaks = []availability.Break{}
	}
	b, err := json.Marshal(breaks)
	if err != nil {
		return "", fmt.Errorf("encode breaks: %w", err)
	}
	return string(b), nil
}

func decodeBreaks(raw string) ([]availability.Break, error) {
	var breaks []availability.Break
	if raw == "" {
		return breaks, nil
	}
	if err := json.Unmarshal([]byte(raw), &breaks); err != nil {
		return nil, fmt.Errorf("decode breaks: %w", err)
	}
	return breaks, nil
}

func parseClocks(values ...string) ([]availability.Clock, error) {
	out := make([]availability.Clock, len(values))
	for i, v := range values {
		c, err := availability.ParseClock(v)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func scanRule(row pgx.Row) (availability.WeeklyRule, error) {
	var (
		weekday         int
		start, end, raw string
	)
	if err := row.Scan(&weekday, &start, &end, &raw); err != nil {
		return availability.WeeklyRule{}, err
	}
	clocks, err := parseClocks(start, end)
	if err != nil {
		return availability.WeeklyRule{}, err
	}
	breaks, err := decodeBreaks(raw)
	if err != nil {
		return availability.WeeklyRule{}, err
	}
	return availability.WeeklyRule{Weekday: time.Weekday(weekday), Start: clocks[0], End: clocks[1], Breaks: breaks}, nil
}

const ruleColumns = `weekday, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), breaks::text`

func (s *Store) WeeklyRules(ctx context.Context, businessID string) ([]availability.WeeklyRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ruleColumns+` FROM availability_rules WHERE business_id = $1 ORDER BY weekday
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []availability.WeeklyRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *Store) WeeklyRule(ctx context.Context, businessID string, weekday time.Weekday) (*availability.WeeklyRule, error) {
	r, err := scanRule(s.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+` FROM availability_rules WHERE business_id = $1 AND weekday = $2
	`, businessID, int(weekday)))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func putWeeklyRule(ctx context.Context, q execer, businessID string, rule availability.WeeklyRule) error {
	breaks, err := encodeBreaks(rule.Breaks)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO availability_rules (business_id, weekday, start_time, end_time, breaks)
		VALUES ($1, $2, $3::time, $4::time, $5::jsonb)
		ON CONFLICT (business_id, weekday) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			breaks = EXCLUDED.breaks,
			updated_at = now()
	`, businessID, int(rule.Weekday), rule.Start.String(), rule.End.String(), breaks)
	return err
}

func (s *Store) PutWeeklyRule(ctx context.Context, businessID string, rule availability.WeeklyRule) error {
	return putWeeklyRule(ctx, s.pool, businessID, rule)
}

func (s *Store) DeleteWeeklyRule(ctx context.Context, businessID string, weekday time.Weekday) error {
	return requireRow(s.pool.Exec(ctx, `
		DELETE FROM availability_rules WHERE business_id = $1 AND weekday = $2
	`, businessID, int(weekday)))
}

func (s *Store) Exceptions(ctx context.Context, businessID string, from, to availability.Date) ([]model.DateException, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), is_closed,
			COALESCE(to_char(start_time, 'HH24:MI'), ''),
			COALESCE(to_char(end_time, 'HH24:MI'), ''),
			breaks::text
		FROM availability_exceptions
		WHERE business_id = $1 AND date BETWEEN $2::date AND $3::date
		ORDER BY date
	`, businessID, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.DateException{}
	for rows.Next() {
		var (
			day, start, end, raw string
			ex                   model.DateException
		)
		if err := rows.Scan(&day, &ex.IsClosed, &start, &end, &raw); err != nil {
			return nil, err
		}
		if ex.Date, err = availability.ParseDate(day); err != nil {
			return nil, err
		}
		if start != "" && end != "" {
			clocks, err := parseClocks(start, end)
			if err != nil {
				return nil, err
			}
			ex.Start, ex.End = &clocks[0], &clocks[1]
		}
		if ex.Breaks, err = decodeBreaks(raw); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

func (s *Store) PutException(ctx context.Context, businessID string, ex model.DateException) error {
	breaks, err := encodeBreaks(ex.Breaks)
	if err != nil {
		return err
	}
	var start, end *string
	if ex.Start != nil && ex.End != nil {
		s1, s2 := ex.Start.String(), ex.End.String()
		start, end = &s1, &s2
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO availability_exceptions (business_id, date, is_closed, start_time, end_time, breaks)
		VALUES ($1, $2::date, $3, $4::time, $5::time, $6::jsonb)
		ON CONFLICT (business_id, date) DO UPDATE
		SET is_closed = EXCLUDED.is_closed,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			breaks = EXCLUDED.breaks,
			updated_at = now()
	`, businessID, ex.Date.String(), ex.IsClosed, start, end, breaks)
	return err
}

func (s *Store) DeleteException(ctx context.Context, businessID string, date availability.Date) error {
	return requireRow(s.pool.Exec(ctx, `
		DELETE FROM availability_exceptions WHERE business_id = $1 AND date = $2::date
	`, businessID, date.String()))
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func confirmedIntervals(ctx context.Context, q querier, businessID string, span availability.Interval) ([]availability.Interval, error) {
	rows, err := q.Query(ctx, `
		SELECT start_at, end_at
		FROM bookings
		WHERE business_id = $1
			AND status = 'confirmed'
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at
	`, businessID, span.Start, span.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []availability.Interval{}
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, availability.Interval{Start: iv.Start.UTC(), End: iv.End.UTC()})
	}
	return out, rows.Err()
}

func (s *Store) ConfirmedIntervals(ctx context.Context, businessID string, span availability.Interval) ([]availability.Interval, error) {
	return confirmedIntervals(ctx, s.pool, businessID, span)
}

const bookingColumns = `id::text, business_id::text, service_id::text, customer_name, customer_email, customer_phone,
	note, start_at, end_at, status, cancelled_at, COALESCE(cancellation_reason, ''), created_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.BusinessID,
		&b.ServiceID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.Note,
		&b.StartAt,
		&b.EndAt,
		&b.Status,
		&b.CancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.StartAt, b.EndAt = b.StartAt.UTC(), b.EndAt.UTC()
	return b, nil
}

func (s *Store) Booking(ctx context.Context, bookingID string) (model.Booking, error) {
	if !validID(bookingID) {
		return model.Booking{}, booking.ErrNotFound
	}
	b, err := scanBooking(s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID))
	return b, notFound(err)
}

func (s *Store) Bookings(ctx context.Context, businessID string, f model.BookingFilter) ([]model.Booking, error) {
	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE business_id = $1
			AND ($2 = '' OR status = $2)
			AND ($3::timestamptz IS NULL OR start_at >= $3)
			AND ($4::timestamptz IS NULL OR start_at < $4)
		ORDER BY start_at
		LIMIT $5
	`, businessID, f.Status, from, to, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CountConfirmed(ctx context.Context, businessID string, span availability.Interval) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE business_id = $1 AND status = 'confirmed' AND start_at >= $2 AND start_at < $3
	`, businessID, span.Start, span.End).Scan(&n)
	return n, err
}

func (s *Store) NextConfirmed(ctx context.Context, businessID string, after time.Time) (*model.Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE business_id = $1 AND status = 'confirmed' AND start_at > $2
		ORDER BY start_at
		LIMIT 1
	`, businessID, after))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) TopServices(ctx context.Context, businessID string, limit int) ([]model.ServiceCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id::text, s.name, count(*)
		FROM bookings b
		JOIN services s ON s.id = b.service_id
		WHERE b.business_id = $1 AND b.status = 'confirmed'
		GROUP BY s.id, s.name
		ORDER BY count(*) DESC, s.name
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ServiceCount{}
	for rows.Next() {
		var c model.ServiceCount
		if err := rows.Scan(&c.ServiceID, &c.ServiceName, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneIdempotencyBefore drops idempotency keys created before cutoff.
func (s *Store) PruneIdempotencyBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM booking_idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Tx{tx: tx, outbox: s.outbox})
	})
}
