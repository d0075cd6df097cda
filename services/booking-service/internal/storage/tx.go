package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/outbox"
)

// Tx implements booking.Tx on one pgx transaction.
type Tx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

var _ booking.Tx = (*Tx)(nil)

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (t *Tx) LockIdempotencyKey(ctx context.Context, businessID, key string) (booking.IdempotencyRecord, bool, error) {
	rec, err := t.selectIdempotencyForUpdate(ctx, businessID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return booking.IdempotencyRecord{}, false, err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (business_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (business_id, idempotency_key) DO NOTHING
	`, businessID, key)
	if err != nil {
		return booking.IdempotencyRecord{}, false, err
	}

	// A concurrent request may have inserted first; the lock below waits for it.
	rec, err = t.selectIdempotencyForUpdate(ctx, businessID, key)
	if err != nil {
		return booking.IdempotencyRecord{}, false, err
	}
	return rec, rec.StatusCode != 0, nil
}

func (t *Tx) selectIdempotencyForUpdate(ctx context.Context, businessID, key string) (booking.IdempotencyRecord, error) {
	var (
		rec          booking.IdempotencyRecord
		responseText string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(booking_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE business_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, businessID, key).Scan(&rec.BookingID, &rec.StatusCode, &responseText)
	if err != nil {
		return booking.IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.Response = []byte(responseText)
	}
	return rec, nil
}

func (t *Tx) FinalizeIdempotency(ctx context.Context, businessID, key string, rec booking.IdempotencyRecord) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3,
			status_code = $4,
			response_payload = $5::jsonb,
			updated_at = now()
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key, rec.BookingID, rec.StatusCode, string(rec.Response))
	return err
}

// LockBusiness takes a transaction-scoped advisory lock keyed on the business id.
func (t *Tx) LockBusiness(ctx context.Context, businessID string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, businessID)
	return err
}

func (t *Tx) ConfirmedIntervals(ctx context.Context, businessID string, span availability.Interval) ([]availability.Interval, error) {
	return confirmedIntervals(ctx, t.tx, businessID, span)
}

func (t *Tx) PutWeeklyRule(ctx context.Context, businessID string, rule availability.WeeklyRule) error {
	return putWeeklyRule(ctx, t.tx, businessID, rule)
}

func (t *Tx) InsertBooking(ctx context.Context, b *model.Booking) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO bookings
			(business_id, service_id, customer_name, customer_email, customer_phone, note, start_at, end_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text, created_at
	`, b.BusinessID, b.ServiceID, b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.Note,
		b.StartAt, b.EndAt, b.Status).Scan(&b.ID, &b.CreatedAt)
	if IsConflict(err) {
		return booking.ErrOverlap
	}
	return err
}

func (t *Tx) BookingForUpdate(ctx context.Context, businessID, bookingID string) (model.Booking, error) {
	if !validID(bookingID) {
		return model.Booking{}, booking.ErrNotFound
	}
	b, err := scanBooking(t.tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, bookingID, businessID))
	return b, notFound(err)
}

func (t *Tx) CancelBooking(ctx context.Context, businessID, bookingID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := t.tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = NULLIF($3, '')
		WHERE id = $1 AND business_id = $2 AND status = 'confirmed'
		RETURNING cancelled_at
	`, bookingID, businessID, reason).Scan(&cancelledAt)
	return cancelledAt, notFound(err)
}

func (t *Tx) Enqueue(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}
