package storage

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
)

func TestPgErrorClassification(t *testing.T) {
	overlap := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01"})
	unique := &pgconn.PgError{Code: "23505"}

	if !IsConflict(overlap) || IsConflict(unique) {
		t.Fatal("IsConflict must match exclusion violations only")
	}
	if !IsUniqueViolation(unique) || IsUniqueViolation(overlap) {
		t.Fatal("IsUniqueViolation must match unique violations only")
	}
	if !errors.Is(notFound(pgx.ErrNoRows), booking.ErrNotFound) {
		t.Fatal("no rows should map to booking.ErrNotFound")
	}
	if notFound(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestRequireRow(t *testing.T) {
	if err := requireRow(pgconn.NewCommandTag("UPDATE 0"), nil); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := requireRow(pgconn.NewCommandTag("UPDATE 1"), nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestBreaksRoundTrip(t *testing.T) {
	raw, err := encodeBreaks(nil)
	if err != nil || raw != "[]" {
		t.Fatalf("nil breaks should encode as [], got %q %v", raw, err)
	}

	in := []availability.Break{{Start: availability.MustClock("12:00"), End: availability.MustClock("13:00")}}
	raw, err = encodeBreaks(in)
	if err != nil {
		t.Fatalf("encodeBreaks: %v", err)
	}
	if raw != `[{"start":"12:00","end":"13:00"}]` {
		t.Fatalf("unexpected encoding %s", raw)
	}
	out, err := decodeBreaks(raw)
	if err != nil || !reflect.DeepEqual(out, in) {
		t.Fatalf("decodeBreaks = %v %v", out, err)
	}
	if _, err := decodeBreaks(`[{"start":"25:00","end":"13:00"}]`); err == nil {
		t.Fatal("expected an error for an invalid clock")
	}
}

func TestValidID(t *testing.T) {
	if !validID("3f1c1f5e-8a5e-4d0b-9a55-0c6b5b1c2d3e") || validID("bkg-1") || validID("") {
		t.Fatal("validID must accept only UUIDs")
	}
}
