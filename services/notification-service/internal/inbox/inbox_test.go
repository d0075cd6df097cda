package inbox

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newInbox(t *testing.T, ttl time.Duration) (*Inbox, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, ttl, "test:"), mr
}

func TestClaimOnce(t *testing.T) {
	in, mr := newInbox(t, time.Hour)
	ctx := context.Background()

	first, err := in.Claim(ctx, "evt-1", "booking.confirmed.v1")
	if err != nil || !first {
		t.Fatalf("first claim = %v %v", first, err)
	}
	again, err := in.Claim(ctx, "evt-1", "booking.confirmed.v1")
	if err != nil || again {
		t.Fatalf("second claim = %v %v", again, err)
	}
	if got, _ := mr.Get("test:evt-1"); got != "booking.confirmed.v1" {
		t.Fatalf("stored value = %q", got)
	}
	if ttl := mr.TTL("test:evt-1"); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
}

func TestClaimExpires(t *testing.T) {
	in, mr := newInbox(t, time.Minute)
	ctx := context.Background()

	if ok, _ := in.Claim(ctx, "evt-2", "x"); !ok {
		t.Fatal("expected first claim")
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := in.Claim(ctx, "evt-2", "x"); !ok {
		t.Fatal("expired claim should be claimable again")
	}
}

func TestRelease(t *testing.T) {
	in, _ := newInbox(t, time.Hour)
	ctx := context.Background()

	_, _ = in.Claim(ctx, "evt-3", "x")
	if err := in.Release(ctx, "evt-3"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ok, _ := in.Claim(ctx, "evt-3", "x"); !ok {
		t.Fatal("released claim should be claimable again")
	}
}

func TestClaimRequiresID(t *testing.T) {
	in, _ := newInbox(t, time.Hour)
	if _, err := in.Claim(context.Background(), "", "x"); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestRedisDown(t *testing.T) {
	in, mr := newInbox(t, time.Hour)
	mr.Close()
	if _, err := in.Claim(context.Background(), "evt-4", "x"); err == nil {
		t.Fatal("expected redis error")
	}
}
