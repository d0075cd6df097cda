// Package inbox remembers which events were already handled so redelivered Kafka messages
// are acknowledged without sending a second notification.
package inbox

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Inbox claims event ids in Redis with SET NX; a claim expires after ttl.
type Inbox struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func New(rdb *redis.Client, ttl time.Duration, prefix string) *Inbox {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	if prefix == "" {
		prefix = "bookease:inbox:"
	}
	return &Inbox{rdb: rdb, ttl: ttl, prefix: prefix}
}

// Claim reports whether this call is the first to see eventID.
func (i *Inbox) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	return i.rdb.SetNX(ctx, i.prefix+eventID, eventType, i.ttl).Result()
}

// Release forgets a claim so the event can be handled again.
func (i *Inbox) Release(ctx context.Context, eventID string) error {
	return i.rdb.Del(ctx, i.prefix+eventID).Err()
}

func (i *Inbox) Ping(ctx context.Context) error {
	return i.rdb.Ping(ctx).Err()
}
