// Package schedule delivers order deadline callbacks after a delay.
//
// The production backend keeps due times in a redis sorted set so
// scheduled work survives process restarts; delivery is at-least-once
// and relies on the deadline handler being idempotent.
package schedule

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scenting/mums/internal/orders"
	"github.com/scenting/mums/internal/redisx"
)

// Deadlines is the redis-backed deadline set. Members are order ids,
// scores are due times in unix milliseconds.
type Deadlines struct {
	RDB *redis.Client
	Key string
}

func NewDeadlines(rdb *redis.Client) *Deadlines {
	return &Deadlines{RDB: rdb, Key: redisx.KeyDeadlines}
}

func (d *Deadlines) Schedule(ctx context.Context, orderID string, delay time.Duration) error {
	due := float64(time.Now().Add(delay).UnixMilli())
	return d.RDB.ZAdd(ctx, d.Key, redis.Z{Score: due, Member: orderID}).Err()
}

// Cancel drops a pending deadline, e.g. after the order completed.
// Missing entries are fine; the handler is a no-op for resolved orders.
func (d *Deadlines) Cancel(ctx context.Context, orderID string) error {
	return d.RDB.ZRem(ctx, d.Key, orderID).Err()
}

// Claim returns the due order ids this caller removed from the set.
// ZREM succeeds for exactly one of several competing workers, so each
// entry is claimed once per firing.
func (d *Deadlines) Claim(ctx context.Context, now time.Time) ([]string, error) {
	due, err := d.RDB.ZRangeByScore(ctx, d.Key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	var claimed []string
	for _, orderID := range due {
		n, err := d.RDB.ZRem(ctx, d.Key, orderID).Result()
		if err != nil {
			return claimed, err
		}
		if n == 1 {
			claimed = append(claimed, orderID)
		}
	}
	return claimed, nil
}

var _ orders.Scheduler = (*Deadlines)(nil)
