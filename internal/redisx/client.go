package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Counter adapts a redis client to the stock.Counter contract. INCRBY
// initializes absent keys, so first-time reservations need no setup.
type Counter struct {
	RDB *redis.Client
}

func (c *Counter) Get(ctx context.Context, key string) (int, error) {
	n, err := c.RDB.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (c *Counter) IncrBy(ctx context.Context, key string, n int) (int, error) {
	v, err := c.RDB.IncrBy(ctx, key, int64(n)).Result()
	return int(v), err
}

func (c *Counter) DecrBy(ctx context.Context, key string, n int) (int, error) {
	v, err := c.RDB.DecrBy(ctx, key, int64(n)).Result()
	return int(v), err
}
