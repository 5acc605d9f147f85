package memory

import (
	"context"
	"sync"
)

// Counter is an in-process atomic counter store for tests and
// single-binary runs.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

func (c *Counter) Get(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key], nil
}

func (c *Counter) IncrBy(_ context.Context, key string, n int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key] += n
	return c.counts[key], nil
}

func (c *Counter) DecrBy(_ context.Context, key string, n int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key] -= n
	return c.counts[key], nil
}
