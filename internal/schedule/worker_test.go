package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu        sync.Mutex
	due       []string
	scheduled []string
}

func (q *fakeQueue) Schedule(_ context.Context, orderID string, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduled = append(q.scheduled, orderID)
	return nil
}

func (q *fakeQueue) Claim(_ context.Context, _ time.Time) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	due := q.due
	q.due = nil
	return due, nil
}

func TestWorkerTickHandlesClaimed(t *testing.T) {
	q := &fakeQueue{due: []string{"o1", "o2"}}
	var handled []string
	w := &Worker{
		Queue: q,
		Handler: func(_ context.Context, orderID string) error {
			handled = append(handled, orderID)
			return nil
		},
	}

	w.tick(context.Background())
	require.Equal(t, []string{"o1", "o2"}, handled)
	require.Empty(t, q.scheduled)

	// Nothing due: no calls.
	handled = nil
	w.tick(context.Background())
	require.Empty(t, handled)
}

func TestWorkerReschedulesFailedHandler(t *testing.T) {
	q := &fakeQueue{due: []string{"o1"}}
	w := &Worker{
		Queue: q,
		Handler: func(_ context.Context, _ string) error {
			return errors.New("store unavailable")
		},
	}

	w.tick(context.Background())
	require.Equal(t, []string{"o1"}, q.scheduled)
}

func TestWorkerStartStop(t *testing.T) {
	q := &fakeQueue{}
	w := &Worker{
		Queue:   q,
		Handler: func(_ context.Context, _ string) error { return nil },
		Every:   10 * time.Millisecond,
	}

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}

func TestTimersFireHandler(t *testing.T) {
	fired := make(chan string, 1)
	tm := &Timers{Handler: func(_ context.Context, orderID string) error {
		fired <- orderID
		return nil
	}}

	require.NoError(t, tm.Schedule(context.Background(), "o1", time.Millisecond))

	select {
	case got := <-fired:
		require.Equal(t, "o1", got)
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}
}
