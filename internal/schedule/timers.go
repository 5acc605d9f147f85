package schedule

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/scenting/mums/internal/orders"
)

// Timers fires deadlines from in-process timers. Scheduled work does
// not survive a restart; meant for tests and single-binary setups where
// the redis deadline set is overkill.
type Timers struct {
	Handler func(ctx context.Context, orderID string) error
	Logger  *log.Entry
}

func (t *Timers) Schedule(_ context.Context, orderID string, delay time.Duration) error {
	time.AfterFunc(delay, func() {
		if err := t.Handler(context.Background(), orderID); err != nil {
			logger := t.Logger
			if logger == nil {
				logger = log.WithField("component", "deadline-timers")
			}
			logger.WithError(err).WithField("order_id", orderID).Warn("deadline handler failed")
		}
	})
	return nil
}

var _ orders.Scheduler = (*Timers)(nil)
