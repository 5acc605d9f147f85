package schedule

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// Queue is what the worker drains: a schedulable set of order ids with
// claimable due entries.
type Queue interface {
	Schedule(ctx context.Context, orderID string, delay time.Duration) error
	Claim(ctx context.Context, now time.Time) ([]string, error)
}

const retryDelay = 5 * time.Second

// Worker polls the deadline queue and invokes the handler for each
// claimed order. A failed handler call is rescheduled rather than
// dropped; the handler tolerates duplicate firings.
type Worker struct {
	Queue   Queue
	Handler func(ctx context.Context, orderID string) error
	Every   time.Duration
	Logger  *log.Entry

	scheduler gocron.Scheduler
}

func (w *Worker) logger() *log.Entry {
	if w.Logger == nil {
		w.Logger = log.WithField("component", "deadline-worker")
	}
	return w.Logger
}

func (w *Worker) Start(ctx context.Context) error {
	every := w.Every
	if every <= 0 {
		every = time.Second
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(w.tick, ctx),
		gocron.WithName("order-deadlines"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	w.scheduler = scheduler
	scheduler.Start()
	w.logger().WithField("every", every).Info("deadline worker started")
	return nil
}

func (w *Worker) Stop() error {
	if w.scheduler == nil {
		return nil
	}
	return w.scheduler.Shutdown()
}

func (w *Worker) tick(ctx context.Context) {
	ids, err := w.Queue.Claim(ctx, time.Now())
	if err != nil {
		w.logger().WithError(err).Warn("claim due deadlines failed")
		return
	}
	for _, orderID := range ids {
		if err := w.Handler(ctx, orderID); err != nil {
			w.logger().WithError(err).WithField("order_id", orderID).
				Warn("deadline handler failed, rescheduling")
			if rerr := w.Queue.Schedule(ctx, orderID, retryDelay); rerr != nil {
				w.logger().WithError(rerr).WithField("order_id", orderID).
					Error("reschedule failed, deadline lost")
			}
		}
	}
}
