// The expirer owns the deadline side of the order lifecycle: it drains
// the redis deadline set and releases orders that were never paid, and
// it watches order.completed events to drop deadlines that no longer
// matter.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/scenting/mums/internal/config"
	kafkax "github.com/scenting/mums/internal/kafka"
	"github.com/scenting/mums/internal/orders"
	"github.com/scenting/mums/internal/postgres"
	"github.com/scenting/mums/internal/redisx"
	"github.com/scenting/mums/internal/schedule"
	"github.com/scenting/mums/internal/stock"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.WithField("component", "expirer")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	deadlines := schedule.NewDeadlines(rdb)
	manager := &orders.Manager{
		Store:     &postgres.Store{DB: db},
		Holds:     &stock.Reservations{Counter: &redisx.Counter{RDB: rdb}},
		Scheduler: deadlines,
		Publisher: prod,
		Timeout:   cfg.OrderTimeout,
		Service:   cfg.ServiceName + "-expirer",
		Logger:    log.WithField("component", "orders"),
	}

	worker := &schedule.Worker{
		Queue:   deadlines,
		Handler: manager.OnDeadline,
		Every:   cfg.PollInterval,
	}
	if err := worker.Start(ctx); err != nil {
		logger.WithError(err).Fatal("worker start")
	}

	// Completed orders no longer need their deadline; cancelling early
	// just saves the worker a no-op wakeup.
	group := getenv("EXPIRER_GROUP", "order-expirer")
	workers := mustAtoi(os.Getenv("EXPIRER_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderCompleted, workers)
	go func() {
		logger.WithField("group", group).Info("completion consumer started")
		if err := cons.Start(ctx, func(ctx context.Context, m kafkago.Message) error {
			var env orders.Envelope
			if err := json.Unmarshal(m.Value, &env); err != nil {
				return err
			}
			if env.EventType != orders.EventOrderCompleted {
				return nil
			}
			return deadlines.Cancel(ctx, env.OrderID)
		}); err != nil {
			logger.WithError(err).Error("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	cancel()
	time.Sleep(500 * time.Millisecond)
	_ = worker.Stop()
	prod.Close()
	prod.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
