package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/scenting/mums/internal/config"
	"github.com/scenting/mums/internal/httpx"
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
	logger := log.WithField("component", "api")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.WithError(err).Fatal("db connect")
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		logger.WithError(err).Fatal("schema bootstrap")
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	manager := &orders.Manager{
		Store:     &postgres.Store{DB: db},
		Holds:     &stock.Reservations{Counter: &redisx.Counter{RDB: rdb}},
		Scheduler: schedule.NewDeadlines(rdb),
		Publisher: prod,
		Timeout:   cfg.OrderTimeout,
		Service:   cfg.ServiceName,
		Logger:    log.WithField("component", "orders"),
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Manager: manager}).Register(router)
	(&httpx.ProductsHandler{Store: manager.Store, Holds: manager.Holds}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	prod.Close() // flush remaining events
	cancel()
	prod.WaitClosed()
}
