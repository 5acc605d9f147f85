// Restock resets every product's committed stock: unitary products to
// the given quantity, weighed products to quantity*100 grams.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/scenting/mums/internal/config"
	"github.com/scenting/mums/internal/postgres"
)

func main() {
	_ = godotenv.Load()

	quantity := flag.Int("quantity", 10, "quantity to stock per product")
	flag.Parse()

	cfg := config.Load()
	logger := log.WithField("component", "restock")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	store := &postgres.Store{DB: db}
	if err := store.RestockAll(ctx, *quantity); err != nil {
		logger.WithError(err).Fatal("restock")
	}
	logger.WithField("quantity", *quantity).Info("products restocked")
}
