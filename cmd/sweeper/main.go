// The sweeper clears release requests stuck in in_progress past their lease
// (a crashed or partitioned release attempt), so their request ids become
// usable again. It runs beside the API against the same database.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/config"
	"github.com/whistlebox/backend/internal/db"
	"github.com/whistlebox/backend/internal/storage/postgres"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	store := postgres.New(pool)

	log.Info("sweeper started", zap.Duration("lease", cfg.ReleaseRequestLease))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			n, err := store.ExpireStaleReleaseRequests(ctx, cfg.ReleaseRequestLease)
			if err != nil {
				log.Error("failed to expire stale release requests", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Warn("expired stale release requests", zap.Int64("count", n))
			}
		case <-sigCh:
			log.Info("shutting down sweeper")
			cancel()
			return
		}
	}
}
