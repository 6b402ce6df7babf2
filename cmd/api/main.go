package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/config"
	"github.com/whistlebox/backend/internal/db"
	"github.com/whistlebox/backend/internal/events"
	apphttp "github.com/whistlebox/backend/internal/http"
	"github.com/whistlebox/backend/internal/http/handlers"
	"github.com/whistlebox/backend/internal/services"
	"github.com/whistlebox/backend/internal/storage"
	"github.com/whistlebox/backend/internal/storage/memory"
	"github.com/whistlebox/backend/internal/storage/postgres"
	"github.com/whistlebox/backend/internal/xrpl"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: postgres for deployments, memory for local runs. Redis rides
	// along with postgres; without it events are dropped and rate limiting
	// is off.
	var store storage.Store
	var rdb *redis.Client
	var publisher events.Publisher = events.NopPublisher{}
	var subscriber events.Subscriber

	if cfg.StoreDriver == config.StoreDriverPostgres {
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		store = postgres.New(pool)

		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
	} else {
		log.Info("using in-memory store")
		store = memory.New()
	}

	// Ledger gateway
	gateway := xrpl.NewClient(cfg.XRPLWebsocketURL, log)

	// Services
	escrowService := services.NewEscrowService(store, gateway, publisher, cfg, log)
	campaignService := services.NewCampaignService(store, cfg, log)
	verifierService := services.NewVerifierService(store, cfg, log)

	if err := campaignService.Seed(ctx); err != nil {
		log.Fatal("failed to seed campaigns", zap.Error(err))
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(verifierService, log)
	campaignHandler := handlers.NewCampaignHandler(campaignService, log)
	donationHandler := handlers.NewDonationHandler(escrowService, log)
	escrowHandler := handlers.NewEscrowHandler(escrowService, log)
	verifierHandler := handlers.NewVerifierHandler(verifierService, log)
	wsHub := handlers.NewWSHub(subscriber, log)

	if subscriber != nil {
		wsHub.Start(ctx)
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, campaignHandler, donationHandler, escrowHandler, verifierHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
