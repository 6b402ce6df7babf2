package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/config"
	"github.com/whistlebox/backend/internal/http/handlers"
	"github.com/whistlebox/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	campaignHandler *handlers.CampaignHandler,
	donationHandler *handlers.DonationHandler,
	escrowHandler *handlers.EscrowHandler,
	verifierHandler *handlers.VerifierHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/verifier", authHandler.VerifierLogin)

	// Rate-limited endpoints; skipped entirely without redis (memory-store
	// local runs).
	if rdb != nil {
		api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))
	}

	// Donor-facing endpoints (public). The campaign detail is the summary
	// view: counters plus per-escrow amount and state, no donor identities.
	api.Get("/campaigns", campaignHandler.ListCampaigns)
	api.Get("/campaigns/:id", campaignHandler.GetSummary)
	api.Post("/donations", donationHandler.Donate)
	api.Get("/escrows", escrowHandler.ListEscrows)
	api.Get("/escrows/:id", escrowHandler.GetEscrow)
	api.Get("/escrows/:id/events", escrowHandler.GetEscrowEvents)
	api.Get("/verifiers/:campaignId", verifierHandler.ListVerifiers)
	api.Get("/verifiers/:campaignId/check", verifierHandler.CheckVerifier)

	// Verifier endpoints (JWT)
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))
	protected.Post("/campaigns", campaignHandler.CreateCampaign)
	protected.Post("/escrows/:id/release", escrowHandler.ReleaseEscrow)
	protected.Post("/campaigns/:id/escrows/:escrowId/approve", escrowHandler.ApproveEscrow)
	protected.Post("/verifiers/:campaignId", verifierHandler.AddVerifier)
	protected.Delete("/verifiers/:campaignId/:address", verifierHandler.RemoveVerifier)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
