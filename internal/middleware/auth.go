package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/auth"
	"github.com/whistlebox/backend/internal/config"
)

const CtxVerifierAddress = "verifier_address"

// AuthMiddleware admits requests carrying a valid verifier JWT and exposes
// the verifier's wallet address to handlers. Which campaigns that address
// may act on is decided per call, not here.
func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxVerifierAddress, claims.VerifierAddress)

		return c.Next()
	}
}

func GetVerifierAddress(c *fiber.Ctx) string {
	addr, _ := c.Locals(CtxVerifierAddress).(string)
	return addr
}
