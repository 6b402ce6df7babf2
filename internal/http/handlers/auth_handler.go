package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/http/dto"
	"github.com/whistlebox/backend/internal/services"
)

type AuthHandler struct {
	verifierService *services.VerifierService
	log             *zap.Logger
}

func NewAuthHandler(verifierService *services.VerifierService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{verifierService: verifierService, log: log}
}

// VerifierLogin exchanges the shared verifier API token plus the verifier's
// wallet address for a JWT.
func (h *AuthHandler) VerifierLogin(c *fiber.Ctx) error {
	var req dto.VerifierLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Token == "" || req.Address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "token and address are required"})
	}

	token, err := h.verifierService.Login(c.Context(), req.Token, req.Address)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.AuthResponse{Token: token, Address: req.Address})
}
