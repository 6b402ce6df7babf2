package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/http/dto"
	"github.com/whistlebox/backend/internal/middleware"
	"github.com/whistlebox/backend/internal/services"
)

type VerifierHandler struct {
	verifierService *services.VerifierService
	log             *zap.Logger
}

func NewVerifierHandler(verifierService *services.VerifierService, log *zap.Logger) *VerifierHandler {
	return &VerifierHandler{verifierService: verifierService, log: log}
}

func (h *VerifierHandler) AddVerifier(c *fiber.Ctx) error {
	var req dto.AddVerifierRequest
	if err := c.BodyParser(&req); err != nil || req.Address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address is required"})
	}

	actor := middleware.GetVerifierAddress(c)
	if err := h.verifierService.Add(c.Context(), c.Params("campaignId"), req.Address, actor); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true})
}

func (h *VerifierHandler) RemoveVerifier(c *fiber.Ctx) error {
	actor := middleware.GetVerifierAddress(c)
	if err := h.verifierService.Remove(c.Context(), c.Params("campaignId"), c.Params("address"), actor); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *VerifierHandler) ListVerifiers(c *fiber.Ctx) error {
	verifiers, err := h.verifierService.List(c.Context(), c.Params("campaignId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.VerifierListResponse{
		CampaignID: c.Params("campaignId"),
		Verifiers:  verifiers,
	}})
}

// CheckVerifier answers whether an address may release escrows for the
// campaign: whitelisted or the campaign's configured verifier.
func (h *VerifierHandler) CheckVerifier(c *fiber.Ctx) error {
	ok, err := h.verifierService.Check(c.Context(), c.Params("campaignId"), c.Query("address"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"campaign_id": c.Params("campaignId"),
		"address":     c.Query("address"),
		"authorized":  ok,
	}})
}
