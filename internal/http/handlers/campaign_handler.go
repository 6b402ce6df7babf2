package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/http/dto"
	"github.com/whistlebox/backend/internal/models"
	"github.com/whistlebox/backend/internal/services"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	log             *zap.Logger
}

func NewCampaignHandler(campaignService *services.CampaignService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	campaign, err := h.campaignService.Create(c.Context(), &models.Campaign{
		ID:                req.ID,
		Title:             req.Title,
		Description:       req.Description,
		JournalistAddress: req.JournalistAddress,
		VerifierAddress:   req.VerifierAddress,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	campaigns, err := h.campaignService.List(c.Context())
	if err != nil {
		h.log.Error("list campaigns failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

// GetSummary is the donor-facing campaign view: counters plus per-escrow
// amount and state, no donor identities.
func (h *CampaignHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.campaignService.Summary(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: summary})
}
