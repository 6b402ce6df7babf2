package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/http/dto"
	"github.com/whistlebox/backend/internal/services"
)

type DonationHandler struct {
	escrowService *services.EscrowService
	log           *zap.Logger
}

func NewDonationHandler(escrowService *services.EscrowService, log *zap.Logger) *DonationHandler {
	return &DonationHandler{escrowService: escrowService, log: log}
}

// Donate accepts a donation for a campaign and locks it into an on-ledger
// escrow. payment_ref is the caller's idempotency key: resubmitting the same
// ref returns the original outcome with duplicate=true.
func (h *DonationHandler) Donate(c *fiber.Ctx) error {
	var req dto.DonateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if req.CampaignID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "campaign_id is required"})
	}
	amount, err := decimal.NewFromString(req.AmountXRP)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "amount_xrp must be a decimal string"})
	}

	res, err := h.escrowService.CreateDonation(c.Context(), req.CampaignID, amount, req.PaymentRef)
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusCreated
	if res.Duplicate {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(dto.SuccessResponse{OK: true, Data: dto.DonationResponse{
		Donation:  res.Donation,
		Escrow:    res.Escrow,
		Duplicate: res.Duplicate,
	}})
}
