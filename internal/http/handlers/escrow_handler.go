package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/http/dto"
	"github.com/whistlebox/backend/internal/middleware"
	"github.com/whistlebox/backend/internal/services"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, log: log}
}

func (h *EscrowHandler) ListEscrows(c *fiber.Ctx) error {
	escrows, err := h.escrowService.ListEscrows(c.Context())
	if err != nil {
		h.log.Error("list escrows failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: escrows})
}

func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	escrow, err := h.escrowService.GetEscrow(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: escrow})
}

// ReleaseEscrow finishes the escrow on the ledger, paying the journalist.
// request_id is the caller's idempotency key; replaying a completed id
// returns the stored result without a new ledger submission.
func (h *EscrowHandler) ReleaseEscrow(c *fiber.Ctx) error {
	var req dto.ReleaseEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	actor := middleware.GetVerifierAddress(c)
	res, err := h.escrowService.ReleaseEscrow(c.Context(), c.Params("id"), req.RequestID, actor)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ReleaseResponse{
		Escrow:          res.Escrow,
		FinishTxHash:    res.FinishTxHash,
		AlreadyReleased: res.AlreadyReleased,
	}})
}

// ApproveEscrow is the campaign-scoped release route.
func (h *EscrowHandler) ApproveEscrow(c *fiber.Ctx) error {
	var req dto.ReleaseEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	actor := middleware.GetVerifierAddress(c)
	res, err := h.escrowService.ApproveEscrow(c.Context(), c.Params("id"), c.Params("escrowId"), req.RequestID, actor)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ReleaseResponse{
		Escrow:          res.Escrow,
		FinishTxHash:    res.FinishTxHash,
		AlreadyReleased: res.AlreadyReleased,
	}})
}

func (h *EscrowHandler) GetEscrowEvents(c *fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := h.escrowService.EscrowAudit(c.Context(), c.Params("id"), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}
