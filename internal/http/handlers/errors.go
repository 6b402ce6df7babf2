package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/whistlebox/backend/internal/http/dto"
	"github.com/whistlebox/backend/internal/services"
)

// respondError maps the service error taxonomy onto HTTP statuses:
// validation 400, missing entities 404, idempotency and engine conflicts
// 409, authorization 401/403, unknown ledger outcome 502.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrMissingPaymentRef),
		errors.Is(err, services.ErrMissingRequestID),
		errors.Is(err, services.ErrInvalidDestination),
		errors.Is(err, services.ErrMissingTitle),
		errors.Is(err, services.ErrInvalidJournalist),
		errors.Is(err, services.ErrInvalidVerifierAddress):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})

	case errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrEscrowNotFound),
		errors.Is(err, services.ErrVerifierNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})

	case errors.Is(err, services.ErrBadLogin):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})

	case errors.Is(err, services.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})

	case errors.Is(err, services.ErrCampaignExists),
		errors.Is(err, services.ErrReleaseInProgress),
		errors.Is(err, services.ErrReleaseRequestMismatch),
		errors.Is(err, services.ErrEscrowUnreleasable):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	var gate *services.NotYetUnlockableError
	if errors.As(err, &gate) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error:        err.Error(),
			EngineResult: gate.EngineResult().String(),
		})
	}

	var rejection *services.LedgerRejectionError
	if errors.As(err, &rejection) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error:        err.Error(),
			EngineResult: rejection.Result.String(),
		})
	}

	var unavailable *services.LedgerUnavailableError
	if errors.As(err, &unavailable) {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
}
