package dto

import "github.com/whistlebox/backend/internal/models"

type ErrorResponse struct {
	Error string `json:"error"`
	// EngineResult is set when the ledger itself declined the operation.
	EngineResult string `json:"engine_result,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type AuthResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

type DonationResponse struct {
	Donation *models.Donation `json:"donation"`
	Escrow   *models.Escrow   `json:"escrow,omitempty"`
	// Duplicate marks a payment ref that had already been accepted; the
	// original outcome is returned, nothing was submitted again.
	Duplicate bool `json:"duplicate"`
}

type ReleaseResponse struct {
	Escrow          *models.Escrow `json:"escrow"`
	FinishTxHash    string         `json:"finish_tx_hash"`
	AlreadyReleased bool           `json:"already_released"`
}

type VerifierListResponse struct {
	CampaignID string   `json:"campaign_id"`
	Verifiers  []string `json:"verifiers"`
}
