package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Donation statuses
const (
	// DonationStatusReceived marks the reservation row inserted before the
	// ledger submission. escrow_id is only ever nil in this state.
	DonationStatusReceived = "received"
	DonationStatusEscrowed = "escrowed"
	DonationStatusFailed   = "failed"
)

type Donation struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaign_id"`
	AmountXRP  decimal.Decimal `json:"amount_xrp"`
	// PaymentRef is the caller-supplied idempotency key, unique across all
	// donations. The store enforces uniqueness, not the service.
	PaymentRef string    `json:"payment_ref"`
	EscrowID   *string   `json:"escrow_id,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
