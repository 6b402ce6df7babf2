package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CampaignStatusActive = "active"
	CampaignStatusClosed = "closed"
)

type Campaign struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	JournalistAddress string          `json:"journalist_address"`
	VerifierAddress   string          `json:"verifier_address"`
	TotalRaisedXRP    decimal.Decimal `json:"total_raised_xrp"`
	TotalLockedXRP    decimal.Decimal `json:"total_locked_xrp"`
	TotalReleasedXRP  decimal.Decimal `json:"total_released_xrp"`
	EscrowCount       int             `json:"escrow_count"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CheckCounters reports whether total_raised = total_locked + total_released.
// Counters are only mutated inside the same transaction as the row change
// that motivates them, so this must hold at every commit point.
func (c *Campaign) CheckCounters() bool {
	return c.TotalRaisedXRP.Equal(c.TotalLockedXRP.Add(c.TotalReleasedXRP))
}

// EscrowSummaryEntry is the public per-escrow view embedded in a campaign
// summary: amount and state only, no donor identity.
type EscrowSummaryEntry struct {
	ID        string          `json:"id"`
	AmountXRP decimal.Decimal `json:"amount_xrp"`
	Status    string          `json:"status"`
}

type CampaignSummary struct {
	Campaign
	Escrows []EscrowSummaryEntry `json:"escrows"`
}
