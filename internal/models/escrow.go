package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Escrow statuses
const (
	EscrowStatusLocked   = "locked"
	EscrowStatusReleased = "released"
	EscrowStatusFailed   = "failed"
)

// Valid state transitions: from -> []to. A retryable release failure leaves
// the escrow locked, so locked -> locked is not a transition.
var ValidEscrowTransitions = map[string][]string{
	EscrowStatusLocked:   {EscrowStatusReleased, EscrowStatusFailed},
	EscrowStatusReleased: {},
	EscrowStatusFailed:   {},
}

func IsValidEscrowTransition(from, to string) bool {
	allowed, ok := ValidEscrowTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type Escrow struct {
	ID                 string          `json:"id"`
	CampaignID         string          `json:"campaign_id"`
	DonationID         string          `json:"donation_id"`
	AmountXRP          decimal.Decimal `json:"amount_xrp"`
	CreateTxHash       string          `json:"create_tx_hash"`
	FinishTxHash       *string         `json:"finish_tx_hash,omitempty"`
	OwnerAddress       string          `json:"owner_address"`
	DestinationAddress string          `json:"destination_address"`
	// FinishAfter is the earliest instant the escrow may be released.
	FinishAfter time.Time `json:"finish_after"`
	// OfferSequence is the ledger-assigned ordinal of the EscrowCreate
	// transaction, required to reference the escrow on finish.
	OfferSequence      *uint32   `json:"offer_sequence,omitempty"`
	CreateEngineResult string    `json:"create_engine_result"`
	CreateLedgerIndex  *int64    `json:"create_ledger_index,omitempty"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// Releasable reports whether the escrow carries the fields an EscrowFinish
// submission needs. A locked escrow without them is unrecoverable.
func (e *Escrow) Releasable() bool {
	return e.OwnerAddress != "" && e.OfferSequence != nil
}
