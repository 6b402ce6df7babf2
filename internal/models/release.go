package models

import "time"

// ReleaseRequest statuses
const (
	ReleaseStatusInProgress = "in_progress"
	ReleaseStatusCompleted  = "completed"
)

// ReleaseRequest is the idempotency record for one release attempt, keyed by
// the caller-supplied request id. It is created before the ledger finish
// submission, deleted if the attempt fails before confirmation, and marked
// completed together with the escrow update.
type ReleaseRequest struct {
	RequestID    string    `json:"request_id"`
	EscrowID     string    `json:"escrow_id"`
	Status       string    `json:"status"`
	FinishTxHash *string   `json:"finish_tx_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
