package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/whistlebox/backend/internal/xrpl"
)

// Validation errors: rejected before any ledger call, never retried
// automatically.
var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrEscrowNotFound    = errors.New("escrow not found")
	ErrInvalidAmount     = errors.New("donation amount must be greater than zero")
	ErrMissingPaymentRef = errors.New("payment reference is required")
	ErrMissingRequestID  = errors.New("request id is required")
	ErrInvalidDestination = errors.New("invalid destination wallet address: set a valid campaign journalist address or JOURNALIST_WALLET_ADDRESS")
)

var (
	// ErrUnauthorized: the actor is neither on the campaign's verifier
	// whitelist nor the campaign's configured verifier.
	ErrUnauthorized = errors.New("actor is not an authorized verifier for this campaign")

	// ErrReleaseInProgress: another attempt holds this request id; the
	// caller should poll and retry later. No ledger submission was made.
	ErrReleaseInProgress = errors.New("a release with this request id is already in progress")

	// ErrReleaseRequestMismatch: the request id was already used for a
	// different escrow.
	ErrReleaseRequestMismatch = errors.New("request id already used for another escrow")

	// ErrEscrowUnreleasable: the escrow lacks the owner address or offer
	// sequence an EscrowFinish needs, or sits in a terminal failed state.
	// Fatal for this escrow; retrying cannot help.
	ErrEscrowUnreleasable = errors.New("escrow is missing the fields required for release")
)

// NotYetUnlockableError is returned when a release is attempted before the
// escrow's unlock time. It is detected locally, before any ledger call, and
// maps to the ledger's own permission-denied outcome.
type NotYetUnlockableError struct {
	FinishAfter time.Time
}

func (e *NotYetUnlockableError) Error() string {
	return fmt.Sprintf("escrow is not releasable until %s (engine result %s)",
		e.FinishAfter.Format(time.RFC3339), xrpl.ResultNoPermission)
}

func (e *NotYetUnlockableError) EngineResult() xrpl.EngineResult {
	return xrpl.ResultNoPermission
}

// LedgerRejectionError: the submission reached the ledger and the engine
// declined it. Retryability depends on the outcome code.
type LedgerRejectionError struct {
	Op     string // EscrowCreate / EscrowFinish
	Result xrpl.EngineResult
}

func (e *LedgerRejectionError) Error() string {
	return fmt.Sprintf("%s failed with result %s", e.Op, e.Result)
}

func (e *LedgerRejectionError) Retryable() bool {
	return e.Result.Retryable()
}

// LedgerUnavailableError: transport failure or timeout; the outcome of the
// underlying operation is unknown and must not be treated as either success
// or failure.
type LedgerUnavailableError struct {
	Op  string
	Err error
}

func (e *LedgerUnavailableError) Error() string {
	return fmt.Sprintf("ledger unavailable during %s, outcome unknown: %v", e.Op, e.Err)
}

func (e *LedgerUnavailableError) Unwrap() error {
	return e.Err
}
