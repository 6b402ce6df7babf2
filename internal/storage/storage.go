// Package storage defines the persistence contract shared by the durable
// Postgres store and the in-memory store. The escrow lifecycle service is
// written against this interface only; the implementation is selected once
// at process start.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/whistlebox/backend/internal/models"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a guarded update finds the row in a state
	// that no longer permits the change (e.g. releasing a non-locked escrow).
	ErrConflict = errors.New("storage: conflict")
)

// Store is the sole writer of persisted state. Both idempotency keys
// (payment_ref, request_id) are enforced here with uniqueness constraints,
// not by application-level check-then-act, so concurrent callers stay
// correct. Multi-row mutations are atomic: commit or full rollback, no
// partial state observable by concurrent readers.
type Store interface {
	// Campaigns
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context) ([]models.Campaign, error)
	GetCampaignSummary(ctx context.Context, id string) (*models.CampaignSummary, error)

	// Donations. InsertPendingDonation reserves the payment ref: it inserts
	// the donation with status "received" and no escrow, assigns the id, and
	// reports false without error when the ref is already taken
	// (first-writer-wins). FinalizeDonation atomically inserts the escrow
	// row (assigning its id), links it to the donation, flips the donation
	// to "escrowed", and moves the campaign counters
	// (total_raised, total_locked, escrow_count).
	InsertPendingDonation(ctx context.Context, d *models.Donation) (bool, error)
	GetDonationByPaymentRef(ctx context.Context, ref string) (*models.Donation, error)
	DeletePendingDonation(ctx context.Context, donationID string) error
	FinalizeDonation(ctx context.Context, donationID string, e *models.Escrow) error

	// Escrows. MarkEscrowReleased atomically flips a locked escrow to
	// released with the finish tx hash, completes the release request, and
	// moves the amount from total_locked to total_released.
	GetEscrow(ctx context.Context, id string) (*models.Escrow, error)
	GetCampaignEscrow(ctx context.Context, campaignID, escrowID string) (*models.Escrow, error)
	ListEscrows(ctx context.Context) ([]models.Escrow, error)
	MarkEscrowReleased(ctx context.Context, escrowID, requestID, finishTxHash string) error

	// Release requests. BeginReleaseRequest inserts an in_progress record
	// for requestID, or takes over an existing in_progress record whose
	// lease has expired. It returns (true, nil) when the caller owns the
	// attempt, or (false, existing) when another attempt holds the id.
	// AbortReleaseRequest clears an in_progress record so the id becomes
	// usable again after a failed submission.
	BeginReleaseRequest(ctx context.Context, requestID, escrowID string, lease time.Duration) (bool, *models.ReleaseRequest, error)
	AbortReleaseRequest(ctx context.Context, requestID string) error
	GetReleaseRequest(ctx context.Context, requestID string) (*models.ReleaseRequest, error)
	ExpireStaleReleaseRequests(ctx context.Context, olderThan time.Duration) (int64, error)

	// Verifier whitelist: pure set semantics per campaign.
	AddVerifier(ctx context.Context, campaignID, address string) error
	RemoveVerifier(ctx context.Context, campaignID, address string) (bool, error)
	IsVerifierWhitelisted(ctx context.Context, campaignID, address string) (bool, error)
	ListVerifiers(ctx context.Context, campaignID string) ([]string, error)

	// Audit
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
	ListAuditByEntity(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditEntry, error)
}
