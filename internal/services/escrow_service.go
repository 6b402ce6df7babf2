package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/whistlebox/backend/internal/config"
	"github.com/whistlebox/backend/internal/events"
	"github.com/whistlebox/backend/internal/models"
	"github.com/whistlebox/backend/internal/storage"
	"github.com/whistlebox/backend/internal/xrpl"
)

// EscrowService runs the donation-to-escrow lifecycle: one on-ledger escrow
// per accepted donation, held until a verifier releases it to the campaign's
// journalist. Both entry points are idempotent on their caller-supplied keys
// (payment ref for creation, request id for release).
type EscrowService struct {
	store     storage.Store
	gateway   LedgerGateway
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewEscrowService(store storage.Store, gateway LedgerGateway, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *EscrowService {
	return &EscrowService{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// CreateDonationResult is what a donation submission resolves to. Duplicate
// is set when the payment ref had already been accepted; Escrow is nil for a
// duplicate whose first attempt is still in flight.
type CreateDonationResult struct {
	Donation  *models.Donation
	Escrow    *models.Escrow
	Duplicate bool
}

// CreateDonation accepts a donation and locks it into a fresh on-ledger
// escrow. The payment ref is reserved in the store before the ledger
// submission, so concurrent calls with the same ref produce at most one
// EscrowCreate; the reservation is removed on any failure so the ref can be
// retried.
func (s *EscrowService) CreateDonation(ctx context.Context, campaignID string, amount decimal.Decimal, paymentRef string) (*CreateDonationResult, error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return nil, ErrMissingPaymentRef
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	destination, err := s.resolveDestination(campaign)
	if err != nil {
		return nil, err
	}

	donation := &models.Donation{
		CampaignID: campaignID,
		AmountXRP:  amount,
		PaymentRef: paymentRef,
		Status:     models.DonationStatusReceived,
	}
	created, err := s.store.InsertPendingDonation(ctx, donation)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.resolveDuplicate(ctx, paymentRef)
	}

	finishAfter := time.Now().Add(s.cfg.EscrowFinishAfter).Truncate(time.Second)

	subCtx, cancel := context.WithTimeout(ctx, s.cfg.XRPLSubmitTimeout)
	defer cancel()
	res, err := s.gateway.CreateEscrow(subCtx, xrpl.EscrowCreateParams{
		OwnerSeed:    s.cfg.CustodyWalletSeed,
		OwnerAddress: s.cfg.CustodyWalletAddress,
		Destination:  destination,
		AmountXRP:    amount,
		FinishAfter:  finishAfter,
	})
	if err != nil {
		s.releaseReservation(ctx, donation, "EscrowCreate outcome unknown")
		return nil, &LedgerUnavailableError{Op: "EscrowCreate", Err: err}
	}
	if !res.EngineResult.Success() {
		s.releaseReservation(ctx, donation, "EscrowCreate rejected")
		return nil, &LedgerRejectionError{Op: "EscrowCreate", Result: res.EngineResult}
	}

	escrow := &models.Escrow{
		CampaignID:         campaignID,
		DonationID:         donation.ID,
		AmountXRP:          amount,
		CreateTxHash:       res.TxHash,
		OwnerAddress:       s.cfg.CustodyWalletAddress,
		DestinationAddress: destination,
		FinishAfter:        finishAfter,
		OfferSequence:      &res.OfferSequence,
		CreateEngineResult: res.EngineResult.String(),
		CreateLedgerIndex:  &res.LedgerIndex,
		Status:             models.EscrowStatusLocked,
	}
	if err := s.store.FinalizeDonation(ctx, donation.ID, escrow); err != nil {
		// The escrow exists on the ledger but the local commit failed.
		// Surface everything needed to reconcile by hand.
		s.log.Error("escrow created on ledger but local finalize failed",
			zap.String("donation_id", donation.ID),
			zap.String("payment_ref", paymentRef),
			zap.String("create_tx_hash", res.TxHash),
			zap.Error(err),
		)
		return nil, err
	}
	donation.EscrowID = &escrow.ID
	donation.Status = models.DonationStatusEscrowed

	s.audit(ctx, "system", "escrow_created", "escrow", escrow.ID, map[string]any{
		"campaign_id":   campaignID,
		"donation_id":   donation.ID,
		"amount_xrp":    amount.String(),
		"create_tx":     res.TxHash,
		"engine_result": res.EngineResult.String(),
	})
	s.publish(ctx, events.EventDonationCreated, map[string]any{
		"campaign_id": campaignID,
		"donation_id": donation.ID,
		"escrow_id":   escrow.ID,
		"amount_xrp":  amount.String(),
	})

	s.log.Info("donation locked into escrow",
		zap.String("campaign_id", campaignID),
		zap.String("donation_id", donation.ID),
		zap.String("escrow_id", escrow.ID),
		zap.String("amount_xrp", amount.String()),
	)

	return &CreateDonationResult{Donation: donation, Escrow: escrow}, nil
}

// resolveDestination picks the journalist wallet the escrow pays out to: the
// campaign's own address when valid, else the configured fallback.
func (s *EscrowService) resolveDestination(campaign *models.Campaign) (string, error) {
	if xrpl.IsValidClassicAddress(campaign.JournalistAddress) {
		return campaign.JournalistAddress, nil
	}
	if xrpl.IsValidClassicAddress(s.cfg.JournalistWalletAddress) {
		return s.cfg.JournalistWalletAddress, nil
	}
	return "", ErrInvalidDestination
}

// resolveDuplicate answers a repeat submission of a payment ref that is
// already taken: return the stored donation and, if finalized, its escrow.
func (s *EscrowService) resolveDuplicate(ctx context.Context, paymentRef string) (*CreateDonationResult, error) {
	existing, err := s.store.GetDonationByPaymentRef(ctx, paymentRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// The first attempt failed and removed its reservation between our
			// insert and this read. The caller may simply retry.
			return nil, &LedgerUnavailableError{Op: "EscrowCreate", Err: errors.New("concurrent attempt for this payment ref failed, retry")}
		}
		return nil, err
	}

	result := &CreateDonationResult{Donation: existing, Duplicate: true}
	if existing.EscrowID != nil {
		escrow, err := s.store.GetEscrow(ctx, *existing.EscrowID)
		if err != nil {
			return nil, err
		}
		result.Escrow = escrow
	}
	return result, nil
}

// releaseReservation removes the pending donation after a failed ledger
// submission so the payment ref becomes retryable.
func (s *EscrowService) releaseReservation(ctx context.Context, d *models.Donation, reason string) {
	if err := s.store.DeletePendingDonation(ctx, d.ID); err != nil {
		s.log.Error("failed to release donation reservation",
			zap.String("donation_id", d.ID),
			zap.String("payment_ref", d.PaymentRef),
			zap.Error(err),
		)
		return
	}
	s.log.Warn("donation reservation released",
		zap.String("donation_id", d.ID),
		zap.String("payment_ref", d.PaymentRef),
		zap.String("reason", reason),
	)
}

// ReleaseResult is what a release request resolves to. AlreadyReleased is set
// when the escrow had been released before this call (by an earlier request
// or a concurrent one); FinishTxHash then carries the original hash.
type ReleaseResult struct {
	Escrow          *models.Escrow
	FinishTxHash    string
	AlreadyReleased bool
}

// ReleaseEscrow finishes a locked escrow on the ledger and records the
// release. The request id guards against double submission: at most one
// EscrowFinish is in flight per id, a completed id returns the stored result
// without touching the ledger, and a failed attempt clears the id for retry.
func (s *EscrowService) ReleaseEscrow(ctx context.Context, escrowID, requestID, actorAddress string) (*ReleaseResult, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, ErrMissingRequestID
	}

	escrow, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}

	if err := s.authorize(ctx, escrow.CampaignID, escrowID, actorAddress); err != nil {
		return nil, err
	}

	if escrow.Status == models.EscrowStatusReleased {
		return alreadyReleased(escrow), nil
	}
	if escrow.Status != models.EscrowStatusLocked || !escrow.Releasable() {
		return nil, ErrEscrowUnreleasable
	}

	// Local unlock gate. The ledger would answer tecNO_PERMISSION anyway;
	// checking here avoids burning a submission on a known outcome.
	if now := time.Now(); now.Before(escrow.FinishAfter) {
		return nil, &NotYetUnlockableError{FinishAfter: escrow.FinishAfter}
	}

	owned, existing, err := s.store.BeginReleaseRequest(ctx, requestID, escrowID, s.cfg.ReleaseRequestLease)
	if err != nil {
		return nil, err
	}
	if !owned {
		return s.resolveExistingRequest(ctx, existing, escrowID)
	}

	subCtx, cancel := context.WithTimeout(ctx, s.cfg.XRPLSubmitTimeout)
	defer cancel()
	res, err := s.gateway.FinishEscrow(subCtx, xrpl.EscrowFinishParams{
		FinisherSeed:    s.cfg.VerifierWalletSeed,
		FinisherAddress: s.cfg.VerifierWalletAddress,
		OwnerAddress:    escrow.OwnerAddress,
		OfferSequence:   *escrow.OfferSequence,
	})
	if err != nil {
		// Outcome unknown: the finish may still validate. The request record
		// stays in_progress and blocks the id until its lease expires.
		s.log.Error("EscrowFinish outcome unknown, leaving release request in progress",
			zap.String("escrow_id", escrowID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, &LedgerUnavailableError{Op: "EscrowFinish", Err: err}
	}

	if !res.EngineResult.Success() {
		return s.handleFinishRejection(ctx, escrow, requestID, res.EngineResult)
	}

	if err := s.store.MarkEscrowReleased(ctx, escrowID, requestID, res.TxHash); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// A concurrent release with a different request id won the commit.
			s.abortRequest(ctx, requestID)
			return s.reloadReleased(ctx, escrowID)
		}
		s.log.Error("escrow finished on ledger but local commit failed",
			zap.String("escrow_id", escrowID),
			zap.String("request_id", requestID),
			zap.String("finish_tx_hash", res.TxHash),
			zap.Error(err),
		)
		return nil, err
	}

	finishTx := res.TxHash
	escrow.Status = models.EscrowStatusReleased
	escrow.FinishTxHash = &finishTx

	s.audit(ctx, actorAddress, "escrow_released", "escrow", escrowID, map[string]any{
		"campaign_id": escrow.CampaignID,
		"request_id":  requestID,
		"finish_tx":   finishTx,
		"amount_xrp":  escrow.AmountXRP.String(),
	})
	s.publish(ctx, events.EventEscrowReleased, map[string]any{
		"campaign_id":    escrow.CampaignID,
		"escrow_id":      escrowID,
		"finish_tx_hash": finishTx,
		"amount_xrp":     escrow.AmountXRP.String(),
	})

	s.log.Info("escrow released",
		zap.String("escrow_id", escrowID),
		zap.String("campaign_id", escrow.CampaignID),
		zap.String("request_id", requestID),
		zap.String("finish_tx_hash", finishTx),
	)

	return &ReleaseResult{Escrow: escrow, FinishTxHash: finishTx}, nil
}

// ApproveEscrow is the campaign-scoped release entry point: it checks the
// escrow belongs to the campaign, then runs the same release path.
func (s *EscrowService) ApproveEscrow(ctx context.Context, campaignID, escrowID, requestID, actorAddress string) (*ReleaseResult, error) {
	if _, err := s.store.GetCampaignEscrow(ctx, campaignID, escrowID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}
	return s.ReleaseEscrow(ctx, escrowID, requestID, actorAddress)
}

func (s *EscrowService) GetEscrow(ctx context.Context, escrowID string) (*models.Escrow, error) {
	escrow, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEscrowNotFound
		}
		return nil, err
	}
	return escrow, nil
}

func (s *EscrowService) ListEscrows(ctx context.Context) ([]models.Escrow, error) {
	return s.store.ListEscrows(ctx)
}

// EscrowAudit returns the recorded lifecycle events for one escrow, newest
// first.
func (s *EscrowService) EscrowAudit(ctx context.Context, escrowID string, limit int) ([]models.AuditEntry, error) {
	if _, err := s.GetEscrow(ctx, escrowID); err != nil {
		return nil, err
	}
	return s.store.ListAuditByEntity(ctx, "escrow", escrowID, limit)
}

// authorize admits the actor when it is on the campaign's verifier whitelist
// or is the campaign's configured verifier. Denials are audited.
func (s *EscrowService) authorize(ctx context.Context, campaignID, escrowID, actorAddress string) error {
	campaign, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCampaignNotFound
		}
		return err
	}

	if actorAddress != "" {
		if campaign.VerifierAddress == actorAddress {
			return nil
		}
		ok, err := s.store.IsVerifierWhitelisted(ctx, campaignID, actorAddress)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	s.audit(ctx, actorAddress, "release_denied", "escrow", escrowID, map[string]any{
		"campaign_id": campaignID,
	})
	s.log.Warn("release denied",
		zap.String("campaign_id", campaignID),
		zap.String("escrow_id", escrowID),
		zap.String("actor", actorAddress),
	)
	return ErrUnauthorized
}

// resolveExistingRequest answers a request id that another attempt holds:
// a completed record replays its stored result, an in_progress one asks the
// caller to wait.
func (s *EscrowService) resolveExistingRequest(ctx context.Context, existing *models.ReleaseRequest, escrowID string) (*ReleaseResult, error) {
	if existing == nil {
		// Lost the insert race and the winner's record is already gone
		// (failed attempt). The caller may retry immediately.
		return nil, ErrReleaseInProgress
	}
	if existing.EscrowID != escrowID {
		return nil, ErrReleaseRequestMismatch
	}
	if existing.Status == models.ReleaseStatusCompleted {
		return s.reloadReleased(ctx, escrowID)
	}
	return nil, ErrReleaseInProgress
}

// handleFinishRejection maps an EscrowFinish engine rejection. tecNO_TARGET
// means the escrow object is gone from the ledger, which after our own
// locked-state check usually means a concurrent finish won; re-read to tell
// the two apart. All rejections clear the request id.
func (s *EscrowService) handleFinishRejection(ctx context.Context, escrow *models.Escrow, requestID string, result xrpl.EngineResult) (*ReleaseResult, error) {
	s.abortRequest(ctx, requestID)

	if result == xrpl.ResultNoTarget {
		current, err := s.store.GetEscrow(ctx, escrow.ID)
		if err == nil && current.Status == models.EscrowStatusReleased {
			return alreadyReleased(current), nil
		}
	}

	s.log.Warn("EscrowFinish rejected",
		zap.String("escrow_id", escrow.ID),
		zap.String("request_id", requestID),
		zap.String("engine_result", result.String()),
	)
	return nil, &LedgerRejectionError{Op: "EscrowFinish", Result: result}
}

func (s *EscrowService) reloadReleased(ctx context.Context, escrowID string) (*ReleaseResult, error) {
	current, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.EscrowStatusReleased {
		return nil, ErrReleaseInProgress
	}
	return alreadyReleased(current), nil
}

func alreadyReleased(e *models.Escrow) *ReleaseResult {
	r := &ReleaseResult{Escrow: e, AlreadyReleased: true}
	if e.FinishTxHash != nil {
		r.FinishTxHash = *e.FinishTxHash
	}
	return r
}

func (s *EscrowService) abortRequest(ctx context.Context, requestID string) {
	if err := s.store.AbortReleaseRequest(ctx, requestID); err != nil {
		s.log.Error("failed to abort release request", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *EscrowService) audit(ctx context.Context, actor, action, entityType, entityID string, meta map[string]any) {
	err := s.store.AppendAudit(ctx, models.AuditEntry{
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Meta:       meta,
	})
	if err != nil {
		s.log.Error("failed to append audit entry", zap.String("action", action), zap.Error(err))
	}
}

func (s *EscrowService) publish(ctx context.Context, eventType string, payload map[string]any) {
	err := s.publisher.Publish(ctx, events.StreamCampaign, events.Event{Type: eventType, Payload: payload})
	if err != nil {
		s.log.Error("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
