package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/whistlebox/backend/internal/models"
)

const donationColumns = `id, campaign_id, amount_xrp, payment_ref, escrow_id, status, created_at`

// InsertPendingDonation reserves the payment ref with an insert-or-ignore on
// the unique payment_ref column. The id is drawn from a sequence only when
// the insert wins, keeping ids gap-free under the usual path.
func (s *Store) InsertPendingDonation(ctx context.Context, d *models.Donation) (bool, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO donations (id, campaign_id, amount_xrp, payment_ref, escrow_id, status)
		VALUES ('donation-' || lpad(nextval('donation_id_seq')::text, 4, '0'),
		        $1, $2, $3, NULL, $4)
		ON CONFLICT (payment_ref) DO NOTHING
		RETURNING id, created_at
	`, d.CampaignID, d.AmountXRP, d.PaymentRef, models.DonationStatusReceived,
	).Scan(&d.ID, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	d.Status = models.DonationStatusReceived
	return true, nil
}

func (s *Store) GetDonationByPaymentRef(ctx context.Context, ref string) (*models.Donation, error) {
	var d models.Donation
	err := s.pool.QueryRow(ctx, `
		SELECT `+donationColumns+`
		FROM donations WHERE payment_ref = $1
	`, ref).Scan(&d.ID, &d.CampaignID, &d.AmountXRP, &d.PaymentRef, &d.EscrowID, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

// DeletePendingDonation releases the payment-ref reservation after a failed
// ledger submission. Only rows still in "received" are deleted; a donation
// that was finalized concurrently is left alone.
func (s *Store) DeletePendingDonation(ctx context.Context, donationID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM donations WHERE id = $1 AND status = $2
	`, donationID, models.DonationStatusReceived)
	return err
}

// FinalizeDonation applies the post-submission commit as one transaction:
// escrow insert, donation link + status flip, campaign counters. Partial
// application is never observable.
func (s *Store) FinalizeDonation(ctx context.Context, donationID string, e *models.Escrow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO escrows (id, campaign_id, donation_id, amount_xrp,
		                     create_tx_hash, finish_tx_hash, owner_address, destination_address,
		                     finish_after, offer_sequence, create_engine_result, create_ledger_index,
		                     status)
		VALUES ('escrow-' || lpad(nextval('escrow_id_seq')::text, 4, '0'),
		        $1, $2, $3, $4, NULL, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, e.CampaignID, donationID, e.AmountXRP,
		e.CreateTxHash, e.OwnerAddress, e.DestinationAddress,
		e.FinishAfter, e.OfferSequence, e.CreateEngineResult, e.CreateLedgerIndex,
		models.EscrowStatusLocked,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return err
	}
	e.DonationID = donationID
	e.Status = models.EscrowStatusLocked

	ct, err := tx.Exec(ctx, `
		UPDATE donations SET escrow_id = $1, status = $2
		WHERE id = $3 AND status = $4
	`, e.ID, models.DonationStatusEscrowed, donationID, models.DonationStatusReceived)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows)
	}

	_, err = tx.Exec(ctx, `
		UPDATE campaigns
		SET total_raised_xrp = total_raised_xrp + $1,
		    total_locked_xrp = total_locked_xrp + $1,
		    escrow_count = escrow_count + 1,
		    updated_at = now()
		WHERE id = $2
	`, e.AmountXRP, e.CampaignID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
