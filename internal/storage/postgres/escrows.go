package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/whistlebox/backend/internal/models"
	"github.com/whistlebox/backend/internal/storage"
)

const escrowColumns = `id, campaign_id, donation_id, amount_xrp,
	       create_tx_hash, finish_tx_hash, owner_address, destination_address,
	       finish_after, offer_sequence, create_engine_result, create_ledger_index,
	       status, created_at`

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(&e.ID, &e.CampaignID, &e.DonationID, &e.AmountXRP,
		&e.CreateTxHash, &e.FinishTxHash, &e.OwnerAddress, &e.DestinationAddress,
		&e.FinishAfter, &e.OfferSequence, &e.CreateEngineResult, &e.CreateLedgerIndex,
		&e.Status, &e.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (s *Store) GetEscrow(ctx context.Context, id string) (*models.Escrow, error) {
	return scanEscrow(s.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+`
		FROM escrows WHERE id = $1
	`, id))
}

func (s *Store) GetCampaignEscrow(ctx context.Context, campaignID, escrowID string) (*models.Escrow, error) {
	return scanEscrow(s.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+`
		FROM escrows WHERE id = $1 AND campaign_id = $2
	`, escrowID, campaignID))
}

func (s *Store) ListEscrows(ctx context.Context) ([]models.Escrow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+escrowColumns+`
		FROM escrows ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escrows []models.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

// MarkEscrowReleased commits a confirmed EscrowFinish as one transaction:
// escrow flip with the finish hash, release-request completion, counter move
// from locked to released. The status guard makes a lost race visible as
// ErrConflict instead of a double count.
func (s *Store) MarkEscrowReleased(ctx context.Context, escrowID, requestID, finishTxHash string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var campaignID string
	var amount decimal.Decimal
	err = tx.QueryRow(ctx, `
		UPDATE escrows SET status = $1, finish_tx_hash = $2
		WHERE id = $3 AND status = $4
		RETURNING campaign_id, amount_xrp
	`, models.EscrowStatusReleased, finishTxHash, escrowID, models.EscrowStatusLocked,
	).Scan(&campaignID, &amount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return storage.ErrConflict
		}
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE release_requests SET status = $1, finish_tx_hash = $2, updated_at = now()
		WHERE request_id = $3
	`, models.ReleaseStatusCompleted, finishTxHash, requestID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE campaigns
		SET total_locked_xrp = total_locked_xrp - $1,
		    total_released_xrp = total_released_xrp + $1,
		    updated_at = now()
		WHERE id = $2
	`, amount, campaignID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
