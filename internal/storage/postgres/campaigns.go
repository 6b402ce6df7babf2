package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/whistlebox/backend/internal/models"
	"github.com/whistlebox/backend/internal/storage"
)

const campaignColumns = `id, title, description, journalist_address, verifier_address,
	       total_raised_xrp, total_locked_xrp, total_released_xrp,
	       escrow_count, status, created_at, updated_at`

func (s *Store) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO campaigns (id, title, description, journalist_address, verifier_address,
		                       total_raised_xrp, total_locked_xrp, total_released_xrp,
		                       escrow_count, status)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 0, 0, $6)
		RETURNING created_at, updated_at
	`, c.ID, c.Title, c.Description, c.JournalistAddress, c.VerifierAddress, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return storage.ErrConflict
	}
	return err
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	var c models.Campaign
	err := s.pool.QueryRow(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.Title, &c.Description, &c.JournalistAddress, &c.VerifierAddress,
		&c.TotalRaisedXRP, &c.TotalLockedXRP, &c.TotalReleasedXRP,
		&c.EscrowCount, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.JournalistAddress, &c.VerifierAddress,
			&c.TotalRaisedXRP, &c.TotalLockedXRP, &c.TotalReleasedXRP,
			&c.EscrowCount, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (s *Store) GetCampaignSummary(ctx context.Context, id string) (*models.CampaignSummary, error) {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, amount_xrp, status FROM escrows WHERE campaign_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &models.CampaignSummary{Campaign: *campaign}
	for rows.Next() {
		var e models.EscrowSummaryEntry
		if err := rows.Scan(&e.ID, &e.AmountXRP, &e.Status); err != nil {
			return nil, err
		}
		summary.Escrows = append(summary.Escrows, e)
	}
	return summary, rows.Err()
}
