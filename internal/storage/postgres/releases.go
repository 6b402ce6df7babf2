package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/whistlebox/backend/internal/models"
)

// BeginReleaseRequest inserts the in_progress record, or takes over an
// existing in_progress record whose lease expired (a crashed attempt).
// The single statement keeps the decision atomic under concurrent callers:
// exactly one of them gets a row back.
func (s *Store) BeginReleaseRequest(ctx context.Context, requestID, escrowID string, lease time.Duration) (bool, *models.ReleaseRequest, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO release_requests (request_id, escrow_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id) DO UPDATE
		SET escrow_id = EXCLUDED.escrow_id, created_at = now(), updated_at = now()
		WHERE release_requests.status = $3
		  AND release_requests.updated_at < now() - $4::interval
		RETURNING request_id
	`, requestID, escrowID, models.ReleaseStatusInProgress, lease.String()).Scan(&id)
	if err == nil {
		return true, nil, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, nil, err
	}

	existing, err := s.GetReleaseRequest(ctx, requestID)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (s *Store) GetReleaseRequest(ctx context.Context, requestID string) (*models.ReleaseRequest, error) {
	var r models.ReleaseRequest
	err := s.pool.QueryRow(ctx, `
		SELECT request_id, escrow_id, status, finish_tx_hash, created_at, updated_at
		FROM release_requests WHERE request_id = $1
	`, requestID).Scan(&r.RequestID, &r.EscrowID, &r.Status, &r.FinishTxHash, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

// AbortReleaseRequest clears an in_progress record after a submission that
// failed before ledger confirmation, so the request id is not permanently
// burned. Completed records are never deleted.
func (s *Store) AbortReleaseRequest(ctx context.Context, requestID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM release_requests WHERE request_id = $1 AND status = $2
	`, requestID, models.ReleaseStatusInProgress)
	return err
}

func (s *Store) ExpireStaleReleaseRequests(ctx context.Context, olderThan time.Duration) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM release_requests
		WHERE status = $1 AND updated_at < now() - $2::interval
	`, models.ReleaseStatusInProgress, olderThan.String())
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
