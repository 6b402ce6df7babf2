package postgres

import "context"

func (s *Store) AddVerifier(ctx context.Context, campaignID, address string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO verifier_whitelist (campaign_id, verifier_address)
		VALUES ($1, $2)
		ON CONFLICT (campaign_id, verifier_address) DO NOTHING
	`, campaignID, address)
	return err
}

func (s *Store) RemoveVerifier(ctx context.Context, campaignID, address string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM verifier_whitelist WHERE campaign_id = $1 AND verifier_address = $2
	`, campaignID, address)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) IsVerifierWhitelisted(ctx context.Context, campaignID, address string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM verifier_whitelist WHERE campaign_id = $1 AND verifier_address = $2)
	`, campaignID, address).Scan(&exists)
	return exists, err
}

func (s *Store) ListVerifiers(ctx context.Context, campaignID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT verifier_address FROM verifier_whitelist
		WHERE campaign_id = $1 ORDER BY added_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, rows.Err()
}
