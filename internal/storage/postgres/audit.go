package postgres

import (
	"context"

	"github.com/whistlebox/backend/internal/models"
)

func (s *Store) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (actor, action, entity_type, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Meta)
	return err
}

func (s *Store) ListAuditByEntity(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor, action, entity_type, entity_id, meta, created_at
		FROM audit_log WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &e.Meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
