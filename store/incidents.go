package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opsloop/sentinel/incident"
)

// UpsertIncident inserts or updates an incident row by id.
func (s *Store) UpsertIncident(ctx context.Context, inc incident.NormalizedIncident) error {
	body, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("marshal incident: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO incidents (id, affected_service, severity, status, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			affected_service = EXCLUDED.affected_service,
			severity         = EXCLUDED.severity,
			status           = EXCLUDED.status,
			body             = EXCLUDED.body,
			updated_at       = now()
	`, inc.ID, inc.AffectedService, string(inc.Severity), string(inc.Status), body)
	if err != nil {
		return fmt.Errorf("upsert incident: %w", err)
	}
	return nil
}

// GetIncident fetches an incident by id.
func (s *Store) GetIncident(ctx context.Context, id string) (incident.NormalizedIncident, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM incidents WHERE id = $1`, id).Scan(&body)
	if err != nil {
		return incident.NormalizedIncident{}, fmt.Errorf("get incident %s: %w", id, err)
	}

	var inc incident.NormalizedIncident
	if err := json.Unmarshal(body, &inc); err != nil {
		return incident.NormalizedIncident{}, fmt.Errorf("unmarshal incident %s: %w", id, err)
	}
	return inc, nil
}
