package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opsloop/sentinel/plan"
)

// UpsertPlan inserts or updates a plan row by id, touching created_at only
// on first insert (§3.1).
func (s *Store) UpsertPlan(ctx context.Context, p plan.Plan) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	var risk any
	if p.Risk != nil {
		risk = *p.Risk
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO plans (id, incident_id, status, risk_level, risk, title, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			incident_id = EXCLUDED.incident_id,
			status      = EXCLUDED.status,
			risk_level  = EXCLUDED.risk_level,
			risk        = EXCLUDED.risk,
			title       = EXCLUDED.title,
			body        = EXCLUDED.body,
			updated_at  = now()
	`, p.ID, p.IncidentID, string(p.Status), string(p.RiskLevel), risk, p.Title, body)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

// GetPlan fetches a plan by id.
func (s *Store) GetPlan(ctx context.Context, id string) (plan.Plan, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM plans WHERE id = $1`, id).Scan(&body)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("get plan %s: %w", id, err)
	}

	var p plan.Plan
	if err := json.Unmarshal(body, &p); err != nil {
		return plan.Plan{}, fmt.Errorf("unmarshal plan %s: %w", id, err)
	}
	return p, nil
}

// ListPlansForIncident returns every plan recorded against incidentID,
// newest first.
func (s *Store) ListPlansForIncident(ctx context.Context, incidentID string) ([]plan.Plan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT body FROM plans WHERE incident_id = $1 ORDER BY created_at DESC
	`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list plans for incident %s: %w", incidentID, err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		var p plan.Plan
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("unmarshal plan row: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// UpdatePlanStatus sets a plan's status without rewriting its body.
func (s *Store) UpdatePlanStatus(ctx context.Context, id string, status plan.Status) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE plans SET status = $2, updated_at = now() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("update plan status %s: %w", id, err)
	}
	return nil
}
