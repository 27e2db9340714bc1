package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// HistoricalIncident is one Learner-written entry in the similarity index.
type HistoricalIncident struct {
	IncidentID string
	Summary    string
	Embedding  []float64
	Service    string
	Severity   string
	OccurredAt time.Time
	Source     string
	Resolution string
}

// Match pairs a HistoricalIncident with its cosine similarity to a query
// embedding.
type Match struct {
	HistoricalIncident
	Similarity float64
}

// UpsertHistoricalIncident inserts or updates a historical-incident row
// keyed by incident_id.
func (s *Store) UpsertHistoricalIncident(ctx context.Context, h HistoricalIncident) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO historical_incidents
			(incident_id, summary, embedding, service, severity, occurred_at, source, resolution)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (incident_id) DO UPDATE SET
			summary     = EXCLUDED.summary,
			embedding   = EXCLUDED.embedding,
			service     = EXCLUDED.service,
			severity    = EXCLUDED.severity,
			occurred_at = EXCLUDED.occurred_at,
			source      = EXCLUDED.source,
			resolution  = EXCLUDED.resolution
	`, h.IncidentID, h.Summary, h.Embedding, h.Service, h.Severity, h.OccurredAt, h.Source, nullIfEmpty(h.Resolution))
	if err != nil {
		return fmt.Errorf("upsert historical incident: %w", err)
	}
	return nil
}

// FindSimilar scans every row and returns the topN by cosine similarity to
// query, descending. The corpus carries no vector-database client, so this
// brute-force scan over the float8[] column (grounded substitute, see
// DESIGN.md) stands in for an ANN index; at expected historical-incident
// volumes a full scan is acceptable.
func (s *Store) FindSimilar(ctx context.Context, query []float64, topN int) ([]Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT incident_id, summary, embedding, service, severity, occurred_at, source, COALESCE(resolution, '')
		FROM historical_incidents
	`)
	if err != nil {
		return nil, fmt.Errorf("scan historical incidents: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var h HistoricalIncident
		if err := rows.Scan(&h.IncidentID, &h.Summary, &h.Embedding, &h.Service, &h.Severity, &h.OccurredAt, &h.Source, &h.Resolution); err != nil {
			return nil, fmt.Errorf("scan historical incident row: %w", err)
		}
		matches = append(matches, Match{HistoricalIncident: h, Similarity: cosineSimilarity(query, h.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if topN > 0 && len(matches) > topN {
		matches = matches[:topN]
	}
	return matches, nil
}

// cosineSimilarity returns 0 for mismatched-length or zero-magnitude
// vectors rather than erroring, since the caller treats low similarity
// and "incomparable" identically.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
