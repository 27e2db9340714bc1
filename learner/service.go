// Package learner records and indexes resolved incidents for future
// context: a summary string embedded and upserted into the similarity
// index, and an optional best-effort post-mortem document (§4.5).
package learner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/opsloop/sentinel/bus"
	"github.com/opsloop/sentinel/plan"
	"github.com/opsloop/sentinel/store"
)

// Embedder produces the numeric embedding for a summary string.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Service wires the Learner's dependencies. DocStore is optional — a nil
// DocStore skips post-mortem filing entirely.
type Service struct {
	Store    *store.Store
	Embed    Embedder
	DocStore DocStore
	Logger   *slog.Logger
}

// Handle implements bus.Handler for the incidents.resolved consumer.
func (s *Service) Handle(ctx context.Context, msg jetstream.Msg) (bus.Outcome, error) {
	var res plan.Resolution
	if err := json.Unmarshal(msg.Data(), &res); err != nil {
		return bus.Drop, fmt.Errorf("unmarshal resolution: %w", err)
	}

	ni, err := s.Store.GetIncident(ctx, res.IncidentID)
	if err != nil {
		return bus.Retry, fmt.Errorf("load incident %s: %w", res.IncidentID, err)
	}
	p, err := s.Store.GetPlan(ctx, res.PlanID)
	if err != nil {
		return bus.Retry, fmt.Errorf("load plan %s: %w", res.PlanID, err)
	}

	summary := buildSummary(ni, p, res)

	embedding, err := s.Embed.Embed(ctx, summary)
	if err != nil {
		return bus.Retry, fmt.Errorf("embed summary: %w", err)
	}

	hist := store.HistoricalIncident{
		IncidentID: res.IncidentID,
		Summary:    summary,
		Embedding:  embedding,
		Service:    ni.AffectedService,
		Severity:   string(ni.Severity),
		OccurredAt: time.Now(),
		Source:     "actor",
		Resolution: string(res.Status),
	}
	if err := s.Store.UpsertHistoricalIncident(ctx, hist); err != nil {
		return bus.Retry, fmt.Errorf("upsert historical incident: %w", err)
	}

	if s.DocStore != nil {
		doc := PostMortem{
			IncidentID: res.IncidentID,
			Title:      p.Title,
			Summary:    summary,
			Service:    ni.AffectedService,
			Severity:   string(ni.Severity),
			Resolution: string(res.Status),
		}
		if err := s.DocStore.Create(ctx, doc); err != nil && s.Logger != nil {
			// Doc-store failures never block the index update (§4.5).
			s.Logger.Warn("post-mortem document creation failed", "incident_id", res.IncidentID, "error", err)
		}
	}

	return bus.Ack, nil
}
