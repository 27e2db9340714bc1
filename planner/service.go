// Package planner turns raw incidents from incidents.new into structured
// remediation plans on plans.proposed: normalization, plan-type
// selection, quota-gated enhanced/basic synthesis, LLM plan generation
// with format-correction retry, and a deterministic fallback plan when
// synthesis can't produce valid JSON (§4.1).
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/opsloop/sentinel/bus"
	"github.com/opsloop/sentinel/config"
	"github.com/opsloop/sentinel/enrich"
	"github.com/opsloop/sentinel/incident"
	"github.com/opsloop/sentinel/llm"
	"github.com/opsloop/sentinel/plan"
	"github.com/opsloop/sentinel/quota"
)

// Service wires the Planner's dependencies: the broker for publishing,
// the LLM client for synthesis, the plan cache for replay suppression,
// the quota counters gating enhanced synthesis, and the enricher
// supplying the rich-template evidence.
type Service struct {
	Broker   *bus.Broker
	LLM      *llm.Client
	Cache    plan.Cache
	Quota    quota.Counters
	Enricher *enrich.Enricher
	Policy   config.PolicyConfig
	Logger   *slog.Logger
}

// Handle implements bus.Handler for the incidents.new consumer.
func (s *Service) Handle(ctx context.Context, msg jetstream.Msg) (bus.Outcome, error) {
	var raw incident.Incident
	if err := json.Unmarshal(msg.Data(), &raw); err != nil {
		return bus.Drop, fmt.Errorf("unmarshal incident: %w", err)
	}

	ni := incident.Normalize(raw)

	cacheKey := plan.CacheKey(ni.ID, ni.Title, ni.AffectedService)
	if cached, ok := s.Cache.Get(cacheKey); ok {
		if err := s.Broker.Publish(ctx, bus.SubjectPlansProposed, cached); err != nil {
			return bus.Retry, fmt.Errorf("publish cached plan: %w", err)
		}
		return bus.Ack, nil
	}

	p := s.synthesize(ctx, ni)
	s.Cache.Put(cacheKey, p)

	if err := s.Broker.Publish(ctx, bus.SubjectPlansProposed, p); err != nil {
		return bus.Retry, fmt.Errorf("publish plan: %w", err)
	}
	return bus.Ack, nil
}

// synthesize runs plan-type selection, the quota-gated enhanced/basic
// decision, LLM synthesis, and the fallback path. It never returns an
// error: a synthesis failure degrades to the deterministic fallback plan
// rather than blocking the pipeline.
func (s *Service) synthesize(ctx context.Context, ni incident.NormalizedIncident) plan.Plan {
	planType := SelectPlanType(ni, s.Policy)

	enhanced := wantsEnhanced(ni, s.Policy) && s.Enricher != nil && s.Quota.CanMakeRequest(enhancedPriority(ni))

	var ec *enrich.EnrichedContext
	if enhanced {
		gathered, err := s.Enricher.Gather(ctx, ni)
		if err != nil && s.Logger != nil {
			s.Logger.Warn("context gathering failed, continuing with basic synthesis", "incident_id", ni.ID, "error", err)
		} else {
			ec = &gathered
		}
	}

	system := systemPrompt()
	user := userPrompt(planType, ni, ec)

	resp, err := generatePlanFromMessages(ctx, s.LLM, defaultCapability(), system, user, s.Logger)
	if enhanced {
		if err != nil {
			s.Quota.RecordFailure()
		} else {
			s.Quota.RecordSuccess()
		}
	}
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("plan synthesis failed, emitting fallback plan", "incident_id", ni.ID, "error", err)
		}
		return fallbackPlan(ni, err)
	}

	var sources []string
	var gatheringMs int64
	var confidence *float64
	if ec != nil {
		sources = ec.SourcesUsed
		gatheringMs = ec.GatheringTimeMs
		confidence = &ec.InternalConfidence
	}
	return toPlan(resp, ni, planType, sources, gatheringMs, confidence)
}
