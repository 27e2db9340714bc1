// Package collaborator applies the human/policy gate between a proposed
// plan and an approved one: risk-level auto-approval against a
// configurable threshold, and an out-of-band approval channel for
// everything else (§4.3).
package collaborator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/opsloop/sentinel/bus"
	"github.com/opsloop/sentinel/config"
	"github.com/opsloop/sentinel/plan"
	"github.com/opsloop/sentinel/store"
)

// Service wires the Collaborator's dependencies. Plans awaiting human
// approval are persisted to Store rather than held in process memory —
// the proposed message is acknowledged once durably recorded, and the
// out-of-band ApprovalDecision handler reloads the plan by id when it
// arrives, however much later that is.
type Service struct {
	Broker *bus.Broker
	Store  *store.Store
	Policy config.PolicyConfig
	Logger *slog.Logger
}

// HandleProposed implements bus.Handler for the plans.proposed consumer.
func (s *Service) HandleProposed(ctx context.Context, msg jetstream.Msg) (bus.Outcome, error) {
	var p plan.Plan
	if err := json.Unmarshal(msg.Data(), &p); err != nil {
		return bus.Drop, fmt.Errorf("unmarshal plan: %w", err)
	}

	if err := s.Store.UpsertPlan(ctx, p); err != nil {
		return bus.Retry, fmt.Errorf("persist proposed plan: %w", err)
	}

	if autoApprovable(p, s.Policy.AutoApproveRiskLevel) {
		p.Status = plan.StatusApproved
		p.ApprovedBy = "auto-approval"
		return s.approve(ctx, p)
	}

	if s.Logger != nil {
		s.Logger.Info("plan held for approval", "plan_id", p.ID, "risk_level", p.RiskLevel)
	}
	return bus.Ack, nil
}

// HandleApproval implements bus.Handler for the plans.approval consumer
// carrying out-of-band ApprovalDecision events.
func (s *Service) HandleApproval(ctx context.Context, msg jetstream.Msg) (bus.Outcome, error) {
	var decision plan.ApprovalDecision
	if err := json.Unmarshal(msg.Data(), &decision); err != nil {
		return bus.Drop, fmt.Errorf("unmarshal approval decision: %w", err)
	}

	p, err := s.Store.GetPlan(ctx, decision.PlanID)
	if err != nil {
		return bus.Retry, fmt.Errorf("load plan %s: %w", decision.PlanID, err)
	}

	// Idempotency: re-approving an already-approved (or otherwise
	// terminal) plan is a no-op (§4.3).
	if p.Status != plan.StatusProposed {
		if s.Logger != nil {
			s.Logger.Info("approval decision is a no-op, plan already settled", "plan_id", p.ID, "status", p.Status)
		}
		return bus.Drop, nil
	}

	if !decision.Approve {
		p.Status = plan.StatusSkipped
		p.ApprovedBy = decision.ApprovedBy
		if err := s.Store.UpsertPlan(ctx, p); err != nil {
			return bus.Retry, fmt.Errorf("persist rejected plan: %w", err)
		}
		return bus.Ack, nil
	}

	p.Status = plan.StatusApproved
	p.ApprovedBy = decision.ApprovedBy
	return s.approve(ctx, p)
}

func (s *Service) approve(ctx context.Context, p plan.Plan) (bus.Outcome, error) {
	if err := s.Store.UpsertPlan(ctx, p); err != nil {
		return bus.Retry, fmt.Errorf("persist approved plan: %w", err)
	}
	if err := s.Broker.Publish(ctx, bus.SubjectPlansApproved, p); err != nil {
		return bus.Retry, fmt.Errorf("publish approved plan: %w", err)
	}
	return bus.Ack, nil
}

// autoApprovable reports whether p's risk is at or below threshold on
// the fixed low < medium < high ordering. A plan with no resolvable
// numeric risk never auto-approves.
func autoApprovable(p plan.Plan, threshold string) bool {
	risk, ok := p.NumericRisk()
	if !ok {
		return false
	}
	thresholdValue, ok := plan.RiskLevelValue(plan.RiskLevel(threshold))
	if !ok {
		return false
	}
	return risk <= thresholdValue
}
