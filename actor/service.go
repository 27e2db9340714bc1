// Package actor executes an approved plan against the tool sandbox: an
// idempotency check, an autonomy-ceiling gate, instruction compilation
// when a plan carries free text instead of steps, sequential dispatch
// through the Sandbox, and a resolution published for the Learner (§4.4).
package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/opsloop/sentinel/bus"
	"github.com/opsloop/sentinel/idempotency"
	"github.com/opsloop/sentinel/llm"
	"github.com/opsloop/sentinel/plan"
	"github.com/opsloop/sentinel/sandbox"
	"github.com/opsloop/sentinel/store"
)

// Service wires the Actor's dependencies.
type Service struct {
	Broker           *bus.Broker
	Sandbox          *sandbox.Sandbox
	Store            *store.Store
	Seen             idempotency.SeenSet
	LLM              *llm.Client
	MaxAutonomyRisk  float64
	DefaultNamespace string
	Logger           *slog.Logger
}

// Handle implements bus.Handler for the plans.approved consumer.
func (s *Service) Handle(ctx context.Context, msg jetstream.Msg) (bus.Outcome, error) {
	var p plan.Plan
	if err := json.Unmarshal(msg.Data(), &p); err != nil {
		return bus.Drop, fmt.Errorf("unmarshal plan: %w", err)
	}

	key := idempotency.Key(p.IdempotencyKey, p.IncidentID, p.ID)
	if !s.Seen.MarkIfNew(key) {
		if s.Logger != nil {
			s.Logger.Info("duplicate plan delivery dropped", "plan_id", p.ID, "key", key)
		}
		return bus.Drop, nil
	}

	if risk, ok := p.NumericRisk(); ok && risk > s.MaxAutonomyRisk {
		resolution := plan.Resolution{
			IncidentID: p.IncidentID,
			PlanID:     p.ID,
			Status:     plan.ResolutionSkipped,
			Outputs: []plan.Output{{
				Tool:   "autonomy",
				Result: map[string]any{"ok": false},
				Error:  fmt.Sprintf("risk %g > max %g", risk, s.MaxAutonomyRisk),
			}},
		}
		return s.finish(ctx, p, resolution, plan.StatusSkipped)
	}

	steps := p.Steps
	if len(steps) == 0 {
		if p.Instructions == "" {
			resolution := plan.Resolution{
				IncidentID: p.IncidentID,
				PlanID:     p.ID,
				Status:     plan.ResolutionFailed,
				Outputs: []plan.Output{{
					Tool:  "compile",
					Error: "plan has neither steps nor instructions",
				}},
			}
			return s.finish(ctx, p, resolution, plan.StatusFailed)
		}

		compiled, err := s.compile(ctx, p.Instructions)
		if err != nil {
			resolution := plan.Resolution{
				IncidentID: p.IncidentID,
				PlanID:     p.ID,
				Status:     plan.ResolutionFailed,
				Outputs: []plan.Output{{
					Tool:  "compile",
					Error: err.Error(),
				}},
			}
			return s.finish(ctx, p, resolution, plan.StatusFailed)
		}
		steps = compiled
	}

	resolution, status := s.execute(ctx, p, steps)
	return s.finish(ctx, p, resolution, status)
}

// execute dispatches steps sequentially, stopping at the first step whose
// result is not ok (§4.4).
func (s *Service) execute(ctx context.Context, p plan.Plan, steps []plan.Step) (plan.Resolution, plan.Status) {
	start := time.Now()
	outputs := make([]plan.Output, 0, len(steps))
	failed := false

	for i, step := range steps {
		result, err := s.Sandbox.Dispatch(ctx, step.Tool, step.Args)
		out := plan.Output{Step: i, Tool: step.Tool, Result: result}
		if err != nil {
			out.Error = err.Error()
		}
		outputs = append(outputs, out)

		ok, _ := result["ok"].(bool)
		if err != nil || !ok {
			failed = true
			break
		}
	}

	status := plan.ResolutionResolved
	planStatus := plan.StatusCompleted
	if failed {
		status = plan.ResolutionFailed
		planStatus = plan.StatusFailed
	}

	return plan.Resolution{
		IncidentID: p.IncidentID,
		PlanID:     p.ID,
		Status:     status,
		Outputs:    outputs,
		DurationMs: time.Since(start).Milliseconds(),
	}, planStatus
}

// finish persists the plan's terminal status and publishes the
// resolution. Persistence and publish failures are retried — the Actor
// is itself idempotent via Seen, so redelivery is safe.
func (s *Service) finish(ctx context.Context, p plan.Plan, resolution plan.Resolution, status plan.Status) (bus.Outcome, error) {
	if err := s.Store.UpdatePlanStatus(ctx, p.ID, status); err != nil {
		return bus.Retry, fmt.Errorf("update plan status: %w", err)
	}
	if err := s.Broker.Publish(ctx, bus.SubjectIncidentsResolved, resolution); err != nil {
		return bus.Retry, fmt.Errorf("publish resolution: %w", err)
	}
	return bus.Ack, nil
}
