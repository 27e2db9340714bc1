// Package plan models the Plan and Resolution wire payloads, the Actor's
// numeric/enum risk coercion, and step normalization/validation shared by
// the Planner (producer) and Actor (consumer).
package plan

import (
	"encoding/json"
	"fmt"
)

// Status tracks a plan through Planner -> Collaborator -> Actor.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusApproved  Status = "approved"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// RiskLevel is the enum form of risk; Risk is the numeric form used for
// ceiling comparisons.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskLevelValues is the fixed coercion table applied when only an enum
// RiskLevel is present and a numeric comparison is required (the autonomy
// ceiling check, §4.4).
var riskLevelValues = map[RiskLevel]float64{
	RiskLow:    0.2,
	RiskMedium: 0.5,
	RiskHigh:   0.9,
}

// RiskLevelValue exposes the fixed enum-to-numeric coercion table to
// callers outside this package (the Collaborator's auto-approve
// threshold comparison, §4.3).
func RiskLevelValue(level RiskLevel) (float64, bool) {
	v, ok := riskLevelValues[level]
	return v, ok
}

// Rollout names the deployment strategy a plan's steps implement.
type Rollout string

const (
	RolloutCanary    Rollout = "canary"
	RolloutBlueGreen Rollout = "bluegreen"
	RolloutInPlace   Rollout = "inplace"
)

// PlanType records which prompt template produced a plan; all types share
// the same schema.
type PlanType string

const (
	PlanTypeQuick         PlanType = "quick"
	PlanTypeComprehensive PlanType = "comprehensive"
	PlanTypeDeepDive      PlanType = "deep_dive"
	PlanTypeFallback      PlanType = "fallback"
)

// Step is one executable unit dispatched to a Sandbox tool.
type Step struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Plan is the unit the Actor executes.
type Plan struct {
	ID             string    `json:"id"`
	IncidentID     string    `json:"incident_id"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Status         Status    `json:"status"`
	RiskLevel      RiskLevel `json:"risk_level,omitempty"`
	Risk           *float64  `json:"risk,omitempty"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary,omitempty"`
	Rationale      string    `json:"rationale,omitempty"`
	Rollout        Rollout   `json:"rollout,omitempty"`
	Verification   []string  `json:"verification,omitempty"`
	RollbackPlan   []string  `json:"rollback_plan,omitempty"`
	Steps          []Step    `json:"steps,omitempty"`
	Instructions   string    `json:"instructions,omitempty"`
	ApprovedBy     string    `json:"approved_by,omitempty"`

	PlanType        PlanType `json:"plan_type,omitempty"`
	ContextSources  []string `json:"context_sources,omitempty"`
	ModelUsed       string   `json:"model_used,omitempty"`
	GatheringTimeMs int64    `json:"gathering_time_ms,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`

	// Confidence carries the Context Enricher's internal-confidence score
	// (§4.2) forward into the plan, for the Learner's post-mortem summary
	// (§4.5 "AI confidence"). Unset for plans synthesized without
	// enrichment (basic synthesis, fallback plans).
	Confidence *float64 `json:"confidence,omitempty"`
}

// NumericRisk returns the plan's risk as a float, coercing from RiskLevel
// via the fixed table when only the enum is present. Returns ok=false if
// neither is set.
func (p *Plan) NumericRisk() (float64, bool) {
	if p.Risk != nil {
		return *p.Risk, true
	}
	if v, ok := riskLevelValues[p.RiskLevel]; ok {
		return v, true
	}
	return 0, false
}

// Output is one executed step's recorded result.
type Output struct {
	Step   int            `json:"step"`
	Tool   string         `json:"tool"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ResolutionStatus is the terminal state of a Resolution.
type ResolutionStatus string

const (
	ResolutionResolved ResolutionStatus = "resolved"
	ResolutionFailed   ResolutionStatus = "failed"
	ResolutionSkipped  ResolutionStatus = "skipped"
)

// Resolution is emitted by the Actor on incidents.resolved.
type Resolution struct {
	IncidentID       string           `json:"incident_id"`
	PlanID           string           `json:"plan_id"`
	Status           ResolutionStatus `json:"status"`
	ResolutionAction string           `json:"resolution_action,omitempty"`
	Outputs          []Output         `json:"outputs"`
	DurationMs       int64            `json:"duration_ms"`
}

// ApprovalDecision is the out-of-band approval message the Collaborator
// consumes from q.plans.approval to unblock a held plan (§4.3).
type ApprovalDecision struct {
	PlanID     string `json:"plan_id"`
	ApprovedBy string `json:"approved_by"`
	Approve    bool   `json:"approve"`
}

// allowedTools is the Sandbox's fixed tool allow-list (§4.6). Shared here
// so both plan validation and step normalization reference one source of
// truth.
var allowedTools = map[string]bool{
	"shell.run":    true,
	"http.request": true,
	"fs.write":     true,
	"compose.run":  true,
	"kubectl.run":  true,
}

// ValidateSteps checks that every step's tool is allow-listed. A plan with
// zero steps is valid at this layer — the Actor separately requires
// either Steps or Instructions to be present before execution.
func ValidateSteps(steps []Step) error {
	for i, step := range steps {
		if !allowedTools[step.Tool] {
			return fmt.Errorf("step %d: tool %q is not in the sandbox allow-list", i, step.Tool)
		}
	}
	return nil
}

// NormalizeSteps applies the Actor's pre-dispatch step corrections:
// rewriting one-key-object shorthand {tool: args} to {tool, args}, and
// stripping cwd for tools that don't accept it or whose cwd is a bogus
// placeholder.
func NormalizeSteps(raw []json.RawMessage) ([]Step, error) {
	steps := make([]Step, 0, len(raw))
	for i, r := range raw {
		step, err := normalizeOneStep(r)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func normalizeOneStep(r json.RawMessage) (Step, error) {
	var shaped Step
	if err := json.Unmarshal(r, &shaped); err == nil && shaped.Tool != "" {
		return finalizeStep(shaped), nil
	}

	// One-key shorthand: {"shell.run": {...}}
	var shorthand map[string]map[string]any
	if err := json.Unmarshal(r, &shorthand); err != nil {
		return Step{}, fmt.Errorf("unrecognized step shape: %w", err)
	}
	if len(shorthand) != 1 {
		return Step{}, fmt.Errorf("unrecognized step shape: expected exactly one tool key")
	}
	for tool, args := range shorthand {
		return finalizeStep(Step{Tool: tool, Args: args}), nil
	}
	return Step{}, fmt.Errorf("unrecognized step shape")
}

// kubectlRun and composeRun do not accept cwd; reject placeholder cwd
// values ("", ".", "null") for tools that do.
func finalizeStep(step Step) Step {
	if step.Args == nil {
		return step
	}
	switch step.Tool {
	case "kubectl.run":
		delete(step.Args, "cwd")
	default:
		if cwd, ok := step.Args["cwd"].(string); ok {
			switch cwd {
			case "", ".", "null":
				delete(step.Args, "cwd")
			}
		}
	}
	return step
}
