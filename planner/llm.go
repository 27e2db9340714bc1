package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/opsloop/sentinel/incident"
	"github.com/opsloop/sentinel/llm"
	"github.com/opsloop/sentinel/model"
	"github.com/opsloop/sentinel/plan"
)

// maxFormatRetries bounds the total LLM call attempts when the response
// fails JSON extraction/validation (§4.1 Format-correction retry).
const maxFormatRetries = 5

// llmPlanResponse is the strict-JSON shape the Planner requires from the
// LLM; it maps directly onto the subset of plan.Plan fields synthesis is
// responsible for.
type llmPlanResponse struct {
	Title        string     `json:"title"`
	Summary      string     `json:"summary,omitempty"`
	Rationale    string     `json:"rationale,omitempty"`
	RiskLevel    string     `json:"risk_level"`
	Rollout      string     `json:"rollout,omitempty"`
	Verification []string   `json:"verification,omitempty"`
	RollbackPlan []string   `json:"rollback_plan,omitempty"`
	Steps        []plan.Step `json:"steps,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
}

func (r *llmPlanResponse) validate() error {
	if r.Title == "" {
		return fmt.Errorf("plan missing 'title' field")
	}
	switch plan.RiskLevel(r.RiskLevel) {
	case plan.RiskLow, plan.RiskMedium, plan.RiskHigh:
	default:
		return fmt.Errorf("plan 'risk_level' must be one of low, medium, high, got %q", r.RiskLevel)
	}
	if len(r.Steps) == 0 && r.Instructions == "" {
		return fmt.Errorf("plan must set either 'steps' or 'instructions'")
	}
	return nil
}

// generatePlanFromMessages calls the LLM with format-correction retry: a
// parse failure is fed back as a corrective user turn and retried, up to
// maxFormatRetries total attempts, accumulating conversation history
// across retries (grounded on the reference LLM client's
// generatePlanFromMessages loop).
func generatePlanFromMessages(ctx context.Context, client *llm.Client, capability, system, user string, logger *slog.Logger) (*llmPlanResponse, error) {
	temperature := 0.7
	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	var lastErr error
	for attempt := 0; attempt < maxFormatRetries; attempt++ {
		resp, err := client.Complete(ctx, llm.Request{
			Capability:  capability,
			Messages:    messages,
			Temperature: &temperature,
			MaxTokens:   4096,
		})
		if err != nil {
			return nil, fmt.Errorf("LLM completion: %w", err)
		}

		parsed, parseErr := parsePlanResponse(resp.Content)
		if parseErr == nil {
			return parsed, nil
		}
		lastErr = parseErr

		if attempt+1 >= maxFormatRetries {
			break
		}
		if logger != nil {
			logger.Warn("plan format retry", "attempt", attempt+1, "error", parseErr)
		}

		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: formatCorrectionPrompt(parseErr)},
		)
	}

	return nil, fmt.Errorf("parse plan from response: %w", lastErr)
}

// parsePlanResponse extracts and validates the plan JSON from a raw LLM
// response, accepting either a bare object or one wrapped in a markdown
// code fence.
func parsePlanResponse(content string) (*llmPlanResponse, error) {
	jsonContent := llm.ExtractJSON(content)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var resp llmPlanResponse
	if err := json.Unmarshal([]byte(jsonContent), &resp); err != nil {
		n := min(200, len(jsonContent))
		return nil, fmt.Errorf("parse JSON: %w (content: %s)", err, jsonContent[:n])
	}
	if err := resp.validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// toPlan converts a validated LLM response into a Plan ready to publish.
// confidence is the Context Enricher's internal-confidence score, nil
// when the plan was synthesized without enrichment.
func toPlan(resp *llmPlanResponse, ni incident.NormalizedIncident, planType plan.PlanType, sources []string, gatheringMs int64, confidence *float64) plan.Plan {
	return plan.Plan{
		ID:              uuid.New().String(),
		IncidentID:      ni.ID,
		Status:          plan.StatusProposed,
		RiskLevel:       plan.RiskLevel(resp.RiskLevel),
		Title:           resp.Title,
		Summary:         resp.Summary,
		Rationale:       resp.Rationale,
		Rollout:         plan.Rollout(resp.Rollout),
		Verification:    resp.Verification,
		RollbackPlan:    resp.RollbackPlan,
		Steps:           resp.Steps,
		Instructions:    resp.Instructions,
		PlanType:        planType,
		ContextSources:  sources,
		GatheringTimeMs: gatheringMs,
		Confidence:      confidence,
	}
}

// fallbackPlan builds the deterministic two-step diagnostic plan emitted
// when the LLM response can't be parsed after all retries (§4.1 LLM
// contract). It never touches the sandbox's mutating tools.
func fallbackPlan(ni incident.NormalizedIncident, cause error) plan.Plan {
	namespace := "default"
	return plan.Plan{
		ID:             uuid.New().String(),
		IncidentID:     ni.ID,
		Status:         plan.StatusProposed,
		RiskLevel:      plan.RiskLow,
		Title:          fmt.Sprintf("Diagnose %s", ni.AffectedService),
		Summary:        "Automated plan synthesis failed; falling back to safe diagnostics only.",
		Rationale:      "The LLM response could not be parsed into a valid plan after retrying.",
		PlanType:       plan.PlanTypeFallback,
		Steps: []plan.Step{
			{Tool: "kubectl.run", Args: map[string]any{"args": []string{"get", "pods", "-n", namespace, "-l", "app=" + ni.AffectedService}}},
			{Tool: "kubectl.run", Args: map[string]any{"args": []string{"logs", "-n", namespace, "-l", "app=" + ni.AffectedService, "--tail=200"}}},
		},
		Metadata: map[string]any{"synthesis_error": cause.Error()},
	}
}

// defaultCapability is the Planner's LLM capability.
func defaultCapability() string {
	return string(model.CapabilityPlanning)
}
