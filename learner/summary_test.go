package learner

import (
	"strings"
	"testing"

	"github.com/opsloop/sentinel/incident"
	"github.com/opsloop/sentinel/plan"
)

func TestBuildSummaryIncludesCoreFields(t *testing.T) {
	ni := incident.NormalizedIncident{
		Incident: incident.Incident{
			ID:              "inc-1",
			Title:           "checkout 500s",
			AffectedService: "checkout-api",
			Severity:        incident.SeverityHigh,
			Hypothesis:      "bad deploy",
		},
	}
	confidence := 0.82
	p := plan.Plan{Title: "Restart checkout-api", Rationale: "rollback the last deploy", Confidence: &confidence}
	res := plan.Resolution{Status: plan.ResolutionResolved}

	summary := buildSummary(ni, p, res)

	for _, want := range []string{"inc-1", "checkout-api", "high", "bad deploy", "0.82", "Restart checkout-api", "rollback the last deploy"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary %q missing expected content %q", summary, want)
		}
	}
}

func TestBuildSummaryFallsBackToPlanSummaryForNotes(t *testing.T) {
	ni := incident.NormalizedIncident{Incident: incident.Incident{ID: "inc-2", AffectedService: "svc"}}
	p := plan.Plan{Title: "Scale up", Summary: "increased replica count"}
	res := plan.Resolution{Status: plan.ResolutionResolved}

	summary := buildSummary(ni, p, res)
	if !strings.Contains(summary, "increased replica count") {
		t.Errorf("expected summary to fall back to plan.Summary, got %q", summary)
	}
}

func TestBuildSummaryOmitsConfidenceWhenUnset(t *testing.T) {
	ni := incident.NormalizedIncident{Incident: incident.Incident{ID: "inc-3", AffectedService: "svc"}}
	p := plan.Plan{Title: "Diagnose"}
	res := plan.Resolution{Status: plan.ResolutionFailed}

	summary := buildSummary(ni, p, res)
	if strings.Contains(summary, "AI confidence") {
		t.Errorf("expected no AI confidence clause when Confidence is nil, got %q", summary)
	}
}
