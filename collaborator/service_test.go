package collaborator

import (
	"testing"

	"github.com/opsloop/sentinel/plan"
)

func TestAutoApprovableAtOrBelowThreshold(t *testing.T) {
	low := plan.Plan{RiskLevel: plan.RiskLow}
	medium := plan.Plan{RiskLevel: plan.RiskMedium}
	if !autoApprovable(low, "medium") {
		t.Error("expected low risk to auto-approve under medium threshold")
	}
	if !autoApprovable(medium, "medium") {
		t.Error("expected medium risk to auto-approve under medium threshold")
	}
}

func TestAutoApprovableAboveThresholdRequiresApproval(t *testing.T) {
	high := plan.Plan{RiskLevel: plan.RiskHigh}
	if autoApprovable(high, "medium") {
		t.Error("expected high risk to require explicit approval under medium threshold")
	}
}

func TestAutoApprovableUsesNumericRiskWhenSet(t *testing.T) {
	risk := 0.1
	p := plan.Plan{Risk: &risk}
	if !autoApprovable(p, "low") {
		t.Error("expected numeric risk 0.1 to auto-approve under low threshold (0.2)")
	}
}

func TestAutoApprovableFalseWithUnresolvableRisk(t *testing.T) {
	p := plan.Plan{}
	if autoApprovable(p, "high") {
		t.Error("expected plan with no resolvable risk to require explicit approval")
	}
}
