package plan

import (
	"encoding/json"
	"testing"
)

func TestNumericRiskPrefersExplicitValue(t *testing.T) {
	risk := 0.42
	p := Plan{Risk: &risk, RiskLevel: RiskHigh}

	got, ok := p.NumericRisk()
	if !ok || got != 0.42 {
		t.Errorf("expected explicit risk 0.42, got %v (ok=%v)", got, ok)
	}
}

func TestNumericRiskCoercesFromLevel(t *testing.T) {
	tests := []struct {
		level RiskLevel
		want  float64
	}{
		{RiskLow, 0.2},
		{RiskMedium, 0.5},
		{RiskHigh, 0.9},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			p := Plan{RiskLevel: tt.level}
			got, ok := p.NumericRisk()
			if !ok || got != tt.want {
				t.Errorf("NumericRisk() = %v (ok=%v), want %v", got, ok, tt.want)
			}
		})
	}
}

func TestNumericRiskMissing(t *testing.T) {
	p := Plan{}
	if _, ok := p.NumericRisk(); ok {
		t.Error("expected ok=false when neither risk nor risk_level is set")
	}
}

func TestValidateStepsRejectsDisallowedTool(t *testing.T) {
	steps := []Step{{Tool: "rm.run", Args: map[string]any{}}}
	if err := ValidateSteps(steps); err == nil {
		t.Error("expected error for non-allow-listed tool")
	}
}

func TestValidateStepsAcceptsAllowListedTools(t *testing.T) {
	steps := []Step{
		{Tool: "shell.run"},
		{Tool: "kubectl.run"},
		{Tool: "fs.write"},
		{Tool: "compose.run"},
		{Tool: "http.request"},
	}
	if err := ValidateSteps(steps); err != nil {
		t.Errorf("expected all allow-listed tools to validate, got %v", err)
	}
}

func TestNormalizeStepsShorthand(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"kubectl.run": {"args": ["rollout", "restart", "deployment/hello"]}}`),
	}

	steps, err := NormalizeSteps(raw)
	if err != nil {
		t.Fatalf("NormalizeSteps() error = %v", err)
	}
	if len(steps) != 1 || steps[0].Tool != "kubectl.run" {
		t.Fatalf("expected one kubectl.run step, got %+v", steps)
	}
}

func TestNormalizeStepsStripsBogusCwd(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"tool":"shell.run","args":{"cmd":"echo","cwd":"."}}`),
		json.RawMessage(`{"tool":"kubectl.run","args":{"cmd":"kubectl","cwd":"/sandbox"}}`),
	}

	steps, err := NormalizeSteps(raw)
	if err != nil {
		t.Fatalf("NormalizeSteps() error = %v", err)
	}
	if _, ok := steps[0].Args["cwd"]; ok {
		t.Error("expected placeholder cwd '.' to be stripped from shell.run")
	}
	if _, ok := steps[1].Args["cwd"]; ok {
		t.Error("expected cwd to always be stripped from kubectl.run")
	}
}

func TestNormalizeStepsRejectsUnrecognizedShape(t *testing.T) {
	raw := []json.RawMessage{json.RawMessage(`"just a string"`)}
	if _, err := NormalizeSteps(raw); err == nil {
		t.Error("expected error for unrecognized step shape")
	}
}
