package planner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/opsloop/sentinel/config"
	"github.com/opsloop/sentinel/incident"
	"github.com/opsloop/sentinel/llm"
	_ "github.com/opsloop/sentinel/llm/providers"
	"github.com/opsloop/sentinel/model"
	"github.com/opsloop/sentinel/plan"
)

func TestSelectPlanTypeComprehensiveByDefault(t *testing.T) {
	ni := incident.NormalizedIncident{Incident: incident.Incident{Severity: incident.SeverityLow}}
	if got := SelectPlanType(ni, config.PolicyConfig{ComplexIncidentErrorLogThreshold: 10}); got != plan.PlanTypeComprehensive {
		t.Errorf("expected comprehensive, got %v", got)
	}
}

func TestSelectPlanTypeQuickForHeavyHighSeverity(t *testing.T) {
	ni := incident.NormalizedIncident{Incident: incident.Incident{Severity: incident.SeverityHigh}, ErrorLogCount: 20}
	if got := SelectPlanType(ni, config.PolicyConfig{ComplexIncidentErrorLogThreshold: 10}); got != plan.PlanTypeQuick {
		t.Errorf("expected quick, got %v", got)
	}
}

func TestSelectPlanTypeDeepDiveForModerateHighSeverity(t *testing.T) {
	ni := incident.NormalizedIncident{Incident: incident.Incident{Severity: incident.SeverityHigh}, ErrorLogCount: 2}
	if got := SelectPlanType(ni, config.PolicyConfig{ComplexIncidentErrorLogThreshold: 10}); got != plan.PlanTypeDeepDive {
		t.Errorf("expected deep_dive, got %v", got)
	}
}

func TestWantsEnhancedTriggersOnCriticalService(t *testing.T) {
	ni := incident.NormalizedIncident{Incident: incident.Incident{Severity: incident.SeverityLow, AffectedService: "checkout"}}
	policy := config.PolicyConfig{CriticalServices: []string{"checkout"}, ComplexIncidentErrorLogThreshold: 10}
	if !wantsEnhanced(ni, policy) {
		t.Error("expected critical-service membership to trigger enhanced synthesis")
	}
}

func TestWantsEnhancedFalseForLowSeverityNonCriticalSimpleIncident(t *testing.T) {
	ni := incident.NormalizedIncident{Incident: incident.Incident{Severity: incident.SeverityLow, AffectedService: "batch-job"}}
	policy := config.PolicyConfig{ComplexIncidentErrorLogThreshold: 10}
	if wantsEnhanced(ni, policy) {
		t.Error("expected no enhanced trigger")
	}
}

func TestParsePlanResponseRequiresTitleAndRiskLevel(t *testing.T) {
	_, err := parsePlanResponse(`{"risk_level": "low", "steps": [{"tool":"kubectl.run","args":{}}]}`)
	if err == nil {
		t.Error("expected error for missing title")
	}

	_, err = parsePlanResponse(`{"title": "x", "risk_level": "unknown", "steps": [{"tool":"kubectl.run","args":{}}]}`)
	if err == nil {
		t.Error("expected error for invalid risk_level")
	}

	_, err = parsePlanResponse(`{"title": "x", "risk_level": "low"}`)
	if err == nil {
		t.Error("expected error when neither steps nor instructions are set")
	}
}

func TestParsePlanResponseAcceptsMarkdownFencedJSON(t *testing.T) {
	content := "Here is the plan:\n```json\n{\"title\":\"restart\",\"risk_level\":\"low\",\"instructions\":\"restart the pod\"}\n```"
	resp, err := parsePlanResponse(content)
	if err != nil {
		t.Fatalf("parsePlanResponse() error = %v", err)
	}
	if resp.Title != "restart" {
		t.Errorf("expected title 'restart', got %q", resp.Title)
	}
}

func TestFallbackPlanIsLowRiskWithTwoDiagnosticSteps(t *testing.T) {
	ni := incident.NormalizedIncident{Incident: incident.Incident{ID: "INC-1", AffectedService: "orders"}}
	p := fallbackPlan(ni, errors.New("no JSON object found in response"))

	if p.RiskLevel != plan.RiskLow {
		t.Errorf("expected low risk, got %v", p.RiskLevel)
	}
	if p.PlanType != plan.PlanTypeFallback {
		t.Errorf("expected fallback plan type, got %v", p.PlanType)
	}
	if len(p.Steps) != 2 {
		t.Errorf("expected 2 diagnostic steps, got %d", len(p.Steps))
	}
	if p.Metadata["synthesis_error"] == nil {
		t.Error("expected synthesis_error recorded in metadata")
	}
}

func TestGeneratePlanFromMessagesRetriesOnBadJSONThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		content := "not json at all"
		if n >= 2 {
			content = `{"title":"restart deployment","risk_level":"low","instructions":"restart"}`
		}
		resp := map[string]any{
			"id":    "chatcmpl-1",
			"model": "test-model",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityPlanning: {Preferred: []string{"test-model"}},
		},
		map[string]*model.EndpointConfig{
			"test-model": {Provider: "ollama", URL: server.URL, Model: "test-model"},
		},
	)
	client := llm.NewClient(registry)

	resp, err := generatePlanFromMessages(context.Background(), client, string(model.CapabilityPlanning), systemPrompt(), "plan for incident", nil)
	if err != nil {
		t.Fatalf("generatePlanFromMessages() error = %v", err)
	}
	if resp.Title != "restart deployment" {
		t.Errorf("expected parsed title, got %q", resp.Title)
	}
	if attempts.Load() < 2 {
		t.Errorf("expected at least 2 attempts, got %d", attempts.Load())
	}
}

func TestGeneratePlanFromMessagesExhaustsRetriesAndFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":    "chatcmpl-1",
			"model": "test-model",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "never valid json"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityPlanning: {Preferred: []string{"test-model"}},
		},
		map[string]*model.EndpointConfig{
			"test-model": {Provider: "ollama", URL: server.URL, Model: "test-model"},
		},
	)
	client := llm.NewClient(registry)

	_, err := generatePlanFromMessages(context.Background(), client, string(model.CapabilityPlanning), systemPrompt(), "plan for incident", nil)
	if err == nil {
		t.Error("expected error after exhausting format retries")
	}
}
