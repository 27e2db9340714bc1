package planner

import (
	"fmt"
	"strings"

	"github.com/opsloop/sentinel/enrich"
	"github.com/opsloop/sentinel/incident"
	"github.com/opsloop/sentinel/plan"
)

// systemPrompt carries the JSON output format; it's included on every
// call, including format-correction retries, since local models need the
// schema restated each turn.
func systemPrompt() string {
	return "You are the Planner in an autonomous incident-response pipeline. " +
		"Given an incident and any supporting evidence, produce a remediation plan. " +
		"Respond with ONLY a JSON object matching this structure:\n" +
		"```json\n" + planSchemaExample + "\n```\n" +
		`Allowed "tool" values for steps: shell.run, http.request, fs.write, compose.run, kubectl.run. ` +
		`"risk_level" must be one of: low, medium, high. Either "steps" or "instructions" is required.`
}

const planSchemaExample = `{
  "title": "<short human-readable title>",
  "summary": "<one paragraph summary of the remediation>",
  "rationale": "<why this remediation addresses the incident>",
  "risk_level": "low|medium|high",
  "rollout": "canary|bluegreen|inplace",
  "verification": ["<how to confirm the fix worked>"],
  "rollback_plan": ["<how to undo this if it fails>"],
  "steps": [{"tool": "kubectl.run", "args": {"args": ["rollout", "restart", "deployment/..."]}}]
}`

// userPrompt renders the plan-type template, with the enriched context
// section appended only for enhanced synthesis.
func userPrompt(planType plan.PlanType, ni incident.NormalizedIncident, ec *enrich.EnrichedContext) string {
	var sb strings.Builder

	switch planType {
	case plan.PlanTypeQuick:
		sb.WriteString("URGENT STABILIZATION. This incident has a heavy, high-severity error signal. ")
		sb.WriteString("Favor the fastest safe mitigation (restart, scale, rollback) over root-cause analysis.\n\n")
	case plan.PlanTypeDeepDive:
		sb.WriteString("HIGH-SEVERITY INCIDENT. Build a timeline from the evidence below and state your hypothesis ")
		sb.WriteString("for the root cause before proposing remediation steps.\n\n")
	default:
		sb.WriteString("Propose a remediation plan for the incident below.\n\n")
	}

	sb.WriteString(formatIncident(ni))

	if ec != nil {
		sb.WriteString("\n\n")
		sb.WriteString(formatEnrichedContext(*ec))
	}

	return sb.String()
}

func formatIncident(ni incident.NormalizedIncident) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Incident\n\nID: %s\nTitle: %s\nAffected service: %s\nSeverity: %s\nError log count: %d\n",
		ni.ID, ni.Title, ni.AffectedService, ni.Severity, ni.ErrorLogCount)
	if ni.Hypothesis != "" {
		fmt.Fprintf(&sb, "Hypothesis: %s\n", ni.Hypothesis)
	}
	if len(ni.Symptoms) > 0 {
		fmt.Fprintf(&sb, "Symptoms: %s\n", strings.Join(ni.Symptoms, "; "))
	}

	if len(ni.Logs) > 0 {
		sb.WriteString("\n### Recent logs\n")
		for _, l := range tailLogs(ni.Logs, 30) {
			fmt.Fprintf(&sb, "[%s] %s: %s\n", l.Timestamp, l.Level, l.Message)
		}
	}
	if len(ni.K8sEvents) > 0 {
		sb.WriteString("\n### Kubernetes events\n")
		for _, e := range ni.K8sEvents {
			fmt.Fprintf(&sb, "%s %s: %s\n", e.Type, e.Reason, e.Message)
		}
	}
	return sb.String()
}

func tailLogs(logs []incident.LogEntry, n int) []incident.LogEntry {
	if len(logs) <= n {
		return logs
	}
	return logs[len(logs)-n:]
}

func formatEnrichedContext(ec enrich.EnrichedContext) string {
	var sb strings.Builder
	sb.WriteString("## Supporting evidence\n")

	if len(ec.SimilarIncidents) > 0 {
		sb.WriteString("\n### Similar past incidents\n")
		for _, m := range ec.SimilarIncidents {
			fmt.Fprintf(&sb, "- (%.2f) %s: %s\n", m.Similarity, m.IncidentID, m.Summary)
		}
	}
	if len(ec.RecentCommits) > 0 {
		sb.WriteString("\n### Recent code changes\n")
		for _, c := range ec.RecentCommits {
			fmt.Fprintf(&sb, "- %s %s (%s)\n", c.SHA, c.Message, c.Author)
		}
	}
	if len(ec.WebKnowledge) > 0 {
		sb.WriteString("\n### Related documentation\n")
		for _, w := range ec.WebKnowledge {
			fmt.Fprintf(&sb, "- %s: %s\n", w.Title, w.URL)
		}
	}
	if ec.WebSearchTriggered {
		fmt.Fprintf(&sb, "\n(web search triggered: %s)\n", ec.WebSearchReason)
	}
	return sb.String()
}

// formatCorrectionPrompt tells the LLM its previous response didn't parse
// and restates the expected schema (§4.1 format-correction retry).
func formatCorrectionPrompt(err error) string {
	return fmt.Sprintf(
		"Your response could not be parsed as a valid plan. Error: %s\n\n"+
			"Please respond with ONLY a valid JSON object matching this structure:\n"+
			"```json\n%s\n```",
		err.Error(), planSchemaExample,
	)
}
