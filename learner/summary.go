package learner

import (
	"fmt"
	"strings"

	"github.com/opsloop/sentinel/incident"
	"github.com/opsloop/sentinel/plan"
)

// buildSummary joins identity, service, severity, hypothesis, AI
// confidence, resolution action, and notes into the single string the
// Learner embeds and indexes (§4.5 step 1).
func buildSummary(ni incident.NormalizedIncident, p plan.Plan, res plan.Resolution) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Incident %s", ni.IdentityKey())
	if ni.Title != "" {
		fmt.Fprintf(&b, " (%s)", ni.Title)
	}
	fmt.Fprintf(&b, " on service %s, severity %s.", ni.AffectedService, ni.Severity)

	if ni.Hypothesis != "" {
		fmt.Fprintf(&b, " Hypothesis: %s.", ni.Hypothesis)
	}
	if p.Confidence != nil {
		fmt.Fprintf(&b, " AI confidence: %.2f.", *p.Confidence)
	}

	action := res.ResolutionAction
	if action == "" {
		action = string(res.Status)
	}
	fmt.Fprintf(&b, " Resolution: %s (%s).", p.Title, action)

	if notes := notesFrom(p); notes != "" {
		fmt.Fprintf(&b, " Notes: %s", notes)
	}

	return b.String()
}

// notesFrom picks the most informative free-text field a plan carries for
// the summary's trailing "notes" clause.
func notesFrom(p plan.Plan) string {
	if p.Rationale != "" {
		return p.Rationale
	}
	return p.Summary
}
