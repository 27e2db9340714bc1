package planner

import (
	"github.com/opsloop/sentinel/config"
	"github.com/opsloop/sentinel/incident"
	"github.com/opsloop/sentinel/plan"
	"github.com/opsloop/sentinel/quota"
)

// SelectPlanType picks the prompt template for a normalized incident
// (§4.1). The choice only changes which template is rendered — every
// plan type produces the same Plan schema.
func SelectPlanType(ni incident.NormalizedIncident, policy config.PolicyConfig) plan.PlanType {
	if ni.Severity != incident.SeverityHigh {
		return plan.PlanTypeComprehensive
	}
	if ni.ErrorLogCount > policy.ComplexIncidentErrorLogThreshold {
		return plan.PlanTypeQuick
	}
	return plan.PlanTypeDeepDive
}

// wantsEnhanced decides whether an incident qualifies for enhanced
// synthesis (full enrichment + rich template) before the quota gate is
// even consulted (§4.1 Enhanced vs. basic synthesis).
func wantsEnhanced(ni incident.NormalizedIncident, policy config.PolicyConfig) bool {
	if ni.Severity == incident.SeverityHigh {
		return true
	}
	if isCriticalService(ni.AffectedService, policy.CriticalServices) {
		return true
	}
	return ni.ErrorLogCount > policy.ComplexIncidentErrorLogThreshold
}

func isCriticalService(service string, critical []string) bool {
	for _, c := range critical {
		if c == service {
			return true
		}
	}
	return false
}

// enhancedPriority picks the quota priority an enhanced-synthesis attempt
// consumes. A high-severity incident always gets the full daily/hourly
// allowance; an incident that only qualifies via critical-service
// membership or log volume is downgraded to the soft-denied low-priority
// tier so quota capacity is preserved for genuinely severe incidents.
func enhancedPriority(ni incident.NormalizedIncident) quota.Priority {
	if ni.Severity == incident.SeverityHigh {
		return quota.PriorityNormal
	}
	return quota.PriorityLow
}
