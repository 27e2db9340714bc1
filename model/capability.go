// Package model provides capability-based model selection for the pipeline
// agents. Instead of hardcoding model names, agents specify capabilities
// (planning, compiling, embedding) and the registry resolves them to
// available endpoints with fallback chains.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityPlanning is for incident-to-plan synthesis (Planner).
	CapabilityPlanning Capability = "planning"

	// CapabilityCompiling is for compiling free-text instructions into
	// allow-listed tool steps (Actor).
	CapabilityCompiling Capability = "compiling"

	// CapabilityEmbedding is for summary embedding (Learner, HistoryIndex).
	CapabilityEmbedding Capability = "embedding"

	// CapabilityFast is for quick, low-stakes completions (basic synthesis,
	// Collaborator policy hints).
	CapabilityFast Capability = "fast"
)

// RoleCapabilities maps agent roles to their default capability.
var RoleCapabilities = map[string]Capability{
	"planner":      CapabilityPlanning,
	"collaborator": CapabilityFast,
	"actor":        CapabilityCompiling,
	"learner":      CapabilityEmbedding,
}

// CapabilityForRole returns the default capability for a given role.
// Returns CapabilityFast as fallback for unknown roles.
func CapabilityForRole(role string) Capability {
	if capVal, ok := RoleCapabilities[role]; ok {
		return capVal
	}
	return CapabilityFast
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityCompiling, CapabilityEmbedding, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	capVal := Capability(s)
	if capVal.IsValid() {
		return capVal
	}
	return ""
}
