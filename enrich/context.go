// Package enrich assembles EnrichedContext for one incident from up to
// four capability-scoped sources, gating the external PublicKnowledge
// lookup on internal confidence (§4.2).
package enrich

import "github.com/opsloop/sentinel/incident"

// Caps from §4.2's source contract table, applied after each source's own
// merge/dedup step.
const (
	MaxLokiLogs         = 1500
	MaxSimilarIncidents = 5
	MaxRecentCommits    = 15
	MaxWebKnowledge     = 10

	// SimilarityThreshold is the minimum match similarity counted as a
	// "similar incident" for the purposes of PublicKnowledge gating.
	SimilarityThreshold = 0.7
)

// HistoryMatch is one HistoryIndex result.
type HistoryMatch struct {
	IncidentID string
	Summary    string
	Service    string
	Severity   string
	Similarity float64
}

// WebResult is one PublicKnowledge search hit.
type WebResult struct {
	URL     string
	Title   string
	Snippet string
}

// EnrichedContext is the Planner's working set for one incident (§3).
type EnrichedContext struct {
	LokiLogs           []incident.LogEntry
	SimilarIncidents   []HistoryMatch
	RecentCommits      []incident.GitCommit
	WebKnowledge       []WebResult
	SourcesUsed        []string
	InternalConfidence float64
	WebSearchTriggered bool
	WebSearchReason    string
	GatheringErrors    map[string]string
	GatheringTimeMs    int64
}
