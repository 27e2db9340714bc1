package enrich

import (
	"context"

	"github.com/opsloop/sentinel/incident"
)

// LogSource fetches recent and error-filtered logs for a service.
type LogSource interface {
	FetchLogs(ctx context.Context, service string, hoursBack int) ([]incident.LogEntry, error)
}

// HistoryIndexSource returns the incidents most similar to the given text,
// unfiltered by SimilarityThreshold — confidence is computed over the raw
// match set before the gather step applies the threshold.
type HistoryIndexSource interface {
	FindSimilar(ctx context.Context, incidentText string) ([]HistoryMatch, error)
}

// CodeHistorySource returns commits touching a service within a window.
type CodeHistorySource interface {
	FetchCommits(ctx context.Context, service string, hoursBack int) ([]incident.GitCommit, error)
}

// PublicKnowledgeSource searches external documentation/Q&A sources for
// the given queries.
type PublicKnowledgeSource interface {
	Search(ctx context.Context, queries []string) ([]WebResult, error)
}
