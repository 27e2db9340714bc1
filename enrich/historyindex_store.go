package enrich

import (
	"context"
	"fmt"

	"github.com/opsloop/sentinel/store"
)

// rawMatchPoolSize is how many raw matches are pulled from the store
// before SimilarityThreshold filtering — large enough that the confidence
// computation (§4.2) sees the true top matches, not an artificially
// truncated set.
const rawMatchPoolSize = 10

// Embedder produces the numeric embedding an incident's text is compared
// against in the historical-incident index. Implemented by the Planner's
// embedding-capability LLM client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// StoreHistoryIndexSource is the production HistoryIndexSource,
// backed directly by the Learner-populated historical_incidents table
// rather than an external search endpoint — the brute-force similarity
// scan already lives in store/ (§3.1), so this is a thin adapter rather
// than a second implementation of the same scan.
type StoreHistoryIndexSource struct {
	Store *store.Store
	Embed Embedder
}

// FindSimilar implements HistoryIndexSource.
func (s *StoreHistoryIndexSource) FindSimilar(ctx context.Context, incidentText string) ([]HistoryMatch, error) {
	vec, err := s.Embed.Embed(ctx, incidentText)
	if err != nil {
		return nil, fmt.Errorf("embed query text: %w", err)
	}

	matches, err := s.Store.FindSimilar(ctx, vec, rawMatchPoolSize)
	if err != nil {
		return nil, fmt.Errorf("find similar: %w", err)
	}

	out := make([]HistoryMatch, len(matches))
	for i, m := range matches {
		out[i] = HistoryMatch{
			IncidentID: m.IncidentID,
			Summary:    m.Summary,
			Service:    m.Service,
			Severity:   m.Severity,
			Similarity: m.Similarity,
		}
	}
	return out, nil
}
