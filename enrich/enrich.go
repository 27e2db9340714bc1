package enrich

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opsloop/sentinel/incident"
)

// DomainTerm is appended to every PublicKnowledge query to keep results
// scoped to this system's operating platform.
const DomainTerm = "kubernetes"

// Enricher assembles EnrichedContext from the four capability-scoped
// sources, fanning Logs/HistoryIndex/CodeHistory out in parallel and
// gating PublicKnowledge on internal confidence.
type Enricher struct {
	Logs    LogSource
	History HistoryIndexSource
	Code    CodeHistorySource
	Web     PublicKnowledgeSource

	ConfidenceThreshold float64
	HoursBack           int
}

// Gather builds the EnrichedContext for inc. Any source's own failure is
// captured into GatheringErrors and never aborts the remaining sources
// (§4.2 Failure semantics) — an entirely empty context is valid input to
// synthesis.
func (e *Enricher) Gather(ctx context.Context, inc incident.NormalizedIncident) (EnrichedContext, error) {
	start := time.Now()
	out := EnrichedContext{GatheringErrors: make(map[string]string)}

	var mu sync.Mutex
	var wg sync.WaitGroup

	runSource := func(name string, fn func() error) {
		defer wg.Done()
		if err := fn(); err != nil {
			mu.Lock()
			out.GatheringErrors[name] = err.Error()
			mu.Unlock()
			return
		}
		mu.Lock()
		out.SourcesUsed = append(out.SourcesUsed, name)
		mu.Unlock()
	}

	var rawMatches []HistoryMatch

	if e.Logs != nil {
		wg.Add(1)
		go runSource("logs", func() error {
			logs, err := e.Logs.FetchLogs(ctx, inc.AffectedService, e.hoursBack())
			if err != nil {
				return err
			}
			mu.Lock()
			out.LokiLogs = capLogs(logs)
			mu.Unlock()
			return nil
		})
	}

	if e.History != nil {
		wg.Add(1)
		go runSource("history_index", func() error {
			matches, err := e.History.FindSimilar(ctx, historyQueryText(inc.Incident))
			if err != nil {
				return err
			}
			mu.Lock()
			rawMatches = matches
			mu.Unlock()
			return nil
		})
	}

	if e.Code != nil {
		wg.Add(1)
		go runSource("code_history", func() error {
			commits, err := e.Code.FetchCommits(ctx, inc.AffectedService, e.hoursBack())
			if err != nil {
				return err
			}
			mu.Lock()
			out.RecentCommits = capCommits(commits)
			mu.Unlock()
			return nil
		})
	}

	wg.Wait()

	out.InternalConfidence = confidence(rawMatches)
	out.SimilarIncidents = filterSimilar(rawMatches)

	switch {
	case len(out.SimilarIncidents) == 0:
		out.WebSearchTriggered = true
		out.WebSearchReason = "No similar incidents found in history index"
	case out.InternalConfidence < e.ConfidenceThreshold:
		out.WebSearchTriggered = true
		out.WebSearchReason = fmt.Sprintf("Low internal confidence (%.2f < %.2f)", out.InternalConfidence, e.ConfidenceThreshold)
	}

	if out.WebSearchTriggered && e.Web != nil {
		queries := DeriveQueries(inc.Incident, errorLogsOf(out.LokiLogs), DomainTerm)
		results, err := e.Web.Search(ctx, queries)
		if err != nil {
			out.GatheringErrors["public_knowledge"] = err.Error()
		} else {
			out.SourcesUsed = append(out.SourcesUsed, "public_knowledge")
			out.WebKnowledge = capWebResults(results)
		}
	}

	out.GatheringTimeMs = time.Since(start).Milliseconds()
	return out, nil
}

func (e *Enricher) hoursBack() int {
	if e.HoursBack > 0 {
		return e.HoursBack
	}
	return 24
}

func historyQueryText(inc incident.Incident) string {
	return inc.Title + " " + inc.AffectedService + " " + inc.Hypothesis
}

func errorLogsOf(logs []incident.LogEntry) []incident.LogEntry {
	var out []incident.LogEntry
	for _, l := range logs {
		if l.Level == incident.LevelError {
			out = append(out, l)
		}
	}
	return out
}

// confidence implements §4.2's formula: internal_confidence = max
// similarity, boosted by 0.1*mean(similarity) when 2+ matches exist,
// clamped to 1.0. Zero when there are no matches.
func confidence(matches []HistoryMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	max := matches[0].Similarity
	sum := 0.0
	for _, m := range matches {
		if m.Similarity > max {
			max = m.Similarity
		}
		sum += m.Similarity
	}
	conf := max
	if len(matches) >= 2 {
		conf += 0.1 * (sum / float64(len(matches)))
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func filterSimilar(matches []HistoryMatch) []HistoryMatch {
	var out []HistoryMatch
	for _, m := range matches {
		if m.Similarity >= SimilarityThreshold {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > MaxSimilarIncidents {
		out = out[:MaxSimilarIncidents]
	}
	return out
}

func capLogs(logs []incident.LogEntry) []incident.LogEntry {
	seen := make(map[string]bool, len(logs))
	deduped := make([]incident.LogEntry, 0, len(logs))
	for _, l := range logs {
		key := l.Timestamp + "\x00" + l.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, l)
	}
	if len(deduped) > MaxLokiLogs {
		deduped = deduped[:MaxLokiLogs]
	}
	return deduped
}

func capCommits(commits []incident.GitCommit) []incident.GitCommit {
	if len(commits) > MaxRecentCommits {
		return commits[:MaxRecentCommits]
	}
	return commits
}

func capWebResults(results []WebResult) []WebResult {
	seen := make(map[string]bool, len(results))
	deduped := make([]WebResult, 0, len(results))
	for _, r := range results {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		deduped = append(deduped, r)
	}
	if len(deduped) > MaxWebKnowledge {
		deduped = deduped[:MaxWebKnowledge]
	}
	return deduped
}
