package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/opsloop/sentinel/incident"
)

func TestConfidenceNoMatches(t *testing.T) {
	if got := confidence(nil); got != 0 {
		t.Errorf("expected 0 confidence with no matches, got %v", got)
	}
}

func TestConfidenceSingleMatch(t *testing.T) {
	got := confidence([]HistoryMatch{{Similarity: 0.9}})
	if got != 0.9 {
		t.Errorf("expected single match confidence to equal its similarity, got %v", got)
	}
}

func TestConfidenceBoostedByMeanWithTwoMatches(t *testing.T) {
	// max=0.62, mean=0.6, boost=0.06 => 0.68
	got := confidence([]HistoryMatch{{Similarity: 0.62}, {Similarity: 0.58}})
	want := 0.68
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", got, want)
	}
}

func TestConfidenceClampedToOne(t *testing.T) {
	got := confidence([]HistoryMatch{{Similarity: 0.99}, {Similarity: 0.98}})
	if got > 1.0 {
		t.Errorf("expected confidence to be clamped to 1.0, got %v", got)
	}
}

func TestFilterSimilarAppliesThresholdAndCap(t *testing.T) {
	matches := []HistoryMatch{
		{IncidentID: "a", Similarity: 0.62},
		{IncidentID: "b", Similarity: 0.58},
	}
	if got := filterSimilar(matches); len(got) != 0 {
		t.Errorf("expected both below-threshold matches filtered out, got %+v", got)
	}
}

func TestLowInternalConfidenceTriggersWebSearch(t *testing.T) {
	history := fakeHistorySource{matches: []HistoryMatch{{Similarity: 0.62}, {Similarity: 0.58}}}
	web := &fakeWebSource{}
	e := &Enricher{History: &history, Web: web, ConfidenceThreshold: 0.8}

	inc := incident.NormalizedIncident{Incident: incident.Incident{ID: "INC-1", Title: "db down"}}
	result, err := e.Gather(context.Background(), inc)
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	if len(result.SimilarIncidents) != 0 {
		t.Errorf("expected no similar incidents above threshold, got %+v", result.SimilarIncidents)
	}
	if !result.WebSearchTriggered {
		t.Error("expected web search to be triggered on low internal confidence")
	}
	if !web.called {
		t.Error("expected PublicKnowledge source to be invoked")
	}
}

func TestSourceFailureIsCapturedNotFatal(t *testing.T) {
	e := &Enricher{Logs: failingLogSource{}, ConfidenceThreshold: 0.8}
	inc := incident.NormalizedIncident{Incident: incident.Incident{ID: "INC-1"}}

	result, err := e.Gather(context.Background(), inc)
	if err != nil {
		t.Fatalf("Gather() should not fail when a source errors, got %v", err)
	}
	if result.GatheringErrors["logs"] == "" {
		t.Error("expected logs source failure to be captured in GatheringErrors")
	}
}

func TestDeriveQueriesCapsAtFive(t *testing.T) {
	inc := incident.Incident{
		Title:           "db down",
		AffectedService: "orders",
		Hypothesis:      "connection pool exhausted",
		Symptoms:        []string{"high latency"},
	}
	logs := []incident.LogEntry{{Level: incident.LevelError, Message: "nil pointer exception"}}

	queries := DeriveQueries(inc, logs, "kubernetes")
	if len(queries) > maxQueries {
		t.Errorf("expected at most %d queries, got %d", maxQueries, len(queries))
	}
	for _, q := range queries {
		if q == "" {
			t.Error("expected no empty queries")
		}
	}
}

type fakeHistorySource struct {
	matches []HistoryMatch
}

func (f *fakeHistorySource) FindSimilar(ctx context.Context, text string) ([]HistoryMatch, error) {
	return f.matches, nil
}

type fakeWebSource struct {
	called bool
}

func (f *fakeWebSource) Search(ctx context.Context, queries []string) ([]WebResult, error) {
	f.called = true
	return []WebResult{{URL: "https://docs.example/a"}}, nil
}

type failingLogSource struct{}

func (failingLogSource) FetchLogs(ctx context.Context, service string, hoursBack int) ([]incident.LogEntry, error) {
	return nil, errSourceUnavailable
}

var errSourceUnavailable = errors.New("source unavailable")
