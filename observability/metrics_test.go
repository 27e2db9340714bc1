package observability

import (
	"testing"

	"github.com/opsloop/sentinel/bus"
)

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		outcome bus.Outcome
		want    string
	}{
		{bus.Ack, "ack"},
		{bus.Retry, "retry"},
		{bus.Drop, "drop"},
	}

	for _, tt := range tests {
		if got := outcomeLabel(tt.outcome); got != tt.want {
			t.Errorf("outcomeLabel(%v) = %q, want %q", tt.outcome, got, tt.want)
		}
	}
}

func TestNewMetricsRegistersCounter(t *testing.T) {
	m, reg := NewMetrics()
	if m.MessagesHandled == nil {
		t.Fatal("expected MessagesHandled to be initialized")
	}
	if reg == nil {
		t.Fatal("expected a non-nil registry")
	}

	m.MessagesHandled.WithLabelValues("planner", "ack").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}
