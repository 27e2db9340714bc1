package incident

import (
	"encoding/json"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestDeriveSeverity(t *testing.T) {
	tests := []struct {
		name          string
		caller        Severity
		errorRate     *float64
		latencyP95    *float64
		errorLogCount int
		want          Severity
	}{
		{"caller wins", SeverityLow, f(0.5), nil, 50, SeverityLow},
		{"high by error rate", "", f(0.05), nil, 0, SeverityHigh},
		{"high by latency boundary", "", nil, f(800), 0, SeverityHigh},
		{"low at latency just under boundary", "", nil, f(799), 0, SeverityLow},
		{"high by error log count", "", nil, nil, 6, SeverityHigh},
		{"medium by any errors", "", nil, nil, 1, SeverityMedium},
		{"low otherwise", "", nil, nil, 0, SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveSeverity(tt.caller, tt.errorRate, tt.latencyP95, tt.errorLogCount)
			if got != tt.want {
				t.Errorf("deriveSeverity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyLevel(t *testing.T) {
	tests := []struct {
		message string
		want    LogLevel
	}{
		{"nil pointer exception in handler", LevelError},
		{"PANIC: goroutine crashed", LevelError},
		{"request timeout after 30s", LevelWarn},
		{"retrying connection", LevelWarn},
		{"service started successfully", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := classifyLevel("", tt.message)
			if got != tt.want {
				t.Errorf("classifyLevel(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestClassifyLevelExplicitWins(t *testing.T) {
	got := classifyLevel(LevelDebug, "this looks like an exception")
	if got != LevelDebug {
		t.Errorf("expected explicit level to win, got %q", got)
	}
}

func TestNormalizeMergesAndCaps(t *testing.T) {
	logs := make([]LogEntry, 0, 250)
	for i := 0; i < 250; i++ {
		logs = append(logs, LogEntry{Timestamp: "2026-01-01T00:00:0" + string(rune('0'+i%10)), Message: "panic in worker"})
	}

	inc := Incident{ID: "INC-1", Logs: logs}
	norm := Normalize(inc)

	if len(norm.Logs) > MaxLogs {
		t.Errorf("expected at most %d logs, got %d", MaxLogs, len(norm.Logs))
	}
	for _, entry := range norm.Logs {
		if entry.Level != LevelError {
			t.Errorf("expected panic messages classified as error, got %q", entry.Level)
		}
	}
}

func TestNormalizeDeduplicatesLogs(t *testing.T) {
	shared := LogEntry{Timestamp: "t1", Message: "duplicate entry"}
	inc := Incident{
		ID:       "INC-2",
		Logs:     []LogEntry{shared},
		LokiLogs: []LogEntry{shared},
	}

	norm := Normalize(inc)
	if len(norm.Logs) != 1 {
		t.Errorf("expected deduplication to merge identical (timestamp,message) entries, got %d", len(norm.Logs))
	}
}

func TestNormalizeIsFixedPoint(t *testing.T) {
	inc := Incident{
		ID:    "INC-3",
		Logs:  []LogEntry{{Timestamp: "t1", Message: "panic in worker"}},
		Metrics: Metrics{ErrorRate: f(0.1)},
	}

	once := Normalize(inc)
	twice := Normalize(once.Incident)

	oneJSON, err := json.Marshal(once)
	if err != nil {
		t.Fatalf("marshal once: %v", err)
	}
	twoJSON, err := json.Marshal(twice)
	if err != nil {
		t.Fatalf("marshal twice: %v", err)
	}
	if string(oneJSON) != string(twoJSON) {
		t.Errorf("normalizing an already-normalized incident should be a fixed point:\n%s\nvs\n%s", oneJSON, twoJSON)
	}
}

func TestIncidentOverflowRoundTrips(t *testing.T) {
	raw := []byte(`{"id":"INC-4","title":"db down","custom_field":"keep me"}`)

	var inc Incident
	if err := json.Unmarshal(raw, &inc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if inc.Overflow["custom_field"] == nil {
		t.Fatal("expected unknown field to be captured in Overflow")
	}

	out, err := json.Marshal(inc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var roundTripped map[string]any
	if err := json.Unmarshal(out, &roundTripped); err != nil {
		t.Fatalf("unmarshal round-tripped: %v", err)
	}
	if roundTripped["custom_field"] != "keep me" {
		t.Errorf("expected custom_field to survive round-trip, got %v", roundTripped["custom_field"])
	}
}

func TestIdentityKey(t *testing.T) {
	withKey := Incident{ID: "id-1", IdempotencyKey: "idem-1"}
	if got := withKey.IdentityKey(); got != "idem-1" {
		t.Errorf("expected idempotency key to win, got %q", got)
	}

	withoutKey := Incident{ID: "id-2"}
	if got := withoutKey.IdentityKey(); got != "id-2" {
		t.Errorf("expected id fallback, got %q", got)
	}
}
