// Package incident models the raw Incident wire payload and the
// normalization the Planner applies before synthesizing a plan.
package incident

import (
	"encoding/json"
	"sort"
	"strings"
)

const (
	// MaxLogs is the cap on normalized log entries kept for prompt
	// construction (§4.1 / §8 boundary behaviors).
	MaxLogs = 200
	// MaxEvents is the cap on normalized Kubernetes events.
	MaxEvents = 100
	// MaxCommits is the cap on normalized git commits.
	MaxCommits = 50
)

// Severity classifies how urgently an incident needs attention.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Status tracks an incident through its lifecycle.
type Status string

const (
	StatusNew      Status = "new"
	StatusTriaged  Status = "triaged"
	StatusResolved Status = "resolved"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// LogLevel classifies a single log line.
type LogLevel string

const (
	LevelError LogLevel = "error"
	LevelWarn  LogLevel = "warn"
	LevelInfo  LogLevel = "info"
	LevelDebug LogLevel = "debug"
)

// LogEntry is one merged log line from any evidence source.
type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
	Source    string   `json:"source,omitempty"`
	Pod       string   `json:"pod,omitempty"`
	Container string   `json:"container,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
}

// K8sEvent is a Kubernetes event attached as evidence.
type K8sEvent struct {
	Reason         string `json:"reason"`
	Message        string `json:"message"`
	Type           string `json:"type"`
	InvolvedObject string `json:"involved_object"`
	Timestamp      string `json:"timestamp"`
}

// GitCommit is a code change attached as evidence.
type GitCommit struct {
	SHA          string   `json:"sha"`
	Message      string   `json:"message"`
	Author       string   `json:"author"`
	Timestamp    string   `json:"timestamp"`
	FilesChanged []string `json:"files_changed,omitempty"`
}

// Metrics holds the canonical metric keys plus any overflow.
type Metrics struct {
	CPUUsage       *float64 `json:"cpu_usage,omitempty"`
	MemoryUsage    *float64 `json:"memory_usage,omitempty"`
	ErrorRate      *float64 `json:"error_rate,omitempty"`
	LatencyP95Ms   *float64 `json:"latency_p95_ms,omitempty"`
	RequestRateRPS *float64 `json:"request_rate_rps,omitempty"`

	// Overflow preserves any metric key this struct doesn't name.
	Overflow map[string]float64 `json:"-"`
}

// MarshalJSON flattens Overflow alongside the canonical fields.
func (m Metrics) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range m.Overflow {
		out[k] = v
	}
	if m.CPUUsage != nil {
		out["cpu_usage"] = *m.CPUUsage
	}
	if m.MemoryUsage != nil {
		out["memory_usage"] = *m.MemoryUsage
	}
	if m.ErrorRate != nil {
		out["error_rate"] = *m.ErrorRate
	}
	if m.LatencyP95Ms != nil {
		out["latency_p95_ms"] = *m.LatencyP95Ms
	}
	if m.RequestRateRPS != nil {
		out["request_rate_rps"] = *m.RequestRateRPS
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits canonical metric keys out of the generic map,
// preserving anything else in Overflow.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Overflow = make(map[string]float64, len(raw))
	for k, v := range raw {
		v := v
		switch k {
		case "cpu_usage":
			m.CPUUsage = &v
		case "memory_usage":
			m.MemoryUsage = &v
		case "error_rate":
			m.ErrorRate = &v
		case "latency_p95_ms":
			m.LatencyP95Ms = &v
		case "request_rate_rps":
			m.RequestRateRPS = &v
		default:
			m.Overflow[k] = v
		}
	}
	return nil
}

// Incident is the wire payload accepted on incidents.new. Unknown fields
// are preserved through normalization via Overflow.
type Incident struct {
	ID              string      `json:"id"`
	IdempotencyKey  string      `json:"idempotency_key,omitempty"`
	Title           string      `json:"title,omitempty"`
	AffectedService string      `json:"affected_service,omitempty"`
	Hypothesis      string      `json:"hypothesis,omitempty"`
	Symptoms        []string    `json:"symptoms,omitempty"`
	Severity        Severity    `json:"severity,omitempty"`
	Status          Status      `json:"status,omitempty"`
	Metrics         Metrics     `json:"metrics,omitempty"`
	Logs            []LogEntry  `json:"logs,omitempty"`
	LokiLogs        []LogEntry  `json:"loki_logs,omitempty"`
	AppLogs         []LogEntry  `json:"app_logs,omitempty"`
	K8sEvents       []K8sEvent  `json:"k8s_events,omitempty"`
	GitCommits      []GitCommit `json:"git_commits,omitempty"`

	Overflow map[string]json.RawMessage `json:"-"`
}

// IdentityKey returns IdempotencyKey when set, else ID — the value agents
// use for replay suppression.
func (inc *Incident) IdentityKey() string {
	if inc.IdempotencyKey != "" {
		return inc.IdempotencyKey
	}
	return inc.ID
}

// MarshalJSON merges Overflow back into the top-level object so unknown
// fields round-trip instead of being dropped during normalization.
func (inc Incident) MarshalJSON() ([]byte, error) {
	type Alias Incident
	known, err := json.Marshal(Alias(inc))
	if err != nil {
		return nil, err
	}
	if len(inc.Overflow) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(inc.Overflow))
	for k, v := range inc.Overflow {
		merged[k] = v
	}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// UnmarshalJSON captures any field this struct doesn't name into Overflow.
func (inc *Incident) UnmarshalJSON(data []byte) error {
	type Alias Incident
	if err := json.Unmarshal(data, (*Alias)(inc)); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, known := range []string{
		"id", "idempotency_key", "title", "affected_service", "hypothesis",
		"symptoms", "severity", "status", "metrics", "logs", "loki_logs",
		"app_logs", "k8s_events", "git_commits",
	} {
		delete(raw, known)
	}
	if len(raw) > 0 {
		inc.Overflow = raw
	}
	return nil
}

// NormalizedIncident is the Planner's derived view of an Incident: merged,
// capped, classified evidence plus computed severity and error count.
type NormalizedIncident struct {
	Incident
	ErrorLogCount int `json:"error_log_count"`
}

// classifyLevel derives a LogLevel from an explicit field or, failing
// that, keyword matching on the message per §4.1.
func classifyLevel(explicit LogLevel, message string) LogLevel {
	if explicit != "" {
		return explicit
	}
	lower := strings.ToLower(message)
	for _, kw := range []string{"exception", "panic", "fatal", "stacktrace", "error"} {
		if strings.Contains(lower, kw) {
			return LevelError
		}
	}
	for _, kw := range []string{"warn", "timeout", "retry"} {
		if strings.Contains(lower, kw) {
			return LevelWarn
		}
	}
	return LevelInfo
}

// mergeLogs merges all evidence log slices, deduplicating by
// (timestamp, message) and classifying every entry's level.
func mergeLogs(sets ...[]LogEntry) []LogEntry {
	seen := make(map[string]bool)
	var merged []LogEntry
	for _, set := range sets {
		for _, entry := range set {
			entry.Level = classifyLevel(entry.Level, entry.Message)
			key := entry.Timestamp + "\x00" + entry.Message
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, entry)
		}
	}
	return merged
}

// deriveSeverity applies the Planner's heuristic severity rule. Caller-
// supplied severity always wins.
func deriveSeverity(caller Severity, errorRate, latencyP95 *float64, errorLogCount int) Severity {
	if caller != "" {
		return caller
	}
	if (errorRate != nil && *errorRate >= 0.05) ||
		(latencyP95 != nil && *latencyP95 >= 800) ||
		errorLogCount > 5 {
		return SeverityHigh
	}
	if errorLogCount > 0 {
		return SeverityMedium
	}
	return SeverityLow
}

// Normalize merges log sources, classifies levels, derives severity and
// error_log_count, and caps evidence volume. Normalizing an
// already-normalized incident is a fixed point: re-running it on its own
// output reproduces the same fields.
func Normalize(inc Incident) NormalizedIncident {
	merged := mergeLogs(inc.Logs, inc.LokiLogs, inc.AppLogs)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })

	errorCount := 0
	for _, entry := range merged {
		if entry.Level == LevelError {
			errorCount++
		}
	}

	if len(merged) > MaxLogs {
		merged = merged[:MaxLogs]
	}
	events := inc.K8sEvents
	if len(events) > MaxEvents {
		events = events[:MaxEvents]
	}
	commits := inc.GitCommits
	if len(commits) > MaxCommits {
		commits = commits[:MaxCommits]
	}

	normalized := inc
	normalized.Logs = merged
	normalized.LokiLogs = nil
	normalized.AppLogs = nil
	normalized.K8sEvents = events
	normalized.GitCommits = commits
	normalized.Severity = deriveSeverity(inc.Severity, inc.Metrics.ErrorRate, inc.Metrics.LatencyP95Ms, errorCount)

	return NormalizedIncident{Incident: normalized, ErrorLogCount: errorCount}
}
