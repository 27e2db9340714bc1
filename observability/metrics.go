// Package observability provides the ambient health/metrics HTTP surface
// shared by all four agent binaries: a liveness endpoint and a Prometheus
// scrape endpoint instrumenting message outcomes.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsloop/sentinel/bus"
)

// HealthCheck reports a single dependency's liveness; a non-nil error
// marks that dependency down on /healthz.
type HealthCheck func(ctx context.Context) error

// Metrics counts message outcomes per agent, labeled by the agent's role
// so all four binaries can share one registry shape.
type Metrics struct {
	MessagesHandled *prometheus.CounterVec
}

// NewMetrics registers the pipeline's counters against a fresh registry.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		MessagesHandled: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_messages_handled_total",
			Help: "Messages handled by agent and outcome.",
		}, []string{"agent", "outcome"}),
	}
	reg.MustRegister()
	return m, reg
}

// CountHandler wraps a bus.Handler so every outcome (including the
// terminal error path, recorded as "error") increments MessagesHandled
// labeled by agent, without each agent binary repeating the bookkeeping.
func CountHandler(m *Metrics, agent string, h bus.Handler) bus.Handler {
	return func(ctx context.Context, msg jetstream.Msg) (bus.Outcome, error) {
		outcome, err := h(ctx, msg)
		label := outcomeLabel(outcome)
		if err != nil && outcome != bus.Retry {
			label = "error"
		}
		m.MessagesHandled.WithLabelValues(agent, label).Inc()
		return outcome, err
	}
}

func outcomeLabel(o bus.Outcome) string {
	switch o {
	case bus.Ack:
		return "ack"
	case bus.Retry:
		return "retry"
	case bus.Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// Server exposes /healthz and /metrics for one agent process.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the health/metrics server bound to addr. reg may be nil
// to skip the /metrics registration (not expected in production use).
// checks is run on every /healthz request; a nil or empty map reports a
// bare liveness "ok" with no dependency section.
func NewServer(addr string, reg *prometheus.Registry, checks map[string]HealthCheck) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, r.Context(), checks)
	})
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return &Server{httpServer: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run starts the server and blocks until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, logger *slog.Logger) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("health/metrics server failed", "error", err)
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeHealth(w http.ResponseWriter, ctx context.Context, checks map[string]HealthCheck) {
	resp := healthResponse{Status: "ok"}
	if len(checks) > 0 {
		resp.Checks = make(map[string]string, len(checks))
	}

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	for name, check := range checks {
		if err := check(checkCtx); err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
		} else {
			resp.Checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
